//go:build dev

package resources

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// assets reads from the source tree so stylesheet edits show up on reload.
func assets() (fs.FS, string) {
	dir := StaticDirectoryPath
	if _, file, _, ok := runtime.Caller(0); ok {
		dir = filepath.Join(filepath.Dir(file), "static")
	}
	slog.Debug("serving static assets from disk", slog.String("dir", dir))
	return os.DirFS(dir), "no-cache"
}

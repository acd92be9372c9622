//go:build !dev

package resources

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var embedded embed.FS

// assets are compiled in and never change for the life of the binary.
func assets() (fs.FS, string) {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		panic(err)
	}
	return sub, "public, max-age=31536000, immutable"
}

// Package resources provides static asset handling for the UI server.
package resources

import (
	"net/http"
	"strings"
)

// StaticDirectoryPath is the path to static assets from the project root.
const StaticDirectoryPath = "internal/ui/resources/static"

// DatastarJS is the Datastar client bundle loaded by every dashboard page.
const DatastarJS = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"

// Stylesheet is the dashboard stylesheet served from the static directory.
const Stylesheet = "geodash.css"

const staticPrefix = "/static/"

// Handler serves the static assets under /static/. Directory listings
// are not served.
func Handler() http.Handler {
	fsys, cacheControl := assets()
	files := http.StripPrefix(staticPrefix, http.FileServer(http.FS(fsys)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", cacheControl)
		files.ServeHTTP(w, r)
	})
}

// StaticPath returns the URL path for a static asset.
func StaticPath(name string) string {
	return staticPrefix + name
}

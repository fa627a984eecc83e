// Package uistatic embeds the built-in single page app that fronts the
// conversation API: upload a spreadsheet, ask questions, read the
// transcript.
package uistatic

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:app
var assets embed.FS

// Handler serves the embedded app. Unknown paths fall back to
// index.html so client-side routing keeps working after a reload.
func Handler() http.Handler {
	sub, err := fs.Sub(assets, "app")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}
		if _, err := fs.Stat(sub, name); err != nil {
			r.URL.Path = "/"
		}
		fileServer.ServeHTTP(w, r)
	})
}

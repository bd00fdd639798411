// Package web holds the server-rendered templates.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates
var files embed.FS

// Templates is rooted at the templates directory.
func Templates() fs.FS {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

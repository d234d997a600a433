// Package web embeds the built portfolio site so a single binary can serve it.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// DistFS returns the embedded site rooted at dist. ok is false when the
// build only contains the placeholder page.
func DistFS() (fs.FS, bool) {
	if _, err := fs.Stat(distFS, "dist/index.html"); err != nil {
		return nil, false
	}
	if _, err := fs.Stat(distFS, "dist/.placeholder"); err == nil {
		return nil, false
	}

	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		return nil, false
	}
	return sub, true
}

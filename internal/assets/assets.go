// Package assets embeds the browser-side editor client.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

// ClientFS returns the embedded client files, rooted at client/.
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// ClientJS returns the editor bootstrap script injected into the page.
func ClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/liveedit.js")
}

// ClientCSS returns the editor chrome styles.
func ClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/liveedit.css")
}

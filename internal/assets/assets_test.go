package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientJS(t *testing.T) {
	js, err := ClientJS()
	require.NoError(t, err)
	assert.Contains(t, string(js), "/ws")
	assert.Contains(t, string(js), "/api/select")
}

func TestClientCSS(t *testing.T) {
	css, err := ClientCSS()
	require.NoError(t, err)
	assert.Contains(t, string(css), "liveedit-selected")
}

func TestClientFS(t *testing.T) {
	fsys := ClientFS()
	for _, name := range []string{"liveedit.js", "liveedit.css"} {
		_, err := fsys.Open(name)
		assert.NoError(t, err, name)
	}
}

package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/mapper"
	"github.com/siteforge/liveedit/internal/store"
)

// Cleanup removes unreferenced uploads but keeps blobs still used by a
// live record or a stored preset.
func TestCleanupCommandRemovesOrphans(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	docs, err := store.Open(ctx, store.Options{
		Backend: "sqlite",
		Path:    filepath.Join(dir, "liveedit.db"),
	})
	require.NoError(t, err)
	blobs, err := store.NewDiskBlobStore(filepath.Join(dir, "uploads", "editor"), "/uploads/editor/")
	require.NoError(t, err)
	m := mapper.New(docs, blobs)

	liveURL, err := blobs.Save(ctx, "png", strings.NewReader("live"))
	require.NoError(t, err)
	presetURL, err := blobs.Save(ctx, "png", strings.NewReader("preset"))
	require.NoError(t, err)
	orphanURL, err := blobs.Save(ctx, "png", strings.NewReader("orphan"))
	require.NoError(t, err)

	_, err = m.SaveStyle(ctx, "hero-bg", liveedit.StyleRecord{
		Type:  liveedit.StyleBackgroundImage,
		Value: liveedit.StyleValue{Raw: liveURL},
	})
	require.NoError(t, err)
	_, err = m.PutPreset(ctx, &liveedit.Preset{
		Slot: 1,
		Name: "Campaign",
		Styles: map[string]liveedit.StyleRecord{
			"hero-bg": {
				Type:  liveedit.StyleBackgroundImage,
				Value: liveedit.StyleValue{Raw: presetURL},
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, docs.Close())

	require.NoError(t, CleanupCommand([]string{dir}))

	assert.True(t, blobExists(t, blobs, liveURL))
	assert.True(t, blobExists(t, blobs, presetURL))
	assert.False(t, blobExists(t, blobs, orphanURL))
}

func blobExists(t *testing.T, b *store.DiskBlobStore, url string) bool {
	t.Helper()
	name := strings.TrimPrefix(url, b.BaseURL())
	_, err := os.Stat(filepath.Join(b.Dir(), name))
	return err == nil
}

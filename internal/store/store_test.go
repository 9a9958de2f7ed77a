package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Both local backends must behave identically; run the shared suite over
// each.
func documentStores(t *testing.T) map[string]DocumentStore {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]DocumentStore{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ts, err := s.Put(ctx, "editableTexts", "hero-title-text",
				json.RawMessage(`{"content":"Hello"}`), false)
			require.NoError(t, err)
			assert.False(t, ts.IsZero())

			data, err := s.Get(ctx, "editableTexts", "hero-title-text")
			require.NoError(t, err)
			var doc map[string]string
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, "Hello", doc["content"])
		})
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "editableTexts", "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// Merge writes preserve stored top-level fields the update does not name.
func TestMergePreservesSiblingFields(t *testing.T) {
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Put(ctx, "layoutPresets", "preset-1",
				json.RawMessage(`{"name":"Summer","createdAt":"2026-01-01T00:00:00Z"}`), false)
			require.NoError(t, err)

			_, err = s.Put(ctx, "layoutPresets", "preset-1",
				json.RawMessage(`{"name":"Winter"}`), true)
			require.NoError(t, err)

			data, err := s.Get(ctx, "layoutPresets", "preset-1")
			require.NoError(t, err)
			var doc map[string]string
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, "Winter", doc["name"])
			assert.Equal(t, "2026-01-01T00:00:00Z", doc["createdAt"])
		})
	}
}

func TestNonMergeReplacesWholeDocument(t *testing.T) {
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Put(ctx, "editableStyles", "x",
				json.RawMessage(`{"type":"color","value":"#fff"}`), false)
			require.NoError(t, err)
			_, err = s.Put(ctx, "editableStyles", "x",
				json.RawMessage(`{"type":"link"}`), false)
			require.NoError(t, err)

			data, err := s.Get(ctx, "editableStyles", "x")
			require.NoError(t, err)
			var doc map[string]any
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, "link", doc["type"])
			_, hasValue := doc["value"]
			assert.False(t, hasValue)
		})
	}
}

func TestDeleteAllEmptiesOnlyThatCollection(t *testing.T) {
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Put(ctx, "editableTexts", "a", json.RawMessage(`{"content":"A"}`), false)
			require.NoError(t, err)
			_, err = s.Put(ctx, "editableStyles", "b", json.RawMessage(`{"type":"color"}`), false)
			require.NoError(t, err)

			require.NoError(t, s.DeleteAll(ctx, "editableTexts"))

			texts, err := s.List(ctx, "editableTexts")
			require.NoError(t, err)
			assert.Empty(t, texts)

			styles, err := s.List(ctx, "editableStyles")
			require.NoError(t, err)
			assert.Len(t, styles, 1)
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(context.Background(), Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), Options{Backend: "dynamo"})
	assert.Error(t, err)
}

func TestDiskBlobStoreSaveDelete(t *testing.T) {
	dir := t.TempDir()
	b, err := NewDiskBlobStore(dir, "/uploads/editor")
	require.NoError(t, err)

	url, err := b.Save(context.Background(), "png", strings.NewReader("pngdata"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/editor/"))
	assert.True(t, b.Owns(url))

	name := strings.TrimPrefix(url, "/uploads/editor/")
	content, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "pngdata", string(content))

	require.NoError(t, b.Delete(context.Background(), url))
	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err))

	// Deleting again, or deleting a foreign URL, is a no-op.
	assert.NoError(t, b.Delete(context.Background(), url))
	assert.NoError(t, b.Delete(context.Background(), "https://cdn.example.com/pic.png"))
}

func TestDiskBlobStoreIgnoresTraversal(t *testing.T) {
	dir := t.TempDir()
	b, err := NewDiskBlobStore(filepath.Join(dir, "blobs"), "/uploads/editor/")
	require.NoError(t, err)

	outside := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	require.NoError(t, b.Delete(context.Background(), "/uploads/editor/../secret.txt"))
	_, err = os.Stat(outside)
	assert.NoError(t, err, "file outside the blob dir must survive")
}

package store

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore holds uploaded background images. Save returns the public URL
// the page will reference; Delete only removes blobs this store owns, so a
// hand-authored image URL in the markup is never touched.
type BlobStore interface {
	Save(ctx context.Context, ext string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
	Owns(url string) bool
}

// DiskBlobStore writes blobs under a directory served at baseURL.
type DiskBlobStore struct {
	dir     string
	baseURL string // e.g. "/uploads/editor/"
}

// NewDiskBlobStore creates the directory if needed.
func NewDiskBlobStore(dir, baseURL string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &DiskBlobStore{dir: dir, baseURL: baseURL}, nil
}

// Save stores the blob under a random name, keeping the caller's extension.
func (b *DiskBlobStore) Save(_ context.Context, ext string, r io.Reader) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	name := fmt.Sprintf("%s.%s", uuid.NewString(), ext)

	f, err := os.Create(filepath.Join(b.dir, name))
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	return b.baseURL + name, nil
}

// Owns reports whether the URL points into this store.
func (b *DiskBlobStore) Owns(url string) bool {
	return strings.HasPrefix(url, b.baseURL)
}

// Delete removes an owned blob. Unknown URLs and already-missing files are
// no-ops: deletion after replacing an image is best effort.
func (b *DiskBlobStore) Delete(_ context.Context, url string) error {
	if !b.Owns(url) {
		return nil
	}
	name := path.Base(strings.TrimPrefix(url, b.baseURL))
	if name == "" || name == "." || name == ".." {
		return nil
	}
	err := os.Remove(filepath.Join(b.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

// Dir returns the on-disk directory, for mounting a file server.
func (b *DiskBlobStore) Dir() string { return b.dir }

// BaseURL returns the public URL prefix.
func (b *DiskBlobStore) BaseURL() string { return b.baseURL }

// CleanOrphans removes blobs not referenced by any of the given URLs.
// Called from maintenance tooling, never automatically.
func (b *DiskBlobStore) CleanOrphans(referenced map[string]bool) error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("scan blob dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		url := b.baseURL + e.Name()
		if referenced[url] {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil {
			log.Printf("[Blob] Failed to remove orphan %s: %v", e.Name(), err)
		}
	}
	return nil
}

// Package store persists editor documents as JSON keyed by collection and
// id, with interchangeable SQLite, Postgres and MongoDB backends, plus the
// blob store for uploaded background images.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a document id has no stored value.
var ErrNotFound = errors.New("document not found")

// DocumentStore is the backend-neutral persistence surface. Put assigns and
// returns the server-side write timestamp; with merge set, top-level fields
// of an existing document that the update does not mention are preserved.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Put(ctx context.Context, collection, id string, data json.RawMessage, merge bool) (time.Time, error)
	Delete(ctx context.Context, collection, id string) error
	DeleteAll(ctx context.Context, collection string) error
	List(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend  string // "sqlite", "postgres", "mongo" or "memory"
	Path     string // sqlite file path
	DSN      string // postgres connection string
	URI      string // mongo connection URI
	Database string // mongo database name
}

// Open constructs the configured backend.
func Open(ctx context.Context, opts Options) (DocumentStore, error) {
	switch opts.Backend {
	case "", "sqlite":
		return OpenSQLite(opts.Path)
	case "postgres":
		return OpenPostgres(ctx, opts.DSN)
	case "mongo":
		return OpenMongo(ctx, opts.URI, opts.Database)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// mergeJSON overlays the update's top-level fields onto the existing
// document. Fields absent from the update keep their stored value.
func mergeJSON(existing, update json.RawMessage) (json.RawMessage, error) {
	if len(existing) == 0 {
		return update, nil
	}
	var base, overlay map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, fmt.Errorf("merge: stored document is not an object: %w", err)
	}
	if err := json.Unmarshal(update, &overlay); err != nil {
		return nil, fmt.Errorf("merge: update is not an object: %w", err)
	}
	for k, v := range overlay {
		base[k] = v
	}
	return json.Marshal(base)
}

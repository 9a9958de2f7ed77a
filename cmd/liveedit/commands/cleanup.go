package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/config"
	"github.com/siteforge/liveedit/internal/mapper"
	"github.com/siteforge/liveedit/internal/store"
)

// CleanupCommand removes uploaded images no longer referenced by any
// persisted style or preset. Run it while the server is stopped.
func CleanupCommand(args []string) error {
	dir := "."
	var configPath string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" || arg == "-c" {
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		} else if !strings.HasPrefix(arg, "-") {
			dir = arg
		}
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDir(absDir)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !filepath.IsAbs(cfg.Uploads.Dir) {
		cfg.Uploads.Dir = filepath.Join(absDir, cfg.Uploads.Dir)
	}
	if cfg.Store.Backend == "" || cfg.Store.Backend == "sqlite" {
		if p := cfg.Store.GetPath(); !filepath.IsAbs(p) {
			cfg.Store.Path = filepath.Join(absDir, p)
		}
	}

	ctx := context.Background()
	docs, err := store.Open(ctx, store.Options{
		Backend:  cfg.Store.Backend,
		Path:     cfg.Store.GetPath(),
		DSN:      cfg.Store.GetDSN(),
		URI:      cfg.Store.GetURI(),
		Database: cfg.Store.Database,
	})
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer docs.Close()

	blobs, err := store.NewDiskBlobStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
	if err != nil {
		return err
	}

	referenced, err := ReferencedBlobURLs(ctx, mapper.New(docs, blobs))
	if err != nil {
		return err
	}
	if err := blobs.CleanOrphans(referenced); err != nil {
		return err
	}
	fmt.Printf("Cleaned %s, kept %d referenced upload(s)\n", cfg.Uploads.Dir, len(referenced))
	return nil
}

// ReferencedBlobURLs collects every background-image URL still reachable
// from the live records or a stored preset.
func ReferencedBlobURLs(ctx context.Context, m *mapper.Mapper) (map[string]bool, error) {
	referenced := make(map[string]bool)

	snap, err := m.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	for _, rec := range snap.Styles {
		if rec.Type == liveedit.StyleBackgroundImage {
			referenced[rec.Value.Raw] = true
		}
	}

	presets, err := m.ListPresets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	for _, p := range presets {
		for _, rec := range p.Styles {
			if rec.Type == liveedit.StyleBackgroundImage {
				referenced[rec.Value.Raw] = true
			}
		}
	}
	return referenced, nil
}

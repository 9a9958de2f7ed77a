package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/siteforge/liveedit/internal/config"
)

// InitCommand writes a default liveedit.yaml into the given directory.
func InitCommand(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	path := filepath.Join(dir, "liveedit.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

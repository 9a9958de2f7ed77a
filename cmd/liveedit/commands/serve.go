package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/siteforge/liveedit/internal/config"
	"github.com/siteforge/liveedit/internal/server"
)

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	dir := "."
	var configPath string
	var port string
	var host string
	var page string
	var operator string
	var readOnly bool
	var noWatch bool

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--read-only" {
			readOnly = true
		} else if arg == "--no-watch" {
			noWatch = true
		} else if arg == "--port" || arg == "-p" {
			if i+1 < len(args) {
				port = args[i+1]
				i++
			}
		} else if arg == "--host" {
			if i+1 < len(args) {
				host = args[i+1]
				i++
			}
		} else if arg == "--page" {
			if i+1 < len(args) {
				page = args[i+1]
				i++
			}
		} else if arg == "--config" || arg == "-c" {
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		} else if arg == "--operator" || arg == "-o" {
			if i+1 < len(args) {
				operator = args[i+1]
				i++
			}
		} else if !strings.HasPrefix(arg, "-") {
			dir = arg
		}
	}

	// Operator identity defaults to $USER when not specified.
	config.SetOperator(operator)
	config.SetReadOnly(readOnly)

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
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Printf("Using config: %s\n", configPath)
	} else {
		cfg, err = config.LoadFromDir(absDir)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	// CLI flags override config
	if port != "" {
		portInt, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port: %s", port)
		}
		cfg.Server.Port = portInt
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if page != "" {
		cfg.Page.File = page
	}
	if noWatch {
		cfg.Page.Watch = false
	}

	// Relative paths resolve against the served directory.
	if !filepath.IsAbs(cfg.Page.File) {
		cfg.Page.File = filepath.Join(absDir, cfg.Page.File)
	}
	if !filepath.IsAbs(cfg.Uploads.Dir) {
		cfg.Uploads.Dir = filepath.Join(absDir, cfg.Uploads.Dir)
	}
	if cfg.Store.Backend == "" || cfg.Store.Backend == "sqlite" {
		if p := cfg.Store.GetPath(); !filepath.IsAbs(p) {
			cfg.Store.Path = filepath.Join(absDir, p)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Live Page Editor\n\n")
	fmt.Printf("Page:    %s\n", cfg.Page.File)
	fmt.Printf("Storage: %s\n", cfg.Store.Backend)
	if op := config.GetOperator(); op != "" {
		fmt.Printf("Operator: %s\n", op)
	}
	if config.IsReadOnly() {
		fmt.Printf("Mode: read-only (edits rejected)\n")
	}
	if cfg.Page.Watch {
		fmt.Printf("Watching page file for changes\n")
	}
	fmt.Printf("Press Ctrl+C to stop\n\n")

	return srv.Start(ctx)
}

func init() {
	log.SetFlags(0) // Remove timestamp from logs
}

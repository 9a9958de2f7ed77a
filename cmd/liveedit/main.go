// Command liveedit serves a page with live visual editing: click-to-edit
// text, colors, backgrounds and layout, with snapshot presets.
package main

import (
	"fmt"
	"os"

	"github.com/siteforge/liveedit/cmd/liveedit/commands"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.ServeCommand(args)
	case "init":
		err = commands.InitCommand(args)
	case "cleanup":
		err = commands.CleanupCommand(args)
	case "version":
		fmt.Printf("liveedit version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("liveedit - Live visual page editor")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  liveedit serve [directory]     Start the editing server")
	fmt.Println("  liveedit init [directory]      Write a default liveedit.yaml")
	fmt.Println("  liveedit cleanup [directory]   Remove uploads no record references")
	fmt.Println("  liveedit version               Show version")
	fmt.Println("  liveedit help                  Show this help")
	fmt.Println()
	fmt.Println("Serve flags:")
	fmt.Println("  --config, -c <file>    Config file (default: liveedit.yaml in the directory)")
	fmt.Println("  --port, -p <port>      Listen port")
	fmt.Println("  --host <host>          Listen host")
	fmt.Println("  --page <file>          Page file to edit")
	fmt.Println("  --operator, -o <name>  Operator identity for audit logs")
	fmt.Println("  --read-only            Serve the page but reject all edits")
	fmt.Println("  --no-watch             Disable page file watching")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  liveedit serve                   # Serve the current directory's page")
	fmt.Println("  liveedit serve ./site            # Serve a specific directory")
	fmt.Println("  liveedit serve -p 9000           # Serve on a different port")
	fmt.Println("  liveedit serve --read-only       # Preview without editing")
}

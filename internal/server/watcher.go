package server

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the page file for changes and triggers a reload so
// edits made directly on disk show up in connected browsers.
type Watcher struct {
	watcher  *fsnotify.Watcher
	pagePath string
	onReload func(filePath string) error
	done     chan bool
	debug    bool
}

// NewWatcher creates a file watcher for the given page file. The file's
// directory is watched because editors typically replace the file on
// save rather than writing it in place.
func NewWatcher(pagePath string, onReload func(string) error, debug bool) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(pagePath)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsWatcher,
		pagePath: abs,
		onReload: onReload,
		done:     make(chan bool),
		debug:    debug,
	}
	if debug {
		log.Printf("[Watch] Watching %s", abs)
	}
	return w, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				// Only write/create events for the page file itself.
				if event.Op&fsnotify.Write != fsnotify.Write && event.Op&fsnotify.Create != fsnotify.Create {
					continue
				}
				abs, err := filepath.Abs(event.Name)
				if err != nil || abs != w.pagePath {
					continue
				}

				if w.debug {
					log.Printf("[Watch] File changed: %s", event.Name)
				}
				if err := w.onReload(event.Name); err != nil {
					log.Printf("[Watch] Reload failed for %s: %v", event.Name, err)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Watch] Error: %v", err)

			case <-w.done:
				return
			}
		}
	}()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

// Package server hosts the editing UI: it serves the rendered preview
// page, the editing REST API and the WebSocket channel that pushes reloads
// and notifications to connected browsers.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/siteforge/liveedit/internal/assets"
	"github.com/siteforge/liveedit/internal/config"
	"github.com/siteforge/liveedit/internal/mapper"
	"github.com/siteforge/liveedit/internal/messenger"
	"github.com/siteforge/liveedit/internal/preset"
	"github.com/siteforge/liveedit/internal/preview"
	"github.com/siteforge/liveedit/internal/session"
	"github.com/siteforge/liveedit/internal/snapshot"
	"github.com/siteforge/liveedit/internal/store"
)

// Server wires the editor components together and serves them over HTTP.
type Server struct {
	config  *config.Config
	docs    store.DocumentStore
	blobs   *store.DiskBlobStore
	records *mapper.Mapper
	surface *preview.Surface
	msgr    *messenger.Messenger
	session *session.Session
	engine  *snapshot.Engine
	presets *preset.Manager
	watcher *Watcher

	connections map[*websocket.Conn]bool
	connMu      sync.RWMutex
	wsWriteMu   sync.Mutex

	httpServer *http.Server
	rateCancel context.CancelFunc
	rateDone   <-chan struct{}
}

// New opens the configured backends and assembles the editor.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	docs, err := store.Open(ctx, store.Options{
		Backend:  cfg.Store.Backend,
		Path:     cfg.Store.GetPath(),
		DSN:      cfg.Store.GetDSN(),
		URI:      cfg.Store.GetURI(),
		Database: cfg.Store.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	blobs, err := store.NewDiskBlobStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
	if err != nil {
		docs.Close()
		return nil, err
	}

	records := mapper.New(docs, blobs)

	surface, err := preview.NewSurface(cfg.Page.File, records, cfg.Server.Debug)
	if err != nil {
		docs.Close()
		return nil, err
	}

	hostEnd, previewEnd := messenger.Pipe()
	msgr := messenger.New(hostEnd, cfg.Server.Debug)
	msgr.SetTimeout(cfg.Editor.GetSnapshotTimeout())
	hostEnd.Bind(msgr.HandleInbound)
	surface.Attach(previewEnd)

	// Kick the initial content load over the message channel, the same
	// path a reconnecting preview uses.
	if err := msgr.Notify(messenger.MsgLoadEditableContent, nil); err != nil {
		log.Printf("[Server] Failed to request content load: %v", err)
	}

	s := &Server{
		config:      cfg,
		docs:        docs,
		blobs:       blobs,
		records:     records,
		surface:     surface,
		msgr:        msgr,
		session:     session.New(surface, msgr, records),
		engine:      snapshot.NewEngine(msgr, records),
		connections: make(map[*websocket.Conn]bool),
	}
	s.presets = preset.NewManager(records, s.engine, s, preset.ContextConfirmer{}, s)

	if cfg.Page.Watch {
		watcher, err := NewWatcher(cfg.Page.File, s.reloadFromDisk, cfg.Server.Debug)
		if err != nil {
			log.Printf("[Server] File watching disabled: %v", err)
		} else {
			s.watcher = watcher
		}
	}

	return s, nil
}

// Reload re-reads persistence onto the preview and tells every connected
// browser to refresh. Implements the preset manager's reloader.
func (s *Server) Reload(ctx context.Context) error {
	if err := s.surface.Reload(ctx); err != nil {
		return err
	}
	s.BroadcastReload()
	return nil
}

func (s *Server) reloadFromDisk(path string) error {
	log.Printf("[Watch] Page changed: %s", path)
	return s.Reload(context.Background())
}

// Handler builds the route table.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/", WithCompression(http.HandlerFunc(s.handlePreview)))
	mux.Handle("/assets/",
		http.StripPrefix("/assets/", http.FileServer(http.FS(assets.ClientFS()))))
	mux.Handle(s.blobs.BaseURL(),
		http.StripPrefix(s.blobs.BaseURL(), http.FileServer(http.Dir(s.blobs.Dir()))))
	mux.HandleFunc("/ws", s.handleWebSocket)

	rateCtx, cancel := context.WithCancel(ctx)
	s.rateCancel = cancel
	rateLimit, done := RateLimitMiddleware(rateCtx,
		s.config.API.GetRateLimitRPS(), s.config.API.GetRateLimitBurst(), 0)
	s.rateDone = done

	var api http.Handler = http.HandlerFunc(s.handleAPI)
	api = AuthMiddleware(authConfig(s.config))(api)
	api = rateLimit(api)
	mux.Handle("/api/", api)

	return SecurityHeadersMiddleware()(mux)
}

func authConfig(cfg *config.Config) *config.AuthConfig {
	if cfg.API == nil {
		return nil
	}
	return cfg.API.Auth
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, injectClient(s.surface.RenderHTML())); err != nil {
		log.Printf("[Server] Failed to write preview: %v", err)
	}
}

// clientTags pull in the editor client: live reload over the WebSocket
// and click-to-select wiring.
const clientTags = `<link rel="stylesheet" href="/assets/liveedit.css"><script src="/assets/liveedit.js" defer></script>`

func injectClient(html string) string {
	if i := strings.LastIndex(html, "</body>"); i >= 0 {
		return html[:i] + clientTags + html[i:]
	}
	return html + clientTags
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watcher != nil {
		s.watcher.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on http://%s", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Shutdown stops the listener, the watcher and the backends.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			log.Printf("[Server] Watcher stop: %v", err)
		}
	}

	s.connMu.Lock()
	for conn := range s.connections {
		conn.Close()
	}
	s.connections = make(map[*websocket.Conn]bool)
	s.connMu.Unlock()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.rateCancel != nil {
		s.rateCancel()
		<-s.rateDone
	}
	if closeErr := s.docs.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

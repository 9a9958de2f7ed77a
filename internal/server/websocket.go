package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// browser-bound message types
const (
	wsReload       = "RELOAD"
	wsNotification = "NOTIFICATION"
)

// browserMessage is the envelope pushed to connected browsers.
type browserMessage struct {
	Type    string `json:"type"`
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleWebSocket upgrades the connection and keeps it registered for
// reload and notification broadcasts until the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Failed to upgrade connection: %v", err)
		return
	}
	defer func() {
		s.unregisterConnection(conn)
		conn.Close()
	}()

	s.registerConnection(conn)
	if s.config.Server.Debug {
		log.Printf("[WS] Client connected: %s", conn.RemoteAddr())
	}

	// Browsers only listen; drain until close so pings and the close
	// handshake are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close: %v", err)
			}
			break
		}
	}

	if s.config.Server.Debug {
		log.Printf("[WS] Client disconnected: %s", conn.RemoteAddr())
	}
}

func (s *Server) registerConnection(conn *websocket.Conn) {
	s.connMu.Lock()
	s.connections[conn] = true
	s.connMu.Unlock()
}

func (s *Server) unregisterConnection(conn *websocket.Conn) {
	s.connMu.Lock()
	delete(s.connections, conn)
	s.connMu.Unlock()
}

// BroadcastReload tells every connected browser to re-fetch the page.
func (s *Server) BroadcastReload() {
	s.broadcast(browserMessage{Type: wsReload})
}

// Notify pushes an operation outcome to every connected browser.
// Implements the preset manager's notifier.
func (s *Server) Notify(level, message string) {
	s.broadcast(browserMessage{Type: wsNotification, Level: level, Message: message})
}

func (s *Server) broadcast(msg browserMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] Failed to marshal broadcast: %v", err)
		return
	}

	s.connMu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.connMu.RUnlock()

	// Serialize writes; gorilla connections allow one concurrent writer.
	s.wsWriteMu.Lock()
	defer s.wsWriteMu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[WS] Failed to send to %s: %v", conn.RemoteAddr(), err)
			s.unregisterConnection(conn)
			conn.Close()
		}
	}

	if s.config.Server.Debug {
		log.Printf("[WS] Broadcast %s to %d client(s)", msg.Type, len(conns))
	}
}

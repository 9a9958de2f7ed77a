// Package messenger implements correlated request/response and
// fire-and-forget messaging between the editor host and the preview
// surface. The transport is pluggable: a WebSocket bridge in production,
// an in-process pipe in tests.
package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	liveedit "github.com/siteforge/liveedit"
)

// Wire message types exchanged with the preview surface.
const (
	MsgLoadEditableContent     = "LOAD_EDITABLE_CONTENT"
	MsgUpdateElementAfterSave  = "UPDATE_ELEMENT_AFTER_SAVE"
	MsgRequestPageSnapshot     = "REQUEST_PAGE_SNAPSHOT"
	MsgPageSnapshotResponse    = "PAGE_SNAPSHOT_RESPONSE"
	MsgRequestDefaultSnapshot  = "REQUEST_DEFAULT_SNAPSHOT"
	MsgDefaultSnapshotResponse = "DEFAULT_SNAPSHOT_RESPONSE"
	MsgContentLoaded           = "IFRAME_CONTENT_LOADED"
)

// DefaultTimeout bounds how long a snapshot request may stay pending.
const DefaultTimeout = 10 * time.Second

// Envelope is one JSON-serializable wire message.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// UpdatePayload is the data of an UPDATE_ELEMENT_AFTER_SAVE message.
type UpdatePayload struct {
	ID          string `json:"id"`
	Value       string `json:"value"`
	ElementType string `json:"elementType"`
}

// SnapshotPayload is the data of a snapshot response.
type SnapshotPayload struct {
	Snapshot *liveedit.Snapshot `json:"snapshot"`
}

// Transport delivers envelopes to the preview surface.
type Transport interface {
	// Send delivers one envelope. Delivery may be asynchronous.
	Send(env Envelope) error

	// Ready reports whether the preview surface is loaded and reachable.
	Ready() bool
}

// Messenger owns the pending-request table for snapshot round trips.
// One instance per editor session.
type Messenger struct {
	transport Transport
	timeout   time.Duration
	debug     bool

	mu      sync.Mutex
	pending map[string]chan *liveedit.Snapshot
}

// New creates a messenger over the given transport with the default
// request timeout.
func New(transport Transport, debug bool) *Messenger {
	return &Messenger{
		transport: transport,
		timeout:   DefaultTimeout,
		debug:     debug,
		pending:   make(map[string]chan *liveedit.Snapshot),
	}
}

// SetTimeout overrides the request timeout. Used by tests.
func (m *Messenger) SetTimeout(d time.Duration) {
	m.timeout = d
}

// Notify sends a fire-and-forget message.
func (m *Messenger) Notify(msgType string, data any) error {
	if !m.transport.Ready() {
		return liveedit.ErrPreviewUnavailable
	}
	env := Envelope{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Data = raw
	}
	return m.transport.Send(env)
}

// RequestSnapshot performs one correlated snapshot round trip. requestType
// is MsgRequestPageSnapshot or MsgRequestDefaultSnapshot. The request fails
// immediately when the preview surface is unreachable, and with ErrTimeout
// when no response arrives within the bound; a timed-out request is purged
// so a late response is dropped by the unknown-id rule.
func (m *Messenger) RequestSnapshot(ctx context.Context, requestType string) (*liveedit.Snapshot, error) {
	if !m.transport.Ready() {
		return nil, liveedit.ErrPreviewUnavailable
	}

	requestID := fmt.Sprintf("snapshot-%d-%s", time.Now().UnixMilli(), uuid.NewString())
	ch := make(chan *liveedit.Snapshot, 1)

	m.mu.Lock()
	m.pending[requestID] = ch
	m.mu.Unlock()

	if err := m.transport.Send(Envelope{Type: requestType, RequestID: requestID}); err != nil {
		m.purge(requestID)
		return nil, fmt.Errorf("send %s: %w", requestType, err)
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case snap := <-ch:
		if snap == nil {
			return nil, liveedit.ErrSnapshotEmpty
		}
		return snap, nil
	case <-timer.C:
		m.purge(requestID)
		return nil, liveedit.ErrTimeout
	case <-ctx.Done():
		m.purge(requestID)
		return nil, ctx.Err()
	}
}

// HandleInbound routes one envelope received from the preview surface.
// Responses for unknown or already-resolved request ids are dropped
// silently; there is no duplicate delivery.
func (m *Messenger) HandleInbound(env Envelope) {
	switch env.Type {
	case MsgPageSnapshotResponse, MsgDefaultSnapshotResponse:
		m.mu.Lock()
		ch, ok := m.pending[env.RequestID]
		if ok {
			delete(m.pending, env.RequestID)
		}
		m.mu.Unlock()

		if !ok {
			if m.debug {
				log.Printf("[Messenger] Dropping response for unknown request id %s", env.RequestID)
			}
			return
		}

		var payload SnapshotPayload
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				log.Printf("[Messenger] Malformed snapshot response for %s: %v", env.RequestID, err)
			}
		}
		ch <- payload.Snapshot

	case MsgContentLoaded:
		if m.debug {
			log.Printf("[Messenger] Preview surface reported content loaded")
		}

	default:
		if m.debug {
			log.Printf("[Messenger] Ignoring inbound message type %s", env.Type)
		}
	}
}

// PendingCount returns the number of in-flight requests. Used by tests.
func (m *Messenger) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Messenger) purge(requestID string) {
	m.mu.Lock()
	delete(m.pending, requestID)
	m.mu.Unlock()
}

// Package snapshot captures the full editable state of the page and
// applies a captured state back to persistence.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"sync"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/messenger"
)

// State is the engine's lifecycle phase, for UI surfacing.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateCaptured
	StateApplying
	StateApplied
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateCaptured:
		return "captured"
	case StateApplying:
		return "applying"
	case StateApplied:
		return "applied"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Requester asks the preview surface for a snapshot. Implemented by the
// messenger.
type Requester interface {
	RequestSnapshot(ctx context.Context, requestType string) (*liveedit.Snapshot, error)
}

// Replacer swaps whole collections during an apply. Implemented by the
// persistence mapper.
type Replacer interface {
	ReplaceTexts(ctx context.Context, texts map[string]liveedit.TextRecord) error
	ReplaceStyles(ctx context.Context, styles map[string]liveedit.StyleRecord) error
	ReplaceLayouts(ctx context.Context, layouts map[string]liveedit.LayoutRecord) error
}

// Engine captures and applies full-page snapshots. The default snapshot is
// requested once and cached: the page's shipped defaults cannot change
// while the process runs.
type Engine struct {
	requests Requester
	records  Replacer

	mu       sync.Mutex
	state    State
	defaults *liveedit.Snapshot
}

func NewEngine(requests Requester, records Replacer) *Engine {
	return &Engine{requests: requests, records: records}
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// CaptureCurrent reads the page's live rendered state, including unsaved
// live-preview edits.
func (e *Engine) CaptureCurrent(ctx context.Context) (*liveedit.Snapshot, error) {
	return e.capture(ctx, messenger.MsgRequestPageSnapshot)
}

// CaptureDefault reads the page's shipped default values, unaffected by
// any edits made since load. Cached after the first successful request.
func (e *Engine) CaptureDefault(ctx context.Context) (*liveedit.Snapshot, error) {
	e.mu.Lock()
	cached := e.defaults
	e.mu.Unlock()
	if cached != nil {
		return cached.Clone(), nil
	}

	snap, err := e.capture(ctx, messenger.MsgRequestDefaultSnapshot)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.defaults = snap.Clone()
	e.mu.Unlock()
	return snap, nil
}

func (e *Engine) capture(ctx context.Context, requestType string) (*liveedit.Snapshot, error) {
	e.setState(StateCapturing)
	snap, err := e.requests.RequestSnapshot(ctx, requestType)
	if err != nil {
		e.setState(StateFailed)
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	e.setState(StateCaptured)
	log.Printf("[Snapshot] Captured %d texts, %d styles, %d layouts",
		len(snap.Texts), len(snap.Styles), len(snap.Layouts))
	return snap, nil
}

// Apply overwrites the persisted collections with the snapshot's contents.
// Destructive: records the snapshot does not name are deleted. Stops at
// the first failing collection and leaves the earlier ones as written;
// there is no rollback, the caller re-applies or re-captures instead.
func (e *Engine) Apply(ctx context.Context, snap *liveedit.Snapshot) error {
	if snap.Empty() {
		return liveedit.ErrSnapshotEmpty
	}

	e.setState(StateApplying)
	if err := e.records.ReplaceTexts(ctx, snap.Texts); err != nil {
		e.setState(StateFailed)
		return fmt.Errorf("apply texts: %w", err)
	}
	if err := e.records.ReplaceStyles(ctx, snap.Styles); err != nil {
		e.setState(StateFailed)
		return fmt.Errorf("apply styles: %w", err)
	}
	if err := e.records.ReplaceLayouts(ctx, snap.Layouts); err != nil {
		e.setState(StateFailed)
		return fmt.Errorf("apply layouts: %w", err)
	}
	e.setState(StateApplied)
	log.Printf("[Snapshot] Applied %d texts, %d styles, %d layouts",
		len(snap.Texts), len(snap.Styles), len(snap.Layouts))
	return nil
}

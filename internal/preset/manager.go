// Package preset manages the named snapshot slots: saving the live page
// state into a slot and restoring a slot back onto the page.
package preset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	liveedit "github.com/siteforge/liveedit"
)

// MaxNameLength caps preset names; longer input is truncated, not rejected.
const MaxNameLength = 60

// Confirmer asks the operator to approve a destructive action. The HTTP
// server satisfies it with a client-supplied confirmation flag carried in
// the request context; tests with a canned answer.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Notifier surfaces operation outcomes to the editing UI.
type Notifier interface {
	Notify(level, message string)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, prompt string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

type confirmationKey struct{}

// WithConfirmation records the operator's answer on the context.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmationKey{}, confirmed)
}

// ContextConfirmer answers from the request context; absent means declined.
type ContextConfirmer struct{}

func (ContextConfirmer) Confirm(ctx context.Context, _ string) bool {
	confirmed, _ := ctx.Value(confirmationKey{}).(bool)
	return confirmed
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level, message string)

func (f NotifierFunc) Notify(level, message string) { f(level, message) }

// AutoApprove approves every confirmation. For headless or scripted use
// where the caller has already decided.
var AutoApprove = ConfirmerFunc(func(context.Context, string) bool { return true })

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(level, message string) { log.Printf("[Preset] %s: %s", level, message) }

// Slots reads and writes preset documents. Implemented by the persistence
// mapper.
type Slots interface {
	GetPreset(ctx context.Context, slot int) (*liveedit.Preset, error)
	PutPreset(ctx context.Context, p *liveedit.Preset) (time.Time, error)
	DeletePreset(ctx context.Context, slot int) error
	ListPresets(ctx context.Context) ([]*liveedit.Preset, error)
}

// Snapshots captures and applies full-page state. Implemented by the
// snapshot engine.
type Snapshots interface {
	CaptureCurrent(ctx context.Context) (*liveedit.Snapshot, error)
	CaptureDefault(ctx context.Context) (*liveedit.Snapshot, error)
	Apply(ctx context.Context, snap *liveedit.Snapshot) error
}

// Reloader refreshes the preview after persistence changed underneath it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Manager coordinates the preset slots. One operation runs at a time: a
// second call while busy fails fast with ErrBusy instead of queueing.
type Manager struct {
	slots     Slots
	snapshots Snapshots
	reloader  Reloader
	confirm   Confirmer
	notify    Notifier

	busy sync.Mutex
}

func NewManager(slots Slots, snapshots Snapshots, reloader Reloader, confirm Confirmer, notify Notifier) *Manager {
	return &Manager{
		slots:     slots,
		snapshots: snapshots,
		reloader:  reloader,
		confirm:   confirm,
		notify:    notify,
	}
}

func (m *Manager) acquire() error {
	if !m.busy.TryLock() {
		return liveedit.ErrBusy
	}
	return nil
}

// Save captures the page's current live state into a slot. Overwriting an
// occupied slot keeps its creation time.
func (m *Manager) Save(ctx context.Context, slot int, name string) (*liveedit.Preset, error) {
	if !liveedit.ValidSlot(slot) {
		return nil, liveedit.ErrInvalidSlot
	}
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.busy.Unlock()

	snap, err := m.snapshots.CaptureCurrent(ctx)
	if err != nil {
		m.notify.Notify("error", "Failed to capture page state")
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Preset %d", slot)
	}
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}

	now := time.Now().UTC()
	p := &liveedit.Preset{
		Slot:      slot,
		Name:      name,
		Texts:     snap.Texts,
		Styles:    snap.Styles,
		Layouts:   snap.Layouts,
		UpdatedAt: now,
	}
	existing, err := m.slots.GetPreset(ctx, slot)
	switch {
	case errors.Is(err, liveedit.ErrSlotEmpty):
		p.CreatedAt = now
	case err != nil:
		return nil, err
	default:
		p.CreatedAt = existing.CreatedAt
	}

	if _, err := m.slots.PutPreset(ctx, p); err != nil {
		m.notify.Notify("error", "Failed to save preset")
		return nil, err
	}
	log.Printf("[Preset] Saved slot %d (%q): %d texts, %d styles, %d layouts",
		slot, p.Name, len(p.Texts), len(p.Styles), len(p.Layouts))
	m.notify.Notify("success", fmt.Sprintf("Preset %q saved", p.Name))
	return p, nil
}

// Load applies a slot's stored state over the page. Destructive for
// current content, so the operator confirms first; declining is a no-op.
func (m *Manager) Load(ctx context.Context, slot int) error {
	if !liveedit.ValidSlot(slot) {
		return liveedit.ErrInvalidSlot
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.busy.Unlock()

	p, err := m.slots.GetPreset(ctx, slot)
	if err != nil {
		return err
	}
	if !m.confirm.Confirm(ctx, fmt.Sprintf("Load preset %q? Current page content will be replaced.", p.Name)) {
		return nil
	}

	if err := m.snapshots.Apply(ctx, p.Snapshot()); err != nil {
		m.notify.Notify("error", "Failed to apply preset")
		return err
	}
	if err := m.reloader.Reload(ctx); err != nil {
		return fmt.Errorf("reload after preset load: %w", err)
	}
	log.Printf("[Preset] Loaded slot %d (%q)", slot, p.Name)
	m.notify.Notify("success", fmt.Sprintf("Preset %q loaded", p.Name))
	return nil
}

// Delete clears a slot after confirmation. The page content is untouched.
func (m *Manager) Delete(ctx context.Context, slot int) error {
	if !liveedit.ValidSlot(slot) {
		return liveedit.ErrInvalidSlot
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.busy.Unlock()

	p, err := m.slots.GetPreset(ctx, slot)
	if err != nil {
		return err
	}
	if !m.confirm.Confirm(ctx, fmt.Sprintf("Delete preset %q?", p.Name)) {
		return nil
	}
	if err := m.slots.DeletePreset(ctx, slot); err != nil {
		m.notify.Notify("error", "Failed to delete preset")
		return err
	}
	log.Printf("[Preset] Deleted slot %d (%q)", slot, p.Name)
	m.notify.Notify("success", fmt.Sprintf("Preset %q deleted", p.Name))
	return nil
}

// ResetToDefault restores the page's shipped default values, discarding
// all persisted edits. Presets stay stored.
func (m *Manager) ResetToDefault(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.busy.Unlock()

	if !m.confirm.Confirm(ctx, "Reset the page to its default content? All saved edits will be lost.") {
		return nil
	}

	snap, err := m.snapshots.CaptureDefault(ctx)
	if err != nil {
		m.notify.Notify("error", "Failed to read default page state")
		return err
	}
	if err := m.snapshots.Apply(ctx, snap); err != nil {
		m.notify.Notify("error", "Failed to reset page")
		return err
	}
	if err := m.reloader.Reload(ctx); err != nil {
		return fmt.Errorf("reload after reset: %w", err)
	}
	log.Printf("[Preset] Reset page to defaults")
	m.notify.Notify("success", "Page reset to defaults")
	return nil
}

// List returns the occupied slots.
func (m *Manager) List(ctx context.Context) ([]*liveedit.Preset, error) {
	return m.slots.ListPresets(ctx)
}

package liveedit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared across the editor subsystem.
var (
	// ErrTimeout is returned when a cross-context request goes unanswered
	// within its bound. Retryable; no state is corrupted.
	ErrTimeout = errors.New("timed out while waiting for the snapshot response")

	// ErrPreviewUnavailable is returned when the preview surface is not yet
	// loaded or reachable. Requests fail immediately instead of hanging.
	ErrPreviewUnavailable = errors.New("live preview is not ready yet")

	// ErrSlotEmpty is returned when loading or deleting an unsaved preset slot.
	ErrSlotEmpty = errors.New("preset slot is empty")

	// ErrInvalidSlot is returned for slots outside 1..MaxPresetSlots.
	ErrInvalidSlot = errors.New("preset slot out of range")

	// ErrSnapshotEmpty is returned when a snapshot payload is missing.
	ErrSnapshotEmpty = errors.New("snapshot payload is empty")

	// ErrNoSelection is returned when a save is attempted with no element
	// selected or no editable properties resolved.
	ErrNoSelection = errors.New("no element selected or no editable properties")

	// ErrBusy is returned when a preset operation is already in flight.
	ErrBusy = errors.New("a preset operation is already in progress")
)

// SaveError aggregates per-property failures from a single-element save.
// Properties that saved successfully are not rolled back.
type SaveError struct {
	Failures map[PropertyKind]error
}

func (e *SaveError) Error() string {
	kinds := make([]string, 0, len(e.Failures))
	for k := range e.Failures {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return fmt.Sprintf("some changes failed to save: %s", strings.Join(kinds, ", "))
}

// Unwrap exposes one underlying failure for errors.Is/As chains.
func (e *SaveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

package preset

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/mapper"
	"github.com/siteforge/liveedit/internal/messenger"
	"github.com/siteforge/liveedit/internal/snapshot"
	"github.com/siteforge/liveedit/internal/store"
)

// liveState fakes the preview surface: an in-memory "current page" that
// snapshot requests read and reloads overwrite from persistence.
type liveState struct {
	mu       sync.Mutex
	current  *liveedit.Snapshot
	defaults *liveedit.Snapshot
	mapper   *mapper.Mapper
	reloads  int

	// When holding is set, the first snapshot request signals it and then
	// parks until release is closed. Lets a test pin an operation mid-flight.
	holdOnce sync.Once
	holding  chan struct{}
	release  chan struct{}
}

func (l *liveState) RequestSnapshot(_ context.Context, requestType string) (*liveedit.Snapshot, error) {
	if l.holding != nil {
		l.holdOnce.Do(func() { close(l.holding) })
		<-l.release
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if requestType == messenger.MsgRequestDefaultSnapshot {
		return l.defaults.Clone(), nil
	}
	return l.current.Clone(), nil
}

func (l *liveState) Reload(ctx context.Context) error {
	snap, err := l.mapper.LoadAll(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.current = snap
	l.reloads++
	l.mu.Unlock()
	return nil
}

type fixture struct {
	manager   *Manager
	mapper    *mapper.Mapper
	live      *liveState
	confirmed bool
	messages  []string
}

func newFixture(t *testing.T, currentText string) *fixture {
	t.Helper()
	m := mapper.New(store.NewMemoryStore(), nil)

	current := liveedit.NewSnapshot()
	current.Texts["hero-title-text"] = liveedit.TextRecord{Content: currentText}
	defaults := liveedit.NewSnapshot()
	defaults.Texts["hero-title-text"] = liveedit.TextRecord{Content: "Default Title"}

	live := &liveState{current: current, defaults: defaults, mapper: m}
	engine := snapshot.NewEngine(live, m)

	f := &fixture{mapper: m, live: live, confirmed: true}
	f.manager = NewManager(m, engine, live,
		ConfirmerFunc(func(context.Context, string) bool { return f.confirmed }),
		NotifierFunc(func(level, msg string) { f.messages = append(f.messages, level+": "+msg) }),
	)
	return f
}

func TestSaveCapturesCurrentState(t *testing.T) {
	f := newFixture(t, "Live Edit")
	p, err := f.manager.Save(context.Background(), 1, "Campaign")
	require.NoError(t, err)

	assert.Equal(t, "Campaign", p.Name)
	assert.Equal(t, "Live Edit", p.Texts["hero-title-text"].Content)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	stored, err := f.mapper.GetPreset(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Live Edit", stored.Texts["hero-title-text"].Content)
}

func TestSaveTruncatesLongNames(t *testing.T) {
	f := newFixture(t, "x")
	p, err := f.manager.Save(context.Background(), 1, strings.Repeat("n", 100))
	require.NoError(t, err)
	assert.Len(t, p.Name, MaxNameLength)
}

func TestSaveDefaultsEmptyName(t *testing.T) {
	f := newFixture(t, "x")
	p, err := f.manager.Save(context.Background(), 2, "   ")
	require.NoError(t, err)
	assert.Equal(t, "Preset 2", p.Name)
}

// Overwriting an occupied slot keeps its original creation time.
func TestSaveOverwriteKeepsCreatedAt(t *testing.T) {
	f := newFixture(t, "First")
	ctx := context.Background()

	first, err := f.manager.Save(ctx, 1, "v1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	f.live.current.Texts["hero-title-text"] = liveedit.TextRecord{Content: "Second"}
	second, err := f.manager.Save(ctx, 1, "v2")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(second.CreatedAt))
	assert.Equal(t, "Second", second.Texts["hero-title-text"].Content)
}

func TestSaveRejectsInvalidSlot(t *testing.T) {
	f := newFixture(t, "x")
	_, err := f.manager.Save(context.Background(), 0, "nope")
	assert.ErrorIs(t, err, liveedit.ErrInvalidSlot)
	_, err = f.manager.Save(context.Background(), liveedit.MaxPresetSlots+1, "nope")
	assert.ErrorIs(t, err, liveedit.ErrInvalidSlot)
}

// Save then load round-trips the page state and refreshes the preview.
func TestLoadAppliesAndReloads(t *testing.T) {
	f := newFixture(t, "Campaign Copy")
	ctx := context.Background()

	_, err := f.manager.Save(ctx, 1, "Campaign")
	require.NoError(t, err)

	// Page drifts after the save.
	f.live.current.Texts["hero-title-text"] = liveedit.TextRecord{Content: "Drifted"}

	require.NoError(t, f.manager.Load(ctx, 1))
	assert.Equal(t, "Campaign Copy", f.live.current.Texts["hero-title-text"].Content)
	assert.Equal(t, 1, f.live.reloads)
}

func TestLoadEmptySlot(t *testing.T) {
	f := newFixture(t, "x")
	err := f.manager.Load(context.Background(), 4)
	assert.ErrorIs(t, err, liveedit.ErrSlotEmpty)
}

// Declining the confirmation leaves everything untouched.
func TestLoadDeclinedIsNoOp(t *testing.T) {
	f := newFixture(t, "Saved")
	ctx := context.Background()
	_, err := f.manager.Save(ctx, 1, "Keep")
	require.NoError(t, err)

	f.live.current.Texts["hero-title-text"] = liveedit.TextRecord{Content: "Untouched"}
	f.confirmed = false

	require.NoError(t, f.manager.Load(ctx, 1))
	assert.Equal(t, "Untouched", f.live.current.Texts["hero-title-text"].Content)
	assert.Equal(t, 0, f.live.reloads)
}

func TestDeleteClearsSlotOnly(t *testing.T) {
	f := newFixture(t, "Content")
	ctx := context.Background()
	_, err := f.manager.Save(ctx, 3, "Doomed")
	require.NoError(t, err)

	require.NoError(t, f.manager.Delete(ctx, 3))
	_, err = f.mapper.GetPreset(ctx, 3)
	assert.ErrorIs(t, err, liveedit.ErrSlotEmpty)

	// Page content is not affected by deleting a preset.
	assert.Equal(t, "Content", f.live.current.Texts["hero-title-text"].Content)
}

// Scenario: reset to defaults wipes edits but keeps stored presets.
func TestResetToDefaultKeepsPresets(t *testing.T) {
	f := newFixture(t, "Edited Title")
	ctx := context.Background()

	_, err := f.manager.Save(ctx, 1, "Before Reset")
	require.NoError(t, err)

	require.NoError(t, f.manager.ResetToDefault(ctx))
	assert.Equal(t, "Default Title", f.live.current.Texts["hero-title-text"].Content)

	p, err := f.mapper.GetPreset(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Edited Title", p.Texts["hero-title-text"].Content)
}

// A second operation while one runs fails fast instead of queueing.
func TestBusyGate(t *testing.T) {
	f := newFixture(t, "x")
	f.live.holding = make(chan struct{})
	f.live.release = make(chan struct{})

	errs := make(chan error, 1)
	go func() {
		_, err := f.manager.Save(context.Background(), 1, "slow")
		errs <- err
	}()

	// The first save is parked inside its snapshot capture, gate held.
	<-f.live.holding
	_, err := f.manager.Save(context.Background(), 2, "fast")
	assert.ErrorIs(t, err, liveedit.ErrBusy)

	close(f.live.release)
	require.NoError(t, <-errs)

	// Gate released; the next operation goes through.
	_, err = f.manager.Save(context.Background(), 2, "fast")
	assert.NoError(t, err)
}

func TestListReturnsOccupiedSlots(t *testing.T) {
	f := newFixture(t, "x")
	ctx := context.Background()
	_, err := f.manager.Save(ctx, 2, "Two")
	require.NoError(t, err)
	_, err = f.manager.Save(ctx, 5, "Five")
	require.NoError(t, err)

	all, err := f.manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[0].Slot)
	assert.Equal(t, 5, all[1].Slot)
}

// Package mapper translates editable property values to and from the
// persisted document collections, including the legacy value shapes older
// page versions stored.
package mapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/store"
)

// Mapper binds the document store and blob store into property-level
// operations. Writes are merge writes: the backend assigns the
// authoritative modification timestamp and fields not named by the update
// survive.
type Mapper struct {
	docs  store.DocumentStore
	blobs store.BlobStore
}

func New(docs store.DocumentStore, blobs store.BlobStore) *Mapper {
	return &Mapper{docs: docs, blobs: blobs}
}

// SaveText persists a text or placeholder value.
func (m *Mapper) SaveText(ctx context.Context, id, content string) (time.Time, error) {
	doc, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return time.Time{}, err
	}
	return m.docs.Put(ctx, liveedit.CollectionTexts, id, doc, true)
}

// SaveStyle persists a style record under its property id.
func (m *Mapper) SaveStyle(ctx context.Context, id string, rec liveedit.StyleRecord) (time.Time, error) {
	doc, err := json.Marshal(map[string]any{"type": rec.Type, "value": rec.Value})
	if err != nil {
		return time.Time{}, err
	}
	return m.docs.Put(ctx, liveedit.CollectionStyles, id, doc, true)
}

// SaveLayout persists a per-element layout override.
func (m *Mapper) SaveLayout(ctx context.Context, id string, rec liveedit.LayoutRecord) (time.Time, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return time.Time{}, err
	}
	return m.docs.Put(ctx, liveedit.CollectionLayouts, id, doc, true)
}

// SaveBackgroundImage uploads the blob, persists the style record pointing
// at the new URL, then deletes the replaced blob. The delete is best
// effort: a stale file is preferable to a save that reports failure after
// the record already changed.
func (m *Mapper) SaveBackgroundImage(ctx context.Context, id, ext string, content io.Reader, oldURL string) (string, time.Time, error) {
	url, err := m.blobs.Save(ctx, ext, content)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("upload background image: %w", err)
	}
	ts, err := m.SaveStyle(ctx, id, liveedit.StyleRecord{
		Type:  liveedit.StyleBackgroundImage,
		Value: liveedit.StyleValue{Raw: url},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	if oldURL != "" && oldURL != url {
		if delErr := m.blobs.Delete(ctx, oldURL); delErr != nil {
			log.Printf("[Mapper] Failed to delete replaced image %s: %v", oldURL, delErr)
		}
	}
	return url, ts, nil
}

// GetText reads one persisted text record. store.ErrNotFound when absent.
func (m *Mapper) GetText(ctx context.Context, id string) (liveedit.TextRecord, error) {
	raw, err := m.docs.Get(ctx, liveedit.CollectionTexts, id)
	if err != nil {
		return liveedit.TextRecord{}, err
	}
	var rec liveedit.TextRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return liveedit.TextRecord{}, fmt.Errorf("decode text %s: %w", id, err)
	}
	return rec, nil
}

// GetStyle reads one persisted style record, normalizing legacy shapes.
func (m *Mapper) GetStyle(ctx context.Context, id string) (liveedit.StyleRecord, error) {
	raw, err := m.docs.Get(ctx, liveedit.CollectionStyles, id)
	if err != nil {
		return liveedit.StyleRecord{}, err
	}
	rec, err := DecodeStyle(raw)
	if err != nil {
		return liveedit.StyleRecord{}, fmt.Errorf("decode style %s: %w", id, err)
	}
	return rec, nil
}

// GetLayout reads one persisted layout record.
func (m *Mapper) GetLayout(ctx context.Context, id string) (liveedit.LayoutRecord, error) {
	raw, err := m.docs.Get(ctx, liveedit.CollectionLayouts, id)
	if err != nil {
		return liveedit.LayoutRecord{}, err
	}
	var rec liveedit.LayoutRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return liveedit.LayoutRecord{}, fmt.Errorf("decode layout %s: %w", id, err)
	}
	return rec, nil
}

// LoadAll reads the three editable collections into one snapshot.
// Implements the preview surface's record source.
func (m *Mapper) LoadAll(ctx context.Context) (*liveedit.Snapshot, error) {
	snap := liveedit.NewSnapshot()

	texts, err := m.docs.List(ctx, liveedit.CollectionTexts)
	if err != nil {
		return nil, fmt.Errorf("load texts: %w", err)
	}
	for id, raw := range texts {
		var rec liveedit.TextRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Printf("[Mapper] Skipping malformed text record %s: %v", id, err)
			continue
		}
		snap.Texts[id] = rec
	}

	styles, err := m.docs.List(ctx, liveedit.CollectionStyles)
	if err != nil {
		return nil, fmt.Errorf("load styles: %w", err)
	}
	for id, raw := range styles {
		rec, err := DecodeStyle(raw)
		if err != nil {
			log.Printf("[Mapper] Skipping malformed style record %s: %v", id, err)
			continue
		}
		snap.Styles[id] = rec
	}

	layouts, err := m.docs.List(ctx, liveedit.CollectionLayouts)
	if err != nil {
		return nil, fmt.Errorf("load layouts: %w", err)
	}
	for id, raw := range layouts {
		var rec liveedit.LayoutRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Printf("[Mapper] Skipping malformed layout record %s: %v", id, err)
			continue
		}
		snap.Layouts[id] = rec
	}

	return snap, nil
}

// DecodeStyle unmarshals a style document, normalizing the legacy shapes:
// records without a type field are classified by value, and outline records
// that stored the bare string "on" or "off" become structured values.
func DecodeStyle(raw json.RawMessage) (liveedit.StyleRecord, error) {
	var rec liveedit.StyleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return liveedit.StyleRecord{}, err
	}
	if rec.Type == "" {
		rec.Type = classifyLegacyValue(rec.Value.Raw)
	}
	if rec.Type == liveedit.StyleBackgroundImage {
		// Old records stored the css url(...) wrapper; keep bare URLs.
		if url, ok := liveedit.ExtractImageURL(rec.Value.Raw); ok {
			rec.Value.Raw = url
		}
	}
	if rec.Type == liveedit.StyleTextOutline && rec.Value.Outline == nil {
		rec.Value.Outline = &liveedit.OutlineValue{
			Enabled: rec.Value.Raw == "on",
			Color:   "#000000",
			Width:   "1",
		}
		rec.Value.Raw = ""
	}
	return rec, nil
}

func classifyLegacyValue(value string) string {
	switch {
	case liveedit.IsGradient(value):
		return liveedit.StyleGradient
	case strings.HasPrefix(value, "url("),
		strings.HasPrefix(value, "http://"),
		strings.HasPrefix(value, "https://"),
		strings.HasPrefix(value, "/"):
		return liveedit.StyleBackgroundImage
	case value == "on", value == "off":
		return liveedit.StyleTextOutline
	default:
		return liveedit.StyleColor
	}
}

// ReplaceTexts clears the texts collection and writes the given records.
func (m *Mapper) ReplaceTexts(ctx context.Context, texts map[string]liveedit.TextRecord) error {
	if err := m.docs.DeleteAll(ctx, liveedit.CollectionTexts); err != nil {
		return err
	}
	for id, rec := range texts {
		doc, err := json.Marshal(map[string]string{"content": rec.Content})
		if err != nil {
			return err
		}
		if _, err := m.docs.Put(ctx, liveedit.CollectionTexts, id, doc, false); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceStyles clears the styles collection and writes the given records.
func (m *Mapper) ReplaceStyles(ctx context.Context, styles map[string]liveedit.StyleRecord) error {
	if err := m.docs.DeleteAll(ctx, liveedit.CollectionStyles); err != nil {
		return err
	}
	for id, rec := range styles {
		doc, err := json.Marshal(map[string]any{"type": rec.Type, "value": rec.Value})
		if err != nil {
			return err
		}
		if _, err := m.docs.Put(ctx, liveedit.CollectionStyles, id, doc, false); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceLayouts clears the layouts collection and writes the given records.
func (m *Mapper) ReplaceLayouts(ctx context.Context, layouts map[string]liveedit.LayoutRecord) error {
	if err := m.docs.DeleteAll(ctx, liveedit.CollectionLayouts); err != nil {
		return err
	}
	for id, rec := range layouts {
		doc, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := m.docs.Put(ctx, liveedit.CollectionLayouts, id, doc, false); err != nil {
			return err
		}
	}
	return nil
}

// GetPreset reads one preset slot. liveedit.ErrSlotEmpty when unused.
func (m *Mapper) GetPreset(ctx context.Context, slot int) (*liveedit.Preset, error) {
	if !liveedit.ValidSlot(slot) {
		return nil, liveedit.ErrInvalidSlot
	}
	raw, err := m.docs.Get(ctx, liveedit.CollectionPresets, liveedit.PresetDocID(slot))
	if errors.Is(err, store.ErrNotFound) {
		return nil, liveedit.ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	var p liveedit.Preset
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode preset %d: %w", slot, err)
	}
	p.Slot = slot
	return &p, nil
}

// PutPreset writes a preset slot as a merge, so an existing createdAt
// survives an overwrite.
func (m *Mapper) PutPreset(ctx context.Context, p *liveedit.Preset) (time.Time, error) {
	if !liveedit.ValidSlot(p.Slot) {
		return time.Time{}, liveedit.ErrInvalidSlot
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return time.Time{}, err
	}
	return m.docs.Put(ctx, liveedit.CollectionPresets, liveedit.PresetDocID(p.Slot), doc, true)
}

// DeletePreset removes a preset slot. Deleting an empty slot is a no-op.
func (m *Mapper) DeletePreset(ctx context.Context, slot int) error {
	if !liveedit.ValidSlot(slot) {
		return liveedit.ErrInvalidSlot
	}
	return m.docs.Delete(ctx, liveedit.CollectionPresets, liveedit.PresetDocID(slot))
}

// ListPresets returns the occupied slots in ascending order.
func (m *Mapper) ListPresets(ctx context.Context) ([]*liveedit.Preset, error) {
	out := make([]*liveedit.Preset, 0, liveedit.MaxPresetSlots)
	for slot := 1; slot <= liveedit.MaxPresetSlots; slot++ {
		p, err := m.GetPreset(ctx, slot)
		if errors.Is(err, liveedit.ErrSlotEmpty) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

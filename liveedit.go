// Package liveedit provides the core types for the live visual editor:
// editable property kinds, persisted record shapes, full-page snapshots
// and named layout presets.
package liveedit

import (
	"encoding/json"
	"fmt"
	"time"
)

// PropertyKind identifies one semantic editable aspect of a page element.
type PropertyKind string

const (
	KindText            PropertyKind = "text"
	KindPlaceholder     PropertyKind = "placeholder"
	KindColor           PropertyKind = "color"
	KindBackgroundColor PropertyKind = "backgroundColor"
	KindBackground      PropertyKind = "background"
	KindLink            PropertyKind = "link"
	KindTextOutline     PropertyKind = "textOutline"
	KindLayout          PropertyKind = "layout"
)

// Style record types as stored in the styles collection.
const (
	StyleColor           = "color"
	StyleBackgroundColor = "background-color"
	StyleGradient        = "gradient"
	StyleBackgroundImage = "background-image"
	StyleTextOutline     = "text-outline"
	StyleLink            = "link"
)

// Persisted collection names.
const (
	CollectionTexts   = "editableTexts"
	CollectionStyles  = "editableStyles"
	CollectionLayouts = "editableLayouts"
	CollectionPresets = "layoutPresets"
)

// MaxPresetSlots is the number of named preset slots available.
const MaxPresetSlots = 5

// PropertyMap maps a property kind to its persisted property id.
// Produced by the editable registry when an element is selected.
type PropertyMap map[PropertyKind]string

// TextRecord is a persisted text or placeholder value.
type TextRecord struct {
	Content      string    `json:"content"`
	LastModified time.Time `json:"lastModified,omitzero"`
}

// OutlineValue is the structured value of a text-outline style record.
type OutlineValue struct {
	Enabled bool   `json:"enabled"`
	Color   string `json:"color"`
	Width   string `json:"width"`
}

// StyleValue is the value of a style record. Most styles carry a plain CSS
// string; text-outline carries a structured OutlineValue. Legacy outline
// records stored the string "on" instead of an object.
type StyleValue struct {
	Raw     string
	Outline *OutlineValue
}

// MarshalJSON encodes the outline object when present, else the raw string.
func (v StyleValue) MarshalJSON() ([]byte, error) {
	if v.Outline != nil {
		return json.Marshal(v.Outline)
	}
	return json.Marshal(v.Raw)
}

// UnmarshalJSON accepts either a plain string or an outline object.
func (v *StyleValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Raw = s
		v.Outline = nil
		return nil
	}
	var o OutlineValue
	if err := json.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("style value is neither string nor outline object: %w", err)
	}
	v.Outline = &o
	v.Raw = ""
	return nil
}

// String returns the raw CSS value, or the legacy "on"/"off" form for
// outline objects.
func (v StyleValue) String() string {
	if v.Outline != nil {
		if v.Outline.Enabled {
			return "on"
		}
		return "off"
	}
	return v.Raw
}

// StyleRecord is a persisted style value with its discriminating type.
type StyleRecord struct {
	Type         string     `json:"type"`
	Value        StyleValue `json:"value"`
	LastModified time.Time  `json:"lastModified,omitzero"`
}

// LayoutRecord is a persisted per-element layout override. All values are
// raw CSS strings; Order is numeric-as-string. Empty fields mean "no
// override" for that property.
type LayoutRecord struct {
	MarginTop      string    `json:"marginTop,omitempty"`
	MarginRight    string    `json:"marginRight,omitempty"`
	MarginBottom   string    `json:"marginBottom,omitempty"`
	MarginLeft     string    `json:"marginLeft,omitempty"`
	PaddingTop     string    `json:"paddingTop,omitempty"`
	PaddingRight   string    `json:"paddingRight,omitempty"`
	PaddingBottom  string    `json:"paddingBottom,omitempty"`
	PaddingLeft    string    `json:"paddingLeft,omitempty"`
	Order          string    `json:"order,omitempty"`
	TextAlign      string    `json:"textAlign,omitempty"`
	JustifyContent string    `json:"justifyContent,omitempty"`
	AlignItems     string    `json:"alignItems,omitempty"`
	Gap            string    `json:"gap,omitempty"`
	LastModified   time.Time `json:"lastModified,omitzero"`
}

// Snapshot is the full editable state of a page: one bucket per persisted
// collection. Immutable once captured; Apply consumes it atomically.
type Snapshot struct {
	Texts   map[string]TextRecord   `json:"texts"`
	Styles  map[string]StyleRecord  `json:"styles"`
	Layouts map[string]LayoutRecord `json:"layouts"`
}

// NewSnapshot returns an empty snapshot with all buckets allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Texts:   make(map[string]TextRecord),
		Styles:  make(map[string]StyleRecord),
		Layouts: make(map[string]LayoutRecord),
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := NewSnapshot()
	for id, r := range s.Texts {
		c.Texts[id] = r
	}
	for id, r := range s.Styles {
		if r.Value.Outline != nil {
			o := *r.Value.Outline
			r.Value.Outline = &o
		}
		c.Styles[id] = r
	}
	for id, r := range s.Layouts {
		c.Layouts[id] = r
	}
	return c
}

// Empty reports whether the snapshot carries no entries at all.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.Texts) == 0 && len(s.Styles) == 0 && len(s.Layouts) == 0)
}

// Preset is one named snapshot slot (1..MaxPresetSlots). The snapshot
// buckets are stored flattened in the preset document, matching the
// layoutPresets collection shape.
type Preset struct {
	Slot      int                     `json:"-"`
	Name      string                  `json:"name"`
	Texts     map[string]TextRecord   `json:"texts"`
	Styles    map[string]StyleRecord  `json:"styles"`
	Layouts   map[string]LayoutRecord `json:"layouts"`
	CreatedAt time.Time               `json:"createdAt,omitzero"`
	UpdatedAt time.Time               `json:"updatedAt,omitzero"`
}

// Snapshot returns the preset's stored state as a Snapshot.
func (p *Preset) Snapshot() *Snapshot {
	s := &Snapshot{Texts: p.Texts, Styles: p.Styles, Layouts: p.Layouts}
	if s.Texts == nil {
		s.Texts = make(map[string]TextRecord)
	}
	if s.Styles == nil {
		s.Styles = make(map[string]StyleRecord)
	}
	if s.Layouts == nil {
		s.Layouts = make(map[string]LayoutRecord)
	}
	return s
}

// PresetDocID returns the document id for a preset slot ("preset-3").
func PresetDocID(slot int) string {
	return fmt.Sprintf("preset-%d", slot)
}

// ValidSlot reports whether slot is within the preset slot range.
func ValidSlot(slot int) bool {
	return slot >= 1 && slot <= MaxPresetSlots
}

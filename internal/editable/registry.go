// Package editable resolves rendered page elements to their editable
// properties. Resolution is driven by a small ordered rule table over
// declarative data attributes, evaluated against a generic attribute bag so
// the logic is testable without a real document.
package editable

import (
	liveedit "github.com/siteforge/liveedit"
)

// Marker attribute names recognized on page elements.
const (
	AttrTextID            = "data-editable-text-id"
	AttrPlaceholderID     = "data-editable-placeholder-id"
	AttrColorID           = "data-editable-color-id"
	AttrOutlineID         = "data-editable-outline-id"
	AttrBackgroundColorID = "data-editable-background-color-id"
	AttrGradientID        = "data-editable-gradient-id"         // legacy
	AttrBackgroundImageID = "data-editable-background-image-id" // legacy
	AttrBackgroundID      = "data-editable-background-id"       // generic, supersedes the legacy two
	AttrLinkID            = "data-editable-link-id"
	AttrLayoutID          = "data-editable-layout-id"
)

// OutlineSuffix derives an implicit outline id from a color id when no
// explicit outline marker is present.
const OutlineSuffix = "__outline"

// AttrBag is a read-only view of one element's attributes plus its position
// in the tree. Parent returns nil at the traversal root.
type AttrBag interface {
	Attr(name string) (string, bool)
	Parent() AttrBag
}

type markerRule struct {
	attr string
	kind liveedit.PropertyKind
}

// Rules are evaluated in order; later rules for the same kind overwrite
// earlier ones, which is how the generic background id supersedes the
// legacy gradient and background-image ids when both are present.
var markerRules = []markerRule{
	{AttrTextID, liveedit.KindText},
	{AttrPlaceholderID, liveedit.KindPlaceholder},
	{AttrColorID, liveedit.KindColor},
	{AttrBackgroundColorID, liveedit.KindBackgroundColor},
	{AttrGradientID, liveedit.KindBackground},
	{AttrBackgroundImageID, liveedit.KindBackground},
	{AttrBackgroundID, liveedit.KindBackground},
	{AttrLinkID, liveedit.KindLink},
	{AttrLayoutID, liveedit.KindLayout},
}

// HasMarker reports whether the element itself carries at least one
// recognized editable marker.
func HasMarker(el AttrBag) bool {
	for _, r := range markerRules {
		if v, ok := el.Attr(r.attr); ok && v != "" {
			return true
		}
	}
	if v, ok := el.Attr(AttrOutlineID); ok && v != "" {
		return true
	}
	return false
}

// Closest walks up the ancestor chain (inclusive) and returns the first
// element carrying an editable marker, or nil when the traversal root is
// reached without a hit.
func Closest(el AttrBag) AttrBag {
	for cur := el; cur != nil; cur = cur.Parent() {
		if HasMarker(cur) {
			return cur
		}
	}
	return nil
}

// Resolve returns the property map for the closest editable ancestor of el
// (inclusive). An empty map means the interaction is a no-op. Resolution is
// pure and deterministic; it is re-run on every pointer interaction.
func Resolve(el AttrBag) liveedit.PropertyMap {
	props := liveedit.PropertyMap{}
	target := Closest(el)
	if target == nil {
		return props
	}

	for _, r := range markerRules {
		if v, ok := target.Attr(r.attr); ok && v != "" {
			props[r.kind] = v
		}
	}

	// A text-color element implicitly exposes an outline property. An
	// explicit outline id always wins over the derived <color-id>__outline.
	if explicit, ok := target.Attr(AttrOutlineID); ok && explicit != "" {
		props[liveedit.KindTextOutline] = explicit
	} else if colorID, ok := props[liveedit.KindColor]; ok {
		props[liveedit.KindTextOutline] = colorID + OutlineSuffix
	}

	return props
}

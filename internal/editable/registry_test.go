package editable

import (
	"testing"

	liveedit "github.com/siteforge/liveedit"
)

// fakeBag is a minimal attribute bag for resolution tests.
type fakeBag struct {
	attrs  map[string]string
	parent *fakeBag
}

func (b *fakeBag) Attr(name string) (string, bool) {
	v, ok := b.attrs[name]
	return v, ok
}

func (b *fakeBag) Parent() AttrBag {
	if b.parent == nil {
		return nil
	}
	return b.parent
}

func bag(attrs map[string]string) *fakeBag {
	return &fakeBag{attrs: attrs}
}

func TestResolveSingleMarkers(t *testing.T) {
	tests := []struct {
		attr string
		kind liveedit.PropertyKind
	}{
		{AttrTextID, liveedit.KindText},
		{AttrPlaceholderID, liveedit.KindPlaceholder},
		{AttrBackgroundColorID, liveedit.KindBackgroundColor},
		{AttrBackgroundID, liveedit.KindBackground},
		{AttrLinkID, liveedit.KindLink},
		{AttrLayoutID, liveedit.KindLayout},
	}

	for _, tt := range tests {
		props := Resolve(bag(map[string]string{tt.attr: "some-id"}))
		if props[tt.kind] != "some-id" {
			t.Errorf("attr %s: expected %s id 'some-id', got %q", tt.attr, tt.kind, props[tt.kind])
		}
		if len(props) != 1 {
			t.Errorf("attr %s: expected 1 property, got %d", tt.attr, len(props))
		}
	}
}

func TestResolveNoMarker(t *testing.T) {
	props := Resolve(bag(map[string]string{"class": "hero"}))
	if len(props) != 0 {
		t.Fatalf("expected empty map, got %v", props)
	}
}

func TestResolveWalksAncestors(t *testing.T) {
	root := bag(map[string]string{AttrTextID: "hero-title-text"})
	mid := bag(map[string]string{"class": "wrapper"})
	mid.parent = root
	leaf := bag(nil)
	leaf.parent = mid

	props := Resolve(leaf)
	if props[liveedit.KindText] != "hero-title-text" {
		t.Fatalf("expected ancestor text id, got %v", props)
	}
}

func TestResolveStopsAtClosest(t *testing.T) {
	root := bag(map[string]string{AttrTextID: "outer-text"})
	inner := bag(map[string]string{AttrLinkID: "inner-link"})
	inner.parent = root

	props := Resolve(inner)
	if _, ok := props[liveedit.KindText]; ok {
		t.Error("resolution should stop at the closest marked element")
	}
	if props[liveedit.KindLink] != "inner-link" {
		t.Errorf("expected inner link id, got %v", props)
	}
}

func TestResolveCoOccurringMarkers(t *testing.T) {
	props := Resolve(bag(map[string]string{
		AttrTextID:  "cta-text",
		AttrColorID: "cta-color",
		AttrLinkID:  "cta-link",
	}))

	if props[liveedit.KindText] != "cta-text" {
		t.Errorf("text: got %q", props[liveedit.KindText])
	}
	if props[liveedit.KindColor] != "cta-color" {
		t.Errorf("color: got %q", props[liveedit.KindColor])
	}
	if props[liveedit.KindLink] != "cta-link" {
		t.Errorf("link: got %q", props[liveedit.KindLink])
	}
}

func TestResolveDerivedOutlineID(t *testing.T) {
	props := Resolve(bag(map[string]string{AttrColorID: "hero-color"}))
	if props[liveedit.KindTextOutline] != "hero-color__outline" {
		t.Errorf("expected derived outline id, got %q", props[liveedit.KindTextOutline])
	}
}

func TestResolveExplicitOutlineWins(t *testing.T) {
	props := Resolve(bag(map[string]string{
		AttrColorID:   "hero-color",
		AttrOutlineID: "hero-outline",
	}))
	if props[liveedit.KindTextOutline] != "hero-outline" {
		t.Errorf("explicit outline id must win, got %q", props[liveedit.KindTextOutline])
	}
}

func TestResolveExplicitOutlineAlone(t *testing.T) {
	props := Resolve(bag(map[string]string{AttrOutlineID: "solo-outline"}))
	if props[liveedit.KindTextOutline] != "solo-outline" {
		t.Errorf("expected outline id, got %v", props)
	}
	if _, ok := props[liveedit.KindColor]; ok {
		t.Error("no color property should be resolved")
	}
}

func TestResolveGenericBackgroundSupersedesLegacy(t *testing.T) {
	props := Resolve(bag(map[string]string{
		AttrGradientID:        "old-gradient",
		AttrBackgroundImageID: "old-image",
		AttrBackgroundID:      "hero-bg",
	}))
	if props[liveedit.KindBackground] != "hero-bg" {
		t.Errorf("generic background id must supersede legacy ids, got %q", props[liveedit.KindBackground])
	}
}

func TestResolveLegacyBackgroundMarkers(t *testing.T) {
	props := Resolve(bag(map[string]string{AttrGradientID: "legacy-gradient"}))
	if props[liveedit.KindBackground] != "legacy-gradient" {
		t.Errorf("legacy gradient id resolves to background kind, got %v", props)
	}

	props = Resolve(bag(map[string]string{AttrBackgroundImageID: "legacy-image"}))
	if props[liveedit.KindBackground] != "legacy-image" {
		t.Errorf("legacy image id resolves to background kind, got %v", props)
	}
}

func TestResolveDeterministic(t *testing.T) {
	b := bag(map[string]string{AttrColorID: "c1", AttrBackgroundID: "b1"})
	first := Resolve(b)
	second := Resolve(b)
	if len(first) != len(second) {
		t.Fatal("resolution must be re-runnable with identical results")
	}
	for k, v := range first {
		if second[k] != v {
			t.Errorf("property %s differs between runs", k)
		}
	}
}

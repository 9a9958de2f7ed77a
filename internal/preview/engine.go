package preview

import (
	"fmt"

	liveedit "github.com/siteforge/liveedit"
)

// Background sub-types selectable in the edit panel.
const (
	BackgroundGradient = "gradient"
	BackgroundImage    = "image"
)

// Selection is the active editable element with its resolved property map.
// At most one selection is active at a time; it is discarded when the edit
// panel closes or a different element is selected.
type Selection struct {
	Element    *Element
	Properties liveedit.PropertyMap
}

// FormState carries the in-progress edit-panel field values. Which fields
// are consulted is decided by the selection's property map, not by the
// fields themselves.
type FormState struct {
	Text string

	TextColor string // hex

	OutlineEnabled bool
	OutlineColor   string // hex
	OutlineWidth   string // pixels, numeric-as-string

	Link string

	BackgroundColor string // hex

	BackgroundType string // BackgroundGradient or BackgroundImage
	Gradient       liveedit.Gradient
	ImageURL       string
	ImageData      string // local data URL for an uploaded-but-unsaved file

	Layout *liveedit.LayoutRecord
}

// ApplyLivePreview pushes every edited field directly onto the selected
// element for immediate feedback. No persistence, no validation beyond hex
// pattern matching: an invalid hex value is ignored and the previous valid
// value stays. Safe to call on every keystroke; idempotent for unchanged
// input.
func ApplyLivePreview(sel *Selection, form FormState) {
	if sel == nil || sel.Element == nil || len(sel.Properties) == 0 {
		return
	}
	el := sel.Element

	if _, ok := sel.Properties[liveedit.KindPlaceholder]; ok {
		el.SetAttr("placeholder", form.Text)
	} else if _, ok := sel.Properties[liveedit.KindText]; ok {
		el.SetText(form.Text)
	}

	if _, ok := sel.Properties[liveedit.KindColor]; ok {
		if liveedit.IsHexColor(form.TextColor) {
			el.SetStyle("color", form.TextColor)
		}
	}

	if _, ok := sel.Properties[liveedit.KindTextOutline]; ok {
		applyTextOutline(el, form.OutlineEnabled, form.OutlineColor, form.OutlineWidth)
	}

	if _, ok := sel.Properties[liveedit.KindLink]; ok {
		applyLink(el, form.Link)
	}

	if _, ok := sel.Properties[liveedit.KindBackgroundColor]; ok {
		if liveedit.IsHexColor(form.BackgroundColor) {
			el.SetStyle("background-color", form.BackgroundColor)
			el.SetStyle("background-image", "none")
		}
	}

	if _, ok := sel.Properties[liveedit.KindBackground]; ok {
		applyBackground(el, form)
	}

	if _, ok := sel.Properties[liveedit.KindLayout]; ok && form.Layout != nil {
		ApplyLayout(el, *form.Layout)
	}
}

// applyBackground clears prior background layers before applying the
// radio-selected sub-type, so a gradient never lingers under an image or
// vice versa.
func applyBackground(el *Element, form FormState) {
	el.SetStyle("background-image", "none")
	el.SetStyle("background-color", "transparent")

	switch form.BackgroundType {
	case BackgroundGradient:
		g := form.Gradient
		if !liveedit.IsHexColor(g.Color1) || !liveedit.IsHexColor(g.Color2) {
			return
		}
		el.SetStyle("background-image", g.CSS())
		el.RemoveStyle("background-size")
		el.RemoveStyle("background-position")
		el.RemoveStyle("background-repeat")

	case BackgroundImage:
		url := form.ImageURL
		if form.ImageData != "" {
			// Uploaded but not yet saved: render the local data preview.
			url = form.ImageData
		}
		el.SetStyle("background-image", liveedit.CSSImageURL(url))
		if url != "" {
			el.SetStyle("background-size", "cover")
			el.SetStyle("background-position", "center")
			el.SetStyle("background-repeat", "no-repeat")
		}
	}
}

func applyTextOutline(el *Element, enabled bool, color, width string) {
	if !enabled {
		el.RemoveStyle("-webkit-text-stroke")
		el.RemoveStyle("paint-order")
		return
	}
	if !liveedit.IsHexColor(color) {
		return
	}
	if width == "" {
		width = "1"
	}
	el.SetStyle("-webkit-text-stroke", fmt.Sprintf("%spx %s", width, color))
	el.SetStyle("paint-order", "stroke fill")
}

func applyLink(el *Element, href string) {
	if href != "" {
		el.SetAttr("href", href)
		el.SetAttr("target", "_blank")
		el.SetAttr("rel", "noreferrer noopener")
	} else {
		el.SetAttr("href", "#")
		el.RemoveAttr("target")
		el.RemoveAttr("rel")
	}
}

// layoutProps pairs LayoutRecord fields with their CSS properties.
var layoutProps = []struct {
	css string
	get func(liveedit.LayoutRecord) string
}{
	{"margin-top", func(r liveedit.LayoutRecord) string { return r.MarginTop }},
	{"margin-right", func(r liveedit.LayoutRecord) string { return r.MarginRight }},
	{"margin-bottom", func(r liveedit.LayoutRecord) string { return r.MarginBottom }},
	{"margin-left", func(r liveedit.LayoutRecord) string { return r.MarginLeft }},
	{"padding-top", func(r liveedit.LayoutRecord) string { return r.PaddingTop }},
	{"padding-right", func(r liveedit.LayoutRecord) string { return r.PaddingRight }},
	{"padding-bottom", func(r liveedit.LayoutRecord) string { return r.PaddingBottom }},
	{"padding-left", func(r liveedit.LayoutRecord) string { return r.PaddingLeft }},
	{"order", func(r liveedit.LayoutRecord) string { return r.Order }},
	{"text-align", func(r liveedit.LayoutRecord) string { return r.TextAlign }},
	{"justify-content", func(r liveedit.LayoutRecord) string { return r.JustifyContent }},
	{"align-items", func(r liveedit.LayoutRecord) string { return r.AlignItems }},
	{"gap", func(r liveedit.LayoutRecord) string { return r.Gap }},
}

// ApplyLayout writes every non-empty override of a layout record onto the
// element's inline styles.
func ApplyLayout(el *Element, rec liveedit.LayoutRecord) {
	for _, p := range layoutProps {
		if v := p.get(rec); v != "" {
			el.SetStyle(p.css, v)
		}
	}
}

// LayoutFromElement reads the element's inline layout overrides into a
// record. Fields with no inline value stay empty.
func LayoutFromElement(el *Element) liveedit.LayoutRecord {
	return liveedit.LayoutRecord{
		MarginTop:      el.Style("margin-top"),
		MarginRight:    el.Style("margin-right"),
		MarginBottom:   el.Style("margin-bottom"),
		MarginLeft:     el.Style("margin-left"),
		PaddingTop:     el.Style("padding-top"),
		PaddingRight:   el.Style("padding-right"),
		PaddingBottom:  el.Style("padding-bottom"),
		PaddingLeft:    el.Style("padding-left"),
		Order:          el.Style("order"),
		TextAlign:      el.Style("text-align"),
		JustifyContent: el.Style("justify-content"),
		AlignItems:     el.Style("align-items"),
		Gap:            el.Style("gap"),
	}
}

package preview

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/editable"
	"github.com/siteforge/liveedit/internal/messenger"
)

// RecordSource supplies the persisted editable state for a full content
// load. Implemented by the persistence mapper.
type RecordSource interface {
	LoadAll(ctx context.Context) (*liveedit.Snapshot, error)
}

// Surface is the preview side of the cross-context channel. It owns the
// parsed page document, captures the default value table once per page load
// before any remote data is applied, and answers the host's messages.
type Surface struct {
	mu       sync.Mutex
	pagePath string
	doc      *Document
	defaults *liveedit.Snapshot
	records  RecordSource
	out      *messenger.PipeTransport
	debug    bool
}

// NewSurface parses the page at pagePath and captures its defaults.
func NewSurface(pagePath string, records RecordSource, debug bool) (*Surface, error) {
	doc, err := ParseFile(pagePath)
	if err != nil {
		return nil, err
	}
	s := &Surface{
		pagePath: pagePath,
		doc:      doc,
		defaults: captureSnapshot(doc),
		records:  records,
		debug:    debug,
	}
	return s, nil
}

// NewSurfaceFromDocument wires a surface around an already-parsed document.
// Used by tests.
func NewSurfaceFromDocument(doc *Document, records RecordSource, debug bool) *Surface {
	return &Surface{
		doc:      doc,
		defaults: captureSnapshot(doc),
		records:  records,
		debug:    debug,
	}
}

// Attach binds the surface to its end of the message pipe and announces
// that the content is loaded.
func (s *Surface) Attach(end *messenger.PipeTransport) {
	s.mu.Lock()
	s.out = end
	s.mu.Unlock()
	end.Bind(s.handleMessage)
	_ = end.Send(messenger.Envelope{Type: messenger.MsgContentLoaded})
}

// Document returns the live page document.
func (s *Surface) Document() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// RenderHTML serializes the current document state for a viewing browser.
func (s *Surface) RenderHTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.HTML()
}

// Select resolves the editable properties of the element with the given
// html id. Returns nil when the element does not exist or carries no
// markers (a no-op interaction, not an error).
func (s *Surface) Select(elementID string) *Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.doc.FindByID(elementID)
	if el == nil {
		return nil
	}
	target := editable.Closest(el)
	if target == nil {
		return nil
	}
	te := target.(*Element)
	return &Selection{Element: te, Properties: editable.Resolve(te)}
}

// CaptureCurrent reads the live rendered state of every marked element.
func (s *Surface) CaptureCurrent() *liveedit.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return captureSnapshot(s.doc)
}

// CaptureDefault returns the default value table captured at page load. It
// is stable across arbitrary live edits in the same session.
func (s *Surface) CaptureDefault() *liveedit.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaults.Clone()
}

// Reload re-parses the page from disk, rebuilds the default table and
// reapplies the persisted records. Called on page-template changes and
// after a snapshot apply.
func (s *Surface) Reload(ctx context.Context) error {
	if s.pagePath != "" {
		doc, err := ParseFile(s.pagePath)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.doc = doc
		s.defaults = captureSnapshot(doc)
		s.mu.Unlock()
	}
	return s.ApplyPersisted(ctx)
}

// ApplyPersisted loads all persisted records and writes them onto the
// document, the preview-side half of LOAD_EDITABLE_CONTENT.
func (s *Surface) ApplyPersisted(ctx context.Context) error {
	if s.records == nil {
		return nil
	}
	snap, err := s.records.LoadAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range snap.Texts {
		s.applyText(id, rec.Content)
	}
	for id, rec := range snap.Styles {
		s.applyStyle(id, rec)
	}
	for id, rec := range snap.Layouts {
		if el := s.doc.FindByAttr(editable.AttrLayoutID, id); el != nil {
			ApplyLayout(el, rec)
		}
	}
	return nil
}

func (s *Surface) handleMessage(env messenger.Envelope) {
	switch env.Type {
	case messenger.MsgLoadEditableContent:
		if err := s.ApplyPersisted(context.Background()); err != nil {
			log.Printf("[Preview] Failed to load editable content: %v", err)
		}

	case messenger.MsgUpdateElementAfterSave:
		var payload messenger.UpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Printf("[Preview] Malformed update payload: %v", err)
			return
		}
		s.ApplyUpdate(payload)

	case messenger.MsgRequestPageSnapshot:
		s.respond(env.RequestID, messenger.MsgPageSnapshotResponse, s.CaptureCurrent())

	case messenger.MsgRequestDefaultSnapshot:
		s.respond(env.RequestID, messenger.MsgDefaultSnapshotResponse, s.CaptureDefault())

	default:
		if s.debug {
			log.Printf("[Preview] Ignoring message type %s", env.Type)
		}
	}
}

func (s *Surface) respond(requestID, msgType string, snap *liveedit.Snapshot) {
	s.mu.Lock()
	out := s.out
	s.mu.Unlock()
	if out == nil {
		return
	}
	data, err := json.Marshal(messenger.SnapshotPayload{Snapshot: snap})
	if err != nil {
		log.Printf("[Preview] Failed to marshal snapshot: %v", err)
		return
	}
	if err := out.Send(messenger.Envelope{Type: msgType, RequestID: requestID, Data: data}); err != nil {
		log.Printf("[Preview] Failed to send %s: %v", msgType, err)
	}
}

// ApplyUpdate applies one saved value directly, without a full reload.
func (s *Surface) ApplyUpdate(p messenger.UpdatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p.ElementType {
	case string(liveedit.KindText), string(liveedit.KindPlaceholder):
		s.applyText(p.ID, p.Value)
	case liveedit.StyleColor:
		s.applyStyle(p.ID, liveedit.StyleRecord{Type: liveedit.StyleColor, Value: liveedit.StyleValue{Raw: p.Value}})
	case liveedit.StyleBackgroundColor:
		s.applyStyle(p.ID, liveedit.StyleRecord{Type: liveedit.StyleBackgroundColor, Value: liveedit.StyleValue{Raw: p.Value}})
	case liveedit.StyleGradient:
		s.applyStyle(p.ID, liveedit.StyleRecord{Type: liveedit.StyleGradient, Value: liveedit.StyleValue{Raw: p.Value}})
	case liveedit.StyleBackgroundImage:
		s.applyStyle(p.ID, liveedit.StyleRecord{Type: liveedit.StyleBackgroundImage, Value: liveedit.StyleValue{Raw: p.Value}})
	case liveedit.StyleLink:
		s.applyStyle(p.ID, liveedit.StyleRecord{Type: liveedit.StyleLink, Value: liveedit.StyleValue{Raw: p.Value}})
	case string(liveedit.KindLayout):
		var rec liveedit.LayoutRecord
		if err := json.Unmarshal([]byte(p.Value), &rec); err != nil {
			log.Printf("[Preview] Malformed layout update for %s: %v", p.ID, err)
			return
		}
		if el := s.doc.FindByAttr(editable.AttrLayoutID, p.ID); el != nil {
			ApplyLayout(el, rec)
		}
	case liveedit.StyleTextOutline:
		// Value is the raw -webkit-text-stroke value; empty disables.
		if el := s.findStyleElement(p.ID); el != nil {
			if p.Value == "" {
				el.RemoveStyle("-webkit-text-stroke")
				el.RemoveStyle("paint-order")
			} else {
				el.SetStyle("-webkit-text-stroke", p.Value)
				el.SetStyle("paint-order", "stroke fill")
			}
		}
	default:
		if s.debug {
			log.Printf("[Preview] Ignoring update for element type %s", p.ElementType)
		}
	}
}

func (s *Surface) applyText(id, content string) {
	if el := s.doc.FindByAttr(editable.AttrTextID, id); el != nil {
		el.SetText(content)
		return
	}
	if el := s.doc.FindByAttr(editable.AttrPlaceholderID, id); el != nil {
		el.SetAttr("placeholder", content)
	}
}

// styleMarkers lists every attribute under which a style record's id may be
// declared, including the legacy background markers and the outline marker.
var styleMarkers = []string{
	editable.AttrColorID,
	editable.AttrBackgroundColorID,
	editable.AttrBackgroundID,
	editable.AttrGradientID,
	editable.AttrBackgroundImageID,
	editable.AttrOutlineID,
	editable.AttrLinkID,
}

func (s *Surface) findStyleElement(id string) *Element {
	for _, marker := range styleMarkers {
		if el := s.doc.FindByAttr(marker, id); el != nil {
			return el
		}
	}
	// Derived outline ids point at the element carrying the base color id.
	if base, ok := strings.CutSuffix(id, editable.OutlineSuffix); ok {
		return s.doc.FindByAttr(editable.AttrColorID, base)
	}
	return nil
}

func (s *Surface) applyStyle(id string, rec liveedit.StyleRecord) {
	el := s.findStyleElement(id)
	if el == nil {
		return
	}

	switch rec.Type {
	case liveedit.StyleColor:
		el.SetStyle("color", rec.Value.Raw)
	case liveedit.StyleBackgroundColor:
		el.SetStyle("background-color", rec.Value.Raw)
		el.SetStyle("background-image", "none")
	case liveedit.StyleGradient:
		el.SetStyle("background-image", rec.Value.Raw)
		el.RemoveStyle("background-size")
		el.RemoveStyle("background-position")
		el.RemoveStyle("background-repeat")
	case liveedit.StyleBackgroundImage:
		el.SetStyle("background-image", liveedit.CSSImageURL(rec.Value.Raw))
		if rec.Value.Raw != "" && rec.Value.Raw != "none" {
			el.SetStyle("background-size", "cover")
			el.SetStyle("background-position", "center")
			el.SetStyle("background-repeat", "no-repeat")
		}
	case liveedit.StyleLink:
		applyLink(el, rec.Value.Raw)
	case liveedit.StyleTextOutline:
		o := rec.Value.Outline
		if o == nil || !o.Enabled {
			el.RemoveStyle("-webkit-text-stroke")
			el.RemoveStyle("paint-order")
			return
		}
		width := o.Width
		if width == "" {
			width = "1"
		}
		el.SetStyle("-webkit-text-stroke", width+"px "+o.Color)
		el.SetStyle("paint-order", "stroke fill")
	}
}

// captureSnapshot reads the rendered value of every marked element into the
// three snapshot buckets. Background-bearing elements are classified at
// capture time: gradient, image URL, or solid background color.
func captureSnapshot(doc *Document) *liveedit.Snapshot {
	snap := liveedit.NewSnapshot()

	for _, el := range doc.ElementsWithAttr(editable.AttrTextID) {
		id, _ := el.Attr(editable.AttrTextID)
		snap.Texts[id] = liveedit.TextRecord{Content: el.Text()}
	}
	for _, el := range doc.ElementsWithAttr(editable.AttrPlaceholderID) {
		id, _ := el.Attr(editable.AttrPlaceholderID)
		placeholder, _ := el.Attr("placeholder")
		snap.Texts[id] = liveedit.TextRecord{Content: placeholder}
	}

	for _, el := range doc.ElementsWithAttr(editable.AttrColorID) {
		id, _ := el.Attr(editable.AttrColorID)
		if c := el.Style("color"); c != "" {
			snap.Styles[id] = liveedit.StyleRecord{
				Type:  liveedit.StyleColor,
				Value: liveedit.StyleValue{Raw: liveedit.RGBToHex(c)},
			}
		}
		captureOutline(snap, el, id)
	}

	for _, el := range doc.ElementsWithAttr(editable.AttrBackgroundColorID) {
		id, _ := el.Attr(editable.AttrBackgroundColorID)
		if c := el.Style("background-color"); c != "" {
			snap.Styles[id] = liveedit.StyleRecord{
				Type:  liveedit.StyleBackgroundColor,
				Value: liveedit.StyleValue{Raw: liveedit.RGBToHex(c)},
			}
		}
	}

	for _, marker := range []string{editable.AttrBackgroundID, editable.AttrGradientID, editable.AttrBackgroundImageID} {
		for _, el := range doc.ElementsWithAttr(marker) {
			id, _ := el.Attr(marker)
			if _, seen := snap.Styles[id]; seen {
				continue
			}
			if rec, ok := classifyBackground(el); ok {
				snap.Styles[id] = rec
			}
		}
	}

	for _, el := range doc.ElementsWithAttr(editable.AttrLinkID) {
		id, _ := el.Attr(editable.AttrLinkID)
		href, _ := el.Attr("href")
		snap.Styles[id] = liveedit.StyleRecord{
			Type:  liveedit.StyleLink,
			Value: liveedit.StyleValue{Raw: href},
		}
	}

	for _, el := range doc.ElementsWithAttr(editable.AttrLayoutID) {
		id, _ := el.Attr(editable.AttrLayoutID)
		rec := LayoutFromElement(el)
		if rec == (liveedit.LayoutRecord{}) {
			// No inline overrides; absence means markup default.
			continue
		}
		snap.Layouts[id] = rec
	}

	return snap
}

func captureOutline(snap *liveedit.Snapshot, el *Element, colorID string) {
	outlineID, ok := el.Attr(editable.AttrOutlineID)
	if !ok || outlineID == "" {
		outlineID = colorID + editable.OutlineSuffix
	}
	stroke := el.Style("-webkit-text-stroke")
	if stroke == "" {
		return
	}
	width, color, _ := strings.Cut(stroke, " ")
	snap.Styles[outlineID] = liveedit.StyleRecord{
		Type: liveedit.StyleTextOutline,
		Value: liveedit.StyleValue{Outline: &liveedit.OutlineValue{
			Enabled: true,
			Color:   liveedit.RGBToHex(strings.TrimSpace(color)),
			Width:   strings.TrimSuffix(width, "px"),
		}},
	}
}

// classifyBackground buckets a background-bearing element by its rendered
// state: linear-gradient, non-none image (bare URL extracted), or solid
// background color.
func classifyBackground(el *Element) (liveedit.StyleRecord, bool) {
	bgImage := el.Style("background-image")
	if liveedit.IsGradient(bgImage) {
		return liveedit.StyleRecord{
			Type:  liveedit.StyleGradient,
			Value: liveedit.StyleValue{Raw: bgImage},
		}, true
	}
	if url, ok := liveedit.ExtractImageURL(bgImage); ok {
		return liveedit.StyleRecord{
			Type:  liveedit.StyleBackgroundImage,
			Value: liveedit.StyleValue{Raw: url},
		}, true
	}
	if c := el.Style("background-color"); c != "" && c != "transparent" {
		return liveedit.StyleRecord{
			Type:  liveedit.StyleBackgroundColor,
			Value: liveedit.StyleValue{Raw: liveedit.RGBToHex(c)},
		}, true
	}
	return liveedit.StyleRecord{}, false
}

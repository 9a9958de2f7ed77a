// Package session runs one editing session: the active selection, the
// edit-panel seed values, live preview and the concurrent property save.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/mapper"
	"github.com/siteforge/liveedit/internal/messenger"
	"github.com/siteforge/liveedit/internal/preview"
	"github.com/siteforge/liveedit/internal/security"
)

// Session is the host-side editing state. One selection is active at a
// time; selecting a new element discards the previous one.
type Session struct {
	surface *preview.Surface
	msgr    *messenger.Messenger
	records *mapper.Mapper

	mu        sync.Mutex
	selection *preview.Selection
}

func New(surface *preview.Surface, msgr *messenger.Messenger, records *mapper.Mapper) *Session {
	return &Session{surface: surface, msgr: msgr, records: records}
}

// Seed is what the edit panel opens with: the resolved properties and the
// form prefilled from persisted values, falling back to the element's
// rendered state.
type Seed struct {
	ElementID  string
	Properties liveedit.PropertyMap
	Form       preview.FormState
}

// SaveRequest is a form submission. ImageUpload, when set, carries a new
// background image to store before the style record is written.
type SaveRequest struct {
	preview.FormState
	ImageUpload io.Reader
	ImageExt    string
}

// Select makes the element (or its closest marked ancestor) the active
// selection and builds the edit-panel seed. Elements without any editable
// marker yield ErrNoSelection, which callers treat as "nothing to edit".
func (s *Session) Select(ctx context.Context, elementID string) (*Seed, error) {
	sel := s.surface.Select(elementID)
	if sel == nil {
		return nil, liveedit.ErrNoSelection
	}
	s.mu.Lock()
	s.selection = sel
	s.mu.Unlock()

	seed := &Seed{ElementID: elementID, Properties: sel.Properties}
	s.seedForm(ctx, sel, &seed.Form)
	return seed, nil
}

// Deselect drops the active selection.
func (s *Session) Deselect() {
	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()
}

// Selection returns the active selection, or nil.
func (s *Session) Selection() *preview.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Preview pushes the form state onto the selected element without
// persisting anything.
func (s *Session) Preview(form preview.FormState) error {
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()
	if sel == nil {
		return liveedit.ErrNoSelection
	}
	preview.ApplyLivePreview(sel, form)
	return nil
}

func (s *Session) seedForm(ctx context.Context, sel *preview.Selection, form *preview.FormState) {
	el := sel.Element

	if id, ok := sel.Properties[liveedit.KindPlaceholder]; ok {
		if rec, err := s.records.GetText(ctx, id); err == nil {
			form.Text = rec.Content
		} else {
			form.Text, _ = el.Attr("placeholder")
		}
	} else if id, ok := sel.Properties[liveedit.KindText]; ok {
		if rec, err := s.records.GetText(ctx, id); err == nil {
			form.Text = rec.Content
		} else {
			form.Text = el.Text()
		}
	}

	if id, ok := sel.Properties[liveedit.KindColor]; ok {
		if rec, err := s.records.GetStyle(ctx, id); err == nil && liveedit.IsHexColor(rec.Value.Raw) {
			form.TextColor = rec.Value.Raw
		} else {
			form.TextColor = liveedit.RGBToHex(el.Style("color"))
		}
	}

	if id, ok := sel.Properties[liveedit.KindTextOutline]; ok {
		form.OutlineColor = "#000000"
		form.OutlineWidth = "1"
		if rec, err := s.records.GetStyle(ctx, id); err == nil && rec.Value.Outline != nil {
			form.OutlineEnabled = rec.Value.Outline.Enabled
			if rec.Value.Outline.Color != "" {
				form.OutlineColor = rec.Value.Outline.Color
			}
			if rec.Value.Outline.Width != "" {
				form.OutlineWidth = rec.Value.Outline.Width
			}
		} else if stroke := el.Style("-webkit-text-stroke"); stroke != "" {
			width, color, _ := strings.Cut(stroke, " ")
			form.OutlineEnabled = true
			form.OutlineColor = liveedit.RGBToHex(strings.TrimSpace(color))
			form.OutlineWidth = strings.TrimSuffix(width, "px")
		}
	}

	if id, ok := sel.Properties[liveedit.KindLink]; ok {
		if rec, err := s.records.GetStyle(ctx, id); err == nil {
			form.Link = rec.Value.Raw
		} else if href, ok := el.Attr("href"); ok && href != "#" {
			form.Link = href
		}
	}

	if id, ok := sel.Properties[liveedit.KindBackgroundColor]; ok {
		if rec, err := s.records.GetStyle(ctx, id); err == nil && liveedit.IsHexColor(rec.Value.Raw) {
			form.BackgroundColor = rec.Value.Raw
		} else {
			form.BackgroundColor = liveedit.RGBToHex(el.Style("background-color"))
		}
	}

	if id, ok := sel.Properties[liveedit.KindBackground]; ok {
		s.seedBackground(ctx, id, el, form)
	}

	if id, ok := sel.Properties[liveedit.KindLayout]; ok {
		if rec, err := s.records.GetLayout(ctx, id); err == nil {
			form.Layout = &rec
		} else {
			rec := preview.LayoutFromElement(el)
			form.Layout = &rec
		}
	}
}

func (s *Session) seedBackground(ctx context.Context, id string, el *preview.Element, form *preview.FormState) {
	form.BackgroundType = preview.BackgroundGradient
	form.Gradient = liveedit.DefaultGradient

	if rec, err := s.records.GetStyle(ctx, id); err == nil {
		switch rec.Type {
		case liveedit.StyleGradient:
			if g, ok := liveedit.ParseGradient(rec.Value.Raw); ok {
				form.Gradient = g
			}
			return
		case liveedit.StyleBackgroundImage:
			form.BackgroundType = preview.BackgroundImage
			form.ImageURL = rec.Value.Raw
			return
		}
	}

	// Nothing persisted: classify the element's rendered background.
	bgImage := el.Style("background-image")
	if g, ok := liveedit.ParseGradient(bgImage); ok {
		form.Gradient = g
		return
	}
	if url, ok := liveedit.ExtractImageURL(bgImage); ok {
		form.BackgroundType = preview.BackgroundImage
		form.ImageURL = url
	}
}

// Save persists every property the selection carries, concurrently. Each
// property saves independently: one failure neither blocks nor rolls back
// the others. Successful saves push their value back to the preview so the
// page reflects exactly what was stored.
func (s *Session) Save(ctx context.Context, req SaveRequest) error {
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()
	if sel == nil {
		return liveedit.ErrNoSelection
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures = make(map[liveedit.PropertyKind]error)
	)
	fail := func(kind liveedit.PropertyKind, err error) {
		mu.Lock()
		failures[kind] = err
		mu.Unlock()
	}
	run := func(kind liveedit.PropertyKind, save func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := save(); err != nil {
				fail(kind, err)
			}
		}()
	}

	for kind, id := range sel.Properties {
		kind, id := kind, id
		switch kind {
		case liveedit.KindText, liveedit.KindPlaceholder:
			run(kind, func() error { return s.saveText(ctx, kind, id, req.Text) })
		case liveedit.KindColor:
			run(kind, func() error { return s.saveColor(ctx, id, req.TextColor) })
		case liveedit.KindTextOutline:
			run(kind, func() error { return s.saveOutline(ctx, id, req.FormState) })
		case liveedit.KindLink:
			run(kind, func() error { return s.saveLink(ctx, id, req.Link) })
		case liveedit.KindBackgroundColor:
			run(kind, func() error { return s.saveBackgroundColor(ctx, id, req.BackgroundColor) })
		case liveedit.KindBackground:
			run(kind, func() error { return s.saveBackground(ctx, id, req) })
		case liveedit.KindLayout:
			run(kind, func() error { return s.saveLayout(ctx, id, req.Layout) })
		}
	}
	wg.Wait()

	if len(failures) > 0 {
		return &liveedit.SaveError{Failures: failures}
	}
	return nil
}

// notifySaved pushes a stored value to the preview. Delivery failure is
// logged, not returned: the value is already persisted.
func (s *Session) notifySaved(id, value, elementType string) {
	payload := messenger.UpdatePayload{ID: id, Value: value, ElementType: elementType}
	if err := s.msgr.Notify(messenger.MsgUpdateElementAfterSave, payload); err != nil {
		log.Printf("[Session] Failed to push update for %s: %v", id, err)
	}
}

func (s *Session) saveText(ctx context.Context, kind liveedit.PropertyKind, id, content string) error {
	if _, err := s.records.SaveText(ctx, id, content); err != nil {
		return err
	}
	s.notifySaved(id, content, string(kind))
	return nil
}

func (s *Session) saveColor(ctx context.Context, id, hex string) error {
	if !liveedit.IsHexColor(hex) {
		return fmt.Errorf("invalid color value %q", hex)
	}
	_, err := s.records.SaveStyle(ctx, id, liveedit.StyleRecord{
		Type:  liveedit.StyleColor,
		Value: liveedit.StyleValue{Raw: hex},
	})
	if err != nil {
		return err
	}
	s.notifySaved(id, hex, liveedit.StyleColor)
	return nil
}

func (s *Session) saveOutline(ctx context.Context, id string, form preview.FormState) error {
	outline := &liveedit.OutlineValue{
		Enabled: form.OutlineEnabled,
		Color:   form.OutlineColor,
		Width:   form.OutlineWidth,
	}
	if outline.Enabled && !liveedit.IsHexColor(outline.Color) {
		return fmt.Errorf("invalid outline color %q", outline.Color)
	}
	if outline.Width == "" {
		outline.Width = "1"
	}
	_, err := s.records.SaveStyle(ctx, id, liveedit.StyleRecord{
		Type:  liveedit.StyleTextOutline,
		Value: liveedit.StyleValue{Outline: outline},
	})
	if err != nil {
		return err
	}
	stroke := ""
	if outline.Enabled {
		stroke = fmt.Sprintf("%spx %s", outline.Width, outline.Color)
	}
	s.notifySaved(id, stroke, liveedit.StyleTextOutline)
	return nil
}

func (s *Session) saveLink(ctx context.Context, id, href string) error {
	if err := security.ValidateLinkURL(href); err != nil {
		return err
	}
	_, err := s.records.SaveStyle(ctx, id, liveedit.StyleRecord{
		Type:  liveedit.StyleLink,
		Value: liveedit.StyleValue{Raw: href},
	})
	if err != nil {
		return err
	}
	s.notifySaved(id, href, liveedit.StyleLink)
	return nil
}

func (s *Session) saveBackgroundColor(ctx context.Context, id, hex string) error {
	if !liveedit.IsHexColor(hex) {
		return fmt.Errorf("invalid background color %q", hex)
	}
	_, err := s.records.SaveStyle(ctx, id, liveedit.StyleRecord{
		Type:  liveedit.StyleBackgroundColor,
		Value: liveedit.StyleValue{Raw: hex},
	})
	if err != nil {
		return err
	}
	s.notifySaved(id, hex, liveedit.StyleBackgroundColor)
	return nil
}

func (s *Session) saveBackground(ctx context.Context, id string, req SaveRequest) error {
	switch req.BackgroundType {
	case preview.BackgroundGradient:
		g := req.Gradient
		if !liveedit.IsHexColor(g.Color1) || !liveedit.IsHexColor(g.Color2) {
			return fmt.Errorf("invalid gradient colors %q, %q", g.Color1, g.Color2)
		}
		_, err := s.records.SaveStyle(ctx, id, liveedit.StyleRecord{
			Type:  liveedit.StyleGradient,
			Value: liveedit.StyleValue{Raw: g.CSS()},
		})
		if err != nil {
			return err
		}
		s.notifySaved(id, g.CSS(), liveedit.StyleGradient)
		return nil

	case preview.BackgroundImage:
		if req.ImageUpload != nil {
			oldURL := ""
			if rec, err := s.records.GetStyle(ctx, id); err == nil && rec.Type == liveedit.StyleBackgroundImage {
				oldURL = rec.Value.Raw
			}
			url, _, err := s.records.SaveBackgroundImage(ctx, id, req.ImageExt, req.ImageUpload, oldURL)
			if err != nil {
				return err
			}
			s.notifySaved(id, url, liveedit.StyleBackgroundImage)
			return nil
		}
		if req.ImageURL == "" {
			return fmt.Errorf("no background image selected")
		}
		if err := security.ValidateImageURL(req.ImageURL); err != nil {
			return err
		}
		_, err := s.records.SaveStyle(ctx, id, liveedit.StyleRecord{
			Type:  liveedit.StyleBackgroundImage,
			Value: liveedit.StyleValue{Raw: req.ImageURL},
		})
		if err != nil {
			return err
		}
		s.notifySaved(id, req.ImageURL, liveedit.StyleBackgroundImage)
		return nil

	default:
		return fmt.Errorf("unknown background type %q", req.BackgroundType)
	}
}

func (s *Session) saveLayout(ctx context.Context, id string, rec *liveedit.LayoutRecord) error {
	if rec == nil {
		return nil
	}
	if _, err := s.records.SaveLayout(ctx, id, *rec); err != nil {
		return err
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[Session] Failed to encode layout for %s: %v", id, err)
		return nil
	}
	s.notifySaved(id, string(encoded), string(liveedit.KindLayout))
	return nil
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/config"
	"github.com/siteforge/liveedit/internal/preset"
	"github.com/siteforge/liveedit/internal/preview"
	"github.com/siteforge/liveedit/internal/session"
)

// formPayload is the wire shape of the edit panel's field values.
type formPayload struct {
	Text            string                 `json:"text"`
	TextColor       string                 `json:"textColor"`
	OutlineEnabled  bool                   `json:"outlineEnabled"`
	OutlineColor    string                 `json:"outlineColor"`
	OutlineWidth    string                 `json:"outlineWidth"`
	Link            string                 `json:"link"`
	BackgroundColor string                 `json:"backgroundColor"`
	BackgroundType  string                 `json:"backgroundType"`
	Gradient        *gradientPayload       `json:"gradient,omitempty"`
	ImageURL        string                 `json:"imageUrl"`
	ImageData       string                 `json:"imageData,omitempty"`
	Layout          *liveedit.LayoutRecord `json:"layout,omitempty"`
}

type gradientPayload struct {
	Direction string `json:"direction"`
	Color1    string `json:"color1"`
	Color2    string `json:"color2"`
}

func (p formPayload) formState() preview.FormState {
	form := preview.FormState{
		Text:            p.Text,
		TextColor:       p.TextColor,
		OutlineEnabled:  p.OutlineEnabled,
		OutlineColor:    p.OutlineColor,
		OutlineWidth:    p.OutlineWidth,
		Link:            p.Link,
		BackgroundColor: p.BackgroundColor,
		BackgroundType:  p.BackgroundType,
		ImageURL:        p.ImageURL,
		ImageData:       p.ImageData,
		Layout:          p.Layout,
	}
	if p.Gradient != nil {
		form.Gradient = liveedit.Gradient{
			Direction: p.Gradient.Direction,
			Color1:    p.Gradient.Color1,
			Color2:    p.Gradient.Color2,
		}
	}
	return form
}

func newFormPayload(form preview.FormState) formPayload {
	return formPayload{
		Text:            form.Text,
		TextColor:       form.TextColor,
		OutlineEnabled:  form.OutlineEnabled,
		OutlineColor:    form.OutlineColor,
		OutlineWidth:    form.OutlineWidth,
		Link:            form.Link,
		BackgroundColor: form.BackgroundColor,
		BackgroundType:  form.BackgroundType,
		Gradient: &gradientPayload{
			Direction: form.Gradient.Direction,
			Color1:    form.Gradient.Color1,
			Color2:    form.Gradient.Color2,
		},
		ImageURL:  form.ImageURL,
		ImageData: form.ImageData,
		Layout:    form.Layout,
	}
}

// presetSummary is what the slot list returns: metadata without the
// full stored state.
type presetSummary struct {
	Slot      int       `json:"slot"`
	Name      string    `json:"name"`
	Texts     int       `json:"texts"`
	Styles    int       `json:"styles"`
	Layouts   int       `json:"layouts"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func summarize(p *liveedit.Preset) presetSummary {
	return presetSummary{
		Slot:      p.Slot,
		Name:      p.Name,
		Texts:     len(p.Texts),
		Styles:    len(p.Styles),
		Layouts:   len(p.Layouts),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// handleAPI routes /api/ requests.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api"), "/")

	if config.IsReadOnly() && r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSONError(w, http.StatusForbidden, "server is in read-only mode")
		return
	}

	switch {
	case path == "/state":
		s.handleState(w, r)
	case path == "/select":
		s.handleSelect(w, r)
	case path == "/preview":
		s.handlePreviewUpdate(w, r)
	case path == "/save":
		s.handleSave(w, r)
	case path == "/snapshots/capture":
		s.handleSnapshotCapture(w, r)
	case path == "/presets":
		s.handlePresetList(w, r)
	case strings.HasPrefix(path, "/presets/"):
		s.handlePresetSlot(w, r, strings.TrimPrefix(path, "/presets/"))
	case path == "/reset":
		s.handleReset(w, r)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	state := map[string]any{
		"title":         s.config.Title,
		"page":          s.config.Page.File,
		"readOnly":      config.IsReadOnly(),
		"operator":      config.GetOperator(),
		"snapshotState": s.engine.State().String(),
	}
	if sel := s.session.Selection(); sel != nil {
		props := make(map[string]string, len(sel.Properties))
		for kind, id := range sel.Properties {
			props[string(kind)] = id
		}
		state["selection"] = props
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			ElementID string `json:"elementId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.ElementID == "" {
			writeJSONError(w, http.StatusBadRequest, "elementId is required")
			return
		}
		seed, err := s.session.Select(r.Context(), body.ElementID)
		if err != nil {
			s.writeOperationError(w, err)
			return
		}
		props := make(map[string]string, len(seed.Properties))
		for kind, id := range seed.Properties {
			props[string(kind)] = id
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"elementId":  seed.ElementID,
			"properties": props,
			"form":       newFormPayload(seed.Form),
		})

	case http.MethodDelete:
		s.session.Deselect()
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePreviewUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body formPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.session.Preview(body.formState()); err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.BroadcastReload()
	w.WriteHeader(http.StatusNoContent)
}

// handleSave accepts either a JSON form submission or, when a new
// background image accompanies the save, a multipart form with the JSON
// under "data" and the file under "image".
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req session.SaveRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		maxBytes := s.config.Uploads.GetMaxSizeBytes()
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}

		var body formPayload
		if err := json.Unmarshal([]byte(r.FormValue("data")), &body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		req.FormState = body.formState()

		file, header, err := r.FormFile("image")
		switch {
		case err == http.ErrMissingFile:
			// JSON-only save wrapped in multipart; fine.
		case err != nil:
			writeJSONError(w, http.StatusBadRequest, "invalid image upload")
			return
		default:
			defer file.Close()
			ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
			if !allowedExtension(ext, s.config.Uploads.GetExtensions()) {
				writeJSONError(w, http.StatusBadRequest,
					fmt.Sprintf("file type %q not allowed", ext))
				return
			}
			req.ImageUpload = file
			req.ImageExt = ext
		}
	} else {
		var body formPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.FormState = body.formState()
	}

	if err := s.session.Save(r.Context(), req); err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.BroadcastReload()
	w.WriteHeader(http.StatusNoContent)
}

func allowedExtension(ext string, allowed []string) bool {
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

func (s *Server) handleSnapshotCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var (
		snap *liveedit.Snapshot
		err  error
	)
	switch body.Source {
	case "", "current":
		snap, err = s.engine.CaptureCurrent(r.Context())
	case "default":
		snap, err = s.engine.CaptureDefault(r.Context())
	default:
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("unknown snapshot source %q", body.Source))
		return
	}
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePresetList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	all, err := s.presets.List(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	summaries := make([]presetSummary, 0, len(all))
	for _, p := range all {
		summaries = append(summaries, summarize(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slots":   summaries,
		"maxSlot": liveedit.MaxPresetSlots,
	})
}

// handlePresetSlot routes /api/presets/{slot} and /api/presets/{slot}/load.
func (s *Server) handlePresetSlot(w http.ResponseWriter, r *http.Request, rest string) {
	slotStr, action, _ := strings.Cut(rest, "/")
	slot, err := strconv.Atoi(slotStr)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid slot number")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodPost:
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		p, err := s.presets.Save(r.Context(), slot, body.Name)
		if err != nil {
			s.writeOperationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summarize(p))

	case action == "" && r.Method == http.MethodDelete:
		ctx := preset.WithConfirmation(r.Context(), r.URL.Query().Get("confirm") == "true")
		if err := s.presets.Delete(ctx, slot); err != nil {
			s.writeOperationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case action == "load" && r.Method == http.MethodPost:
		var body struct {
			Confirm bool `json:"confirm"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ctx := preset.WithConfirmation(r.Context(), body.Confirm)
		if err := s.presets.Load(ctx, slot); err != nil {
			s.writeOperationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx := preset.WithConfirmation(r.Context(), body.Confirm)
	if err := s.presets.ResetToDefault(ctx); err != nil {
		s.writeOperationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeOperationError maps domain errors onto HTTP statuses.
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	var saveErr *liveedit.SaveError
	switch {
	case errors.Is(err, liveedit.ErrBusy):
		writeJSONError(w, http.StatusConflict, "another operation is in progress")
	case errors.Is(err, liveedit.ErrSlotEmpty):
		writeJSONError(w, http.StatusNotFound, "preset slot is empty")
	case errors.Is(err, liveedit.ErrInvalidSlot):
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("slot must be between 1 and %d", liveedit.MaxPresetSlots))
	case errors.Is(err, liveedit.ErrNoSelection):
		writeJSONError(w, http.StatusBadRequest, "no editable element selected")
	case errors.Is(err, liveedit.ErrSnapshotEmpty):
		writeJSONError(w, http.StatusBadRequest, "snapshot contains no editable state")
	case errors.Is(err, liveedit.ErrTimeout), errors.Is(err, liveedit.ErrPreviewUnavailable):
		writeJSONError(w, http.StatusBadGateway, "preview did not respond")
	case errors.As(err, &saveErr):
		details := make(map[string]string, len(saveErr.Failures))
		for kind, ferr := range saveErr.Failures {
			details[string(kind)] = ferr.Error()
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    saveErr.Error(),
			"failures": details,
		})
	default:
		log.Printf("[API] Internal error: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

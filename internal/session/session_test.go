package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liveedit "github.com/siteforge/liveedit"
	"github.com/siteforge/liveedit/internal/mapper"
	"github.com/siteforge/liveedit/internal/messenger"
	"github.com/siteforge/liveedit/internal/preview"
	"github.com/siteforge/liveedit/internal/store"
)

const sessionPage = `<html><body>
  <h1 id="hero-title" data-editable-text-id="hero-title-text" data-editable-color-id="hero-title-color" style="color: rgb(17, 24, 39)">Build Faster</h1>
  <a id="hero-cta" href="#" data-editable-text-id="hero-cta-text" data-editable-link-id="hero-cta-link">Get Started</a>
  <div id="hero-bg" data-editable-background-id="hero-bg-style" style="background-image: linear-gradient(135deg, #ea580c, #dc2626)">x</div>
  <input id="hero-email" placeholder="you@example.com" data-editable-placeholder-id="hero-email-placeholder">
</body></html>`

type fixture struct {
	session *Session
	surface *preview.Surface
	mapper  *mapper.Mapper
	blobs   *store.DiskBlobStore
	doc     *preview.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	doc, err := preview.Parse(strings.NewReader(sessionPage))
	require.NoError(t, err)

	blobs, err := store.NewDiskBlobStore(t.TempDir(), "/uploads/editor/")
	require.NoError(t, err)
	m := mapper.New(store.NewMemoryStore(), blobs)

	surface := preview.NewSurfaceFromDocument(doc, m, false)
	hostEnd, previewEnd := messenger.Pipe()
	surface.Attach(previewEnd)
	msgr := messenger.New(hostEnd, false)
	hostEnd.Bind(msgr.HandleInbound)

	return &fixture{
		session: New(surface, msgr, m),
		surface: surface,
		mapper:  m,
		blobs:   blobs,
		doc:     doc,
	}
}

// requireApplied waits for the asynchronous post-save preview update.
func requireApplied(t *testing.T, check func() bool) {
	t.Helper()
	require.Eventually(t, check, time.Second, time.Millisecond)
}

// Full text edit flow: select, preview keystrokes, save, and the stored
// value matches what the preview shows.
func TestTextEditFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed, err := f.session.Select(ctx, "hero-title")
	require.NoError(t, err)
	assert.Equal(t, "Build Faster", seed.Form.Text)
	assert.Equal(t, "#111827", seed.Form.TextColor)

	// Keystroke previews, nothing persisted yet.
	require.NoError(t, f.session.Preview(preview.FormState{Text: "Ship", TextColor: seed.Form.TextColor}))
	require.NoError(t, f.session.Preview(preview.FormState{Text: "Ship Today", TextColor: seed.Form.TextColor}))
	assert.Equal(t, "Ship Today", f.doc.FindByID("hero-title").Text())

	snap, err := f.mapper.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Texts)

	req := SaveRequest{}
	req.Text = "Ship Today"
	req.TextColor = "#ff0000"
	require.NoError(t, f.session.Save(ctx, req))

	snap, err = f.mapper.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ship Today", snap.Texts["hero-title-text"].Content)
	assert.Equal(t, "#ff0000", snap.Styles["hero-title-color"].Value.Raw)

	requireApplied(t, func() bool {
		return f.doc.FindByID("hero-title").Style("color") == "#ff0000"
	})
}

// Applying the same preview twice is indistinguishable from applying once.
func TestPreviewIdempotent(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Select(context.Background(), "hero-title")
	require.NoError(t, err)

	form := preview.FormState{Text: "Same", TextColor: "#222222"}
	require.NoError(t, f.session.Preview(form))
	rendered := f.surface.RenderHTML()
	require.NoError(t, f.session.Preview(form))
	assert.Equal(t, rendered, f.surface.RenderHTML())
}

func TestSelectUnmarkedElement(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Select(context.Background(), "missing")
	assert.ErrorIs(t, err, liveedit.ErrNoSelection)

	err = f.session.Preview(preview.FormState{Text: "x"})
	assert.ErrorIs(t, err, liveedit.ErrNoSelection)
}

// Background image upload: blob stored, record points at the new URL, the
// replaced blob is removed.
func TestBackgroundImageUploadFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed, err := f.session.Select(ctx, "hero-bg")
	require.NoError(t, err)
	assert.Equal(t, preview.BackgroundGradient, seed.Form.BackgroundType)
	assert.Equal(t, liveedit.Gradient{Direction: "135deg", Color1: "#ea580c", Color2: "#dc2626"}, seed.Form.Gradient)

	first := SaveRequest{ImageUpload: strings.NewReader("img-one"), ImageExt: "png"}
	first.BackgroundType = preview.BackgroundImage
	require.NoError(t, f.session.Save(ctx, first))

	rec, err := f.mapper.GetStyle(ctx, "hero-bg-style")
	require.NoError(t, err)
	require.Equal(t, liveedit.StyleBackgroundImage, rec.Type)
	firstURL := rec.Value.Raw
	assert.True(t, f.blobs.Owns(firstURL))

	// Replacing the image removes the first blob.
	second := SaveRequest{ImageUpload: strings.NewReader("img-two"), ImageExt: "png"}
	second.BackgroundType = preview.BackgroundImage
	require.NoError(t, f.session.Save(ctx, second))

	rec, err = f.mapper.GetStyle(ctx, "hero-bg-style")
	require.NoError(t, err)
	assert.NotEqual(t, firstURL, rec.Value.Raw)

	requireApplied(t, func() bool {
		return f.doc.FindByID("hero-bg").Style("background-image") == liveedit.CSSImageURL(rec.Value.Raw)
	})
}

// Invalid hex never reaches persistence; the valid sibling property still
// saves (partial success reported per property).
func TestSaveRejectsInvalidHex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.Select(ctx, "hero-title")
	require.NoError(t, err)

	req := SaveRequest{}
	req.Text = "Still Saved"
	req.TextColor = "red; background: url(javascript:alert(1))"
	err = f.session.Save(ctx, req)

	var saveErr *liveedit.SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Contains(t, saveErr.Failures, liveedit.KindColor)
	assert.NotContains(t, saveErr.Failures, liveedit.KindText)

	snap, err := f.mapper.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Still Saved", snap.Texts["hero-title-text"].Content)
	_, colorStored := snap.Styles["hero-title-color"]
	assert.False(t, colorStored)
}

func TestLinkSaveAndSeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed, err := f.session.Select(ctx, "hero-cta")
	require.NoError(t, err)
	assert.Equal(t, "", seed.Form.Link, "placeholder href must not seed the form")

	req := SaveRequest{}
	req.Text = "Get Started"
	req.Link = "https://example.com/signup"
	require.NoError(t, f.session.Save(ctx, req))

	requireApplied(t, func() bool {
		href, _ := f.doc.FindByID("hero-cta").Attr("href")
		return href == "https://example.com/signup"
	})

	// Reselecting seeds from the persisted record.
	seed, err = f.session.Select(ctx, "hero-cta")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/signup", seed.Form.Link)
}

// Script-bearing link targets are rejected instead of being written into
// the page.
func TestLinkRejectsScriptScheme(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.Select(ctx, "hero-cta")
	require.NoError(t, err)

	req := SaveRequest{}
	req.Text = "Get Started"
	req.Link = "javascript:alert(1)"

	err = f.session.Save(ctx, req)
	var saveErr *liveedit.SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Contains(t, saveErr.Failures, liveedit.KindLink)

	href, _ := f.doc.FindByID("hero-cta").Attr("href")
	assert.Equal(t, "#", href)
}

func TestPlaceholderSeedAndSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed, err := f.session.Select(ctx, "hero-email")
	require.NoError(t, err)
	assert.Equal(t, "you@example.com", seed.Form.Text)

	req := SaveRequest{}
	req.Text = "name@work.com"
	require.NoError(t, f.session.Save(ctx, req))

	requireApplied(t, func() bool {
		p, _ := f.doc.FindByID("hero-email").Attr("placeholder")
		return p == "name@work.com"
	})
}

// Seeding prefers the persisted value over the rendered one.
func TestSeedPrefersPersistedValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mapper.SaveText(ctx, "hero-title-text", "Persisted Title")
	require.NoError(t, err)

	seed, err := f.session.Select(ctx, "hero-title")
	require.NoError(t, err)
	assert.Equal(t, "Persisted Title", seed.Form.Text)
}

func TestSaveWithoutSelection(t *testing.T) {
	f := newFixture(t)
	err := f.session.Save(context.Background(), SaveRequest{})
	assert.ErrorIs(t, err, liveedit.ErrNoSelection)

	var saveErr *liveedit.SaveError
	assert.False(t, errors.As(err, &saveErr))
}

// captureTransport records outbound envelopes instead of delivering them.
type captureTransport struct {
	mu   sync.Mutex
	envs []messenger.Envelope
}

func (c *captureTransport) Send(env messenger.Envelope) error {
	c.mu.Lock()
	c.envs = append(c.envs, env)
	c.mu.Unlock()
	return nil
}

func (c *captureTransport) Ready() bool { return true }

func (c *captureTransport) byType(msgType string) []messenger.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []messenger.Envelope
	for _, env := range c.envs {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

// The post-save update must carry the payload object directly: a
// double-encoded payload would reach the preview as a JSON string and be
// dropped as malformed.
func TestSaveUpdateEnvelopeDecodes(t *testing.T) {
	doc, err := preview.Parse(strings.NewReader(sessionPage))
	require.NoError(t, err)
	m := mapper.New(store.NewMemoryStore(), nil)
	surface := preview.NewSurfaceFromDocument(doc, m, false)

	ct := &captureTransport{}
	s := New(surface, messenger.New(ct, false), m)

	_, err = s.Select(context.Background(), "hero-title")
	require.NoError(t, err)

	req := SaveRequest{}
	req.Text = "Decoded"
	req.TextColor = "#123456"
	require.NoError(t, s.Save(context.Background(), req))

	updates := ct.byType(messenger.MsgUpdateElementAfterSave)
	require.Len(t, updates, 2)

	byID := make(map[string]messenger.UpdatePayload, len(updates))
	for _, env := range updates {
		var p messenger.UpdatePayload
		require.NoError(t, json.Unmarshal(env.Data, &p), "data: %s", env.Data)
		byID[p.ID] = p
	}
	assert.Equal(t, "Decoded", byID["hero-title-text"].Value)
	assert.Equal(t, string(liveedit.KindText), byID["hero-title-text"].ElementType)
	assert.Equal(t, "#123456", byID["hero-title-color"].Value)
	assert.Equal(t, liveedit.StyleColor, byID["hero-title-color"].ElementType)
}

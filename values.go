package liveedit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	hexColorRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	rgbRe      = regexp.MustCompile(`^rgb\((\d+),\s*(\d+),\s*(\d+)\)$`)
	imageURLRe = regexp.MustCompile(`url\(['"]?(.*?)['"]?\)`)
	gradientRe = regexp.MustCompile(`linear-gradient\(([^,]+),\s*(#[0-9a-fA-F]{3,6}|rgb\([^)]*\))\s*[\d.%]*,\s*(#[0-9a-fA-F]{3,6}|rgb\([^)]*\))\s*[\d.%]*\)`)
)

// IsHexColor reports whether s is a 3- or 6-digit hex color literal.
// Anything else is rejected; the live preview keeps the previous valid value.
func IsHexColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// RGBToHex converts an "rgb(r, g, b)" string to "#rrggbb". Transparent and
// fully transparent rgba values normalize to black; values that are not in
// rgb() form pass through unchanged.
func RGBToHex(rgb string) string {
	if rgb == "" || rgb == "transparent" || strings.HasPrefix(rgb, "rgba(0, 0, 0, 0)") {
		return "#000000"
	}
	m := rgbRe.FindStringSubmatch(rgb)
	if m == nil {
		return rgb
	}
	r, _ := strconv.Atoi(m[1])
	g, _ := strconv.Atoi(m[2])
	b, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// Gradient is a two-stop linear gradient.
type Gradient struct {
	Direction string
	Color1    string
	Color2    string
}

// DefaultGradient is used when an element has no saved or computed
// background to seed the editor from.
var DefaultGradient = Gradient{Direction: "135deg", Color1: "#ea580c", Color2: "#dc2626"}

// CSS renders the gradient as a linear-gradient() value.
func (g Gradient) CSS() string {
	return fmt.Sprintf("linear-gradient(%s, %s, %s)", g.Direction, g.Color1, g.Color2)
}

// ParseGradient extracts direction and the two color stops from a
// linear-gradient() string. rgb() stops are normalized to hex.
func ParseGradient(s string) (Gradient, bool) {
	m := gradientRe.FindStringSubmatch(s)
	if m == nil {
		return Gradient{}, false
	}
	g := Gradient{
		Direction: strings.TrimSpace(m[1]),
		Color1:    strings.TrimSpace(m[2]),
		Color2:    strings.TrimSpace(m[3]),
	}
	if strings.HasPrefix(g.Color1, "rgb") {
		g.Color1 = RGBToHex(g.Color1)
	}
	if strings.HasPrefix(g.Color2, "rgb") {
		g.Color2 = RGBToHex(g.Color2)
	}
	return g, true
}

// IsGradient reports whether a background-image value is a linear gradient.
func IsGradient(backgroundImage string) bool {
	return strings.HasPrefix(backgroundImage, "linear-gradient")
}

// ExtractImageURL unwraps the bare URL from a url(...) background-image
// value. Returns false for "none", gradients and empty values.
func ExtractImageURL(backgroundImage string) (string, bool) {
	if backgroundImage == "" || backgroundImage == "none" || IsGradient(backgroundImage) {
		return "", false
	}
	m := imageURLRe.FindStringSubmatch(backgroundImage)
	if m == nil || m[1] == "" {
		return "", false
	}
	return strings.ReplaceAll(m[1], `"`, ""), true
}

// CSSImageURL wraps a bare URL as a url('...') value, or "none" for empty.
func CSSImageURL(url string) string {
	if url == "" || url == "none" {
		return "none"
	}
	return fmt.Sprintf("url('%s')", url)
}

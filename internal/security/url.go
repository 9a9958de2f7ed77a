// Package security validates operator-supplied URLs before they are
// persisted into the page.
package security

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateLinkURL checks a link target saved onto an anchor element.
// Relative paths, fragments and http(s) URLs are allowed; anything that
// could execute script in the viewer's browser is rejected.
func ValidateLinkURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "#" {
		return nil
	}
	if strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "/") ||
		strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return nil
	case "":
		// Schemeless relative reference ("pricing.html", "docs/intro").
		return nil
	default:
		return fmt.Errorf("URL scheme %q is not allowed", parsed.Scheme)
	}
}

// ValidateImageURL checks a background image location. Local upload paths
// and http(s) URLs pass; data: and script-bearing schemes do not.
func ValidateImageURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty image URL")
	}
	if strings.HasPrefix(raw, "/") {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return nil
	case "":
		return nil
	default:
		return fmt.Errorf("URL scheme %q is not allowed for images", parsed.Scheme)
	}
}

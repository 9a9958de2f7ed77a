// Package preview models the embedded preview surface: a server-side twin
// of the marketing page that the editor mutates for live feedback, answers
// snapshot requests against, and renders back to connected browsers.
package preview

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/siteforge/liveedit/internal/editable"
)

// Element is one node of the parsed page. It exposes attributes as a bag
// for the editable registry, plus inline-style and text mutation for the
// live preview engine.
type Element struct {
	Tag      string
	parent   *Element
	children []*Element

	attrs     map[string]string
	attrOrder []string

	styles     map[string]string
	styleOrder []string

	text string // concatenated direct text content
}

// Attr returns the value of an attribute. Inline styles are exposed through
// Style, not through the "style" attribute.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// Parent implements editable.AttrBag; nil at the document root.
func (e *Element) Parent() editable.AttrBag {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	if _, ok := e.attrs[name]; !ok {
		e.attrOrder = append(e.attrOrder, name)
	}
	e.attrs[name] = value
}

// RemoveAttr deletes an attribute if present.
func (e *Element) RemoveAttr(name string) {
	if _, ok := e.attrs[name]; !ok {
		return
	}
	delete(e.attrs, name)
	for i, n := range e.attrOrder {
		if n == name {
			e.attrOrder = append(e.attrOrder[:i], e.attrOrder[i+1:]...)
			break
		}
	}
}

// Text returns the element's direct text content.
func (e *Element) Text() string {
	return e.text
}

// SetText replaces the element's direct text content.
func (e *Element) SetText(text string) {
	e.text = text
}

// Style returns the inline style value for a CSS property, or "".
func (e *Element) Style(prop string) string {
	return e.styles[prop]
}

// SetStyle sets an inline style property. An empty value removes it, which
// mirrors assigning "" to an element.style property.
func (e *Element) SetStyle(prop, value string) {
	if value == "" {
		e.RemoveStyle(prop)
		return
	}
	if _, ok := e.styles[prop]; !ok {
		e.styleOrder = append(e.styleOrder, prop)
	}
	e.styles[prop] = value
}

// RemoveStyle deletes an inline style property.
func (e *Element) RemoveStyle(prop string) {
	if _, ok := e.styles[prop]; !ok {
		return
	}
	delete(e.styles, prop)
	for i, p := range e.styleOrder {
		if p == prop {
			e.styleOrder = append(e.styleOrder[:i], e.styleOrder[i+1:]...)
			break
		}
	}
}

// Children returns the element's child elements.
func (e *Element) Children() []*Element {
	return e.children
}

// Document is a parsed page.
type Document struct {
	root *Element
}

// ParseFile parses the page HTML at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse builds a Document from HTML. Inline style attributes are split into
// per-property values; direct text nodes are merged per element.
func Parse(r io.Reader) (*Document, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var htmlNode *html.Node
	for n := node.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			htmlNode = n
			break
		}
	}
	if htmlNode == nil {
		return nil, fmt.Errorf("parse page: no root element")
	}

	return &Document{root: buildElement(htmlNode, nil)}, nil
}

func buildElement(n *html.Node, parent *Element) *Element {
	e := &Element{
		Tag:    n.Data,
		parent: parent,
		attrs:  make(map[string]string),
		styles: make(map[string]string),
	}
	for _, a := range n.Attr {
		if a.Key == "style" {
			applyStyleAttr(e, a.Val)
			continue
		}
		e.SetAttr(a.Key, a.Val)
	}

	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			e.children = append(e.children, buildElement(c, e))
		case html.TextNode:
			text.WriteString(c.Data)
		}
	}
	e.text = strings.TrimSpace(text.String())
	return e
}

func applyStyleAttr(e *Element, style string) {
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		val = strings.TrimSpace(val)
		if prop != "" && val != "" {
			e.SetStyle(prop, val)
		}
	}
}

// Root returns the document's root element.
func (d *Document) Root() *Element {
	return d.root
}

// Walk visits every element depth-first until fn returns false.
func (d *Document) Walk(fn func(*Element) bool) {
	var visit func(*Element) bool
	visit = func(e *Element) bool {
		if !fn(e) {
			return false
		}
		for _, c := range e.children {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(d.root)
}

// FindByAttr returns the first element whose attribute equals value.
func (d *Document) FindByAttr(attr, value string) *Element {
	var found *Element
	d.Walk(func(e *Element) bool {
		if v, ok := e.Attr(attr); ok && v == value {
			found = e
			return false
		}
		return true
	})
	return found
}

// FindByID returns the element with the given html id attribute.
func (d *Document) FindByID(id string) *Element {
	return d.FindByAttr("id", id)
}

// ElementsWithAttr returns all elements carrying the attribute, in document
// order.
func (d *Document) ElementsWithAttr(attr string) []*Element {
	var out []*Element
	d.Walk(func(e *Element) bool {
		if _, ok := e.Attr(attr); ok {
			out = append(out, e)
		}
		return true
	})
	return out
}

// voidElements never carry children or a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Render serializes the document back to HTML, including any live edits.
func (d *Document) Render(w io.Writer) error {
	if _, err := io.WriteString(w, "<!DOCTYPE html>\n"); err != nil {
		return err
	}
	return renderElement(w, d.root)
}

// HTML returns the rendered document as a string.
func (d *Document) HTML() string {
	var b strings.Builder
	_ = d.Render(&b)
	return b.String()
}

func renderElement(w io.Writer, e *Element) error {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(e.Tag)
	for _, name := range e.attrOrder {
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(e.attrs[name]))
		b.WriteByte('"')
	}
	if len(e.styleOrder) > 0 {
		b.WriteString(` style="`)
		for i, prop := range e.styleOrder {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(prop)
			b.WriteString(": ")
			b.WriteString(html.EscapeString(e.styles[prop]))
		}
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if voidElements[e.Tag] {
		return nil
	}
	if e.text != "" {
		if _, err := io.WriteString(w, html.EscapeString(e.text)); err != nil {
			return err
		}
	}
	for _, c := range e.children {
		if err := renderElement(w, c); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "</%s>", e.Tag)
	return err
}

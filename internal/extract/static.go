package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/go-scripts/chapterhook/internal/types"
)

// StaticDocument is a parsed HTML snapshot. Shadow roots are the
// declarative kind: a <template shadowrootmode> first child of its host.
type StaticDocument struct {
	doc *goquery.Document
}

// NewStaticDocument parses HTML from r
func NewStaticDocument(r io.Reader) (*StaticDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &StaticDocument{doc: doc}, nil
}

// ParseHTML parses an HTML string
func ParseHTML(s string) (*StaticDocument, error) {
	return NewStaticDocument(strings.NewReader(s))
}

// Title returns the document title
func (d *StaticDocument) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// QueryFirst searches the main tree. Template contents, and with them
// declarative shadow roots, are not part of it.
func (d *StaticDocument) QueryFirst(ctx context.Context, selector string) (Node, error) {
	return staticScope{root: d.doc.Selection}.QueryFirst(ctx, selector)
}

// ShadowRoots lists one shadow root per host element in document order
func (d *StaticDocument) ShadowRoots(_ context.Context) ([]Scope, error) {
	var roots []Scope
	root := d.doc.Selection.Nodes[0]
	d.doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		host := s.Nodes[0]
		if insideTemplate(host, root) {
			return
		}
		if tpl := shadowTemplate(host); tpl != nil {
			roots = append(roots, staticScope{root: goquery.NewDocumentFromNode(tpl).Selection})
		}
	})
	return roots, nil
}

type staticScope struct {
	root *goquery.Selection
}

func (s staticScope) QueryFirst(_ context.Context, selector string) (Node, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	scopeRoot := s.root.Nodes[0]
	for _, n := range s.root.FindMatcher(m).Nodes {
		if !insideTemplate(n, scopeRoot) {
			return staticNode{n: n}, nil
		}
	}
	return nil, nil
}

type staticNode struct {
	n *html.Node
}

func (s staticNode) Text(prop types.Prop) string {
	if prop == types.PropInnerText {
		return innerText(s.n)
	}
	return textContent(s.n)
}

// shadowTemplate returns the declarative shadow root template of host, if any.
// Only the first such template counts, as in a browser.
func shadowTemplate(host *html.Node) *html.Node {
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "template" {
			continue
		}
		for _, a := range c.Attr {
			if a.Key == "shadowrootmode" || a.Key == "shadowroot" {
				return c
			}
		}
	}
	return nil
}

// insideTemplate reports whether n sits in template content below root
func insideTemplate(n, root *html.Node) bool {
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "template" {
			return true
		}
	}
	return false
}

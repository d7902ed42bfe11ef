// Package dom binds HTML documents parsed with golang.org/x/net/html to the
// session render pass.
package dom

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/workbench/internal/session"
)

// Document is a parsed HTML document safe for concurrent render and write.
type Document struct {
	mu   sync.Mutex
	root *html.Node
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString parses an HTML document held in memory
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile parses the HTML document at path
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// QueryAll returns every element carrying attr, in document order.
func (d *Document) QueryAll(attr string) []session.Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []session.Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, ok := attrOf(n, attr); ok {
				out = append(out, &element{doc: d, node: n})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

// WriteTo renders the document
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cw := &countingWriter{w: w}
	err := html.Render(cw, d.root)
	return cw.n, err
}

// String renders the document to a string
func (d *Document) String() string {
	var b strings.Builder
	_, _ = d.WriteTo(&b)
	return b.String()
}

type element struct {
	doc  *Document
	node *html.Node
}

func (e *element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attrOf(e.node, name)
}

// SetVisible toggles display:none in the inline style, keeping other
// declarations intact.
func (e *element) SetVisible(visible bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	style, _ := attrOf(e.node, "style")
	var decls []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		if prop, _, ok := strings.Cut(decl, ":"); ok && strings.EqualFold(strings.TrimSpace(prop), "display") {
			continue
		}
		decls = append(decls, decl)
	}
	if !visible {
		decls = append(decls, "display: none")
	}

	if len(decls) == 0 {
		removeAttr(e.node, "style")
		return
	}
	setAttr(e.node, "style", strings.Join(decls, "; "))
}

// SetText replaces the element's children with a single text node
func (e *element) SetText(text string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func attrOf(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var _ session.Document = (*Document)(nil)

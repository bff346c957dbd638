// Package markup builds small HTML fragments as x/net/html node trees so
// that all text is escaped by the renderer.
package markup

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr is a single attribute
type Attr struct {
	Key, Val string
}

// A returns an attribute
func A(key, val string) Attr {
	return Attr{Key: key, Val: val}
}

// El creates an element node with attributes and children. Nil children
// are skipped.
func El(tag atom.Atom, attrs []Attr, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: tag, Data: tag.String()}
	for _, a := range attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	for _, c := range children {
		if c != nil {
			n.AppendChild(c)
		}
	}
	return n
}

// Text creates a text node
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Attrs is a convenience for building attribute lists
func Attrs(kv ...string) []Attr {
	out := make([]Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Attr{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

// Render serializes nodes in order.
func Render(nodes ...*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render %s: %w", n.Data, err)
		}
	}
	return buf.String(), nil
}

// MustRender is Render for trees built in code, which cannot fail to
// serialize into memory.
func MustRender(nodes ...*html.Node) string {
	s, err := Render(nodes...)
	if err != nil {
		panic(err)
	}
	return s
}

// Raw parses an HTML fragment so it can be nested inside a built tree.
// The fragment is parsed in a <div> context.
func Raw(fragment string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	return html.ParseFragment(strings.NewReader(fragment), ctx)
}

// Wrap returns a container element holding a parsed fragment.
func Wrap(tag atom.Atom, attrs []Attr, fragment string) (*html.Node, error) {
	nodes, err := Raw(fragment)
	if err != nil {
		return nil, err
	}
	return El(tag, attrs, nodes...), nil
}

// TextContent returns the concatenated text of a fragment with runs of
// whitespace collapsed.
func TextContent(fragment string) string {
	nodes, err := Raw(fragment)
	if err != nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Find returns the first element with the given tag in a fragment, or nil.
func Find(fragment string, tag atom.Atom) *html.Node {
	nodes, err := Raw(fragment)
	if err != nil {
		return nil
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == tag {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return found
}

// Count returns the number of elements with the given tag in a fragment.
func Count(fragment string, tag atom.Atom) int {
	nodes, err := Raw(fragment)
	if err != nil {
		return 0
	}
	n := 0
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.DataAtom == tag {
			n++
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range nodes {
		walk(node)
	}
	return n
}

// AttrOf returns the named attribute of n.
func AttrOf(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

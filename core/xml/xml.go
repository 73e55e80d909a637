// Package xml wraps xmlquery behind a small document/node API tuned for
// walking MusicXML. Documents declared in encodings other than UTF-8 are
// converted through the charset label in the XML declaration, which
// MusicXML exported by older notation software frequently needs.
package xml

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html/charset"
)

// Document is a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node is an element within a document. The zero accessor convention is
// nil-safe: every method on a nil or empty Node returns a zero value, so
// lookup chains over optional MusicXML elements need no nil checks.
type Node struct {
	node *xmlquery.Node
}

// Parse parses XML data into a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.ParseWithOptions(bytes.NewReader(data), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			CharsetReader: charset.NewReaderLabel,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Root returns the document's root element, or nil for an empty document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath returns every node matching the expression, in document order.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = &Node{node: n}
	}
	return out, nil
}

// XPathFirst returns the first node matching the expression, or nil when
// nothing matches.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	node, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the node's inner text.
func (n *Node) Text() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// TrimmedText returns the inner text with surrounding whitespace removed.
func (n *Node) TrimmedText() string {
	return strings.TrimSpace(n.Text())
}

// Int parses the node's text as a base-10 integer. Missing nodes and
// unparseable text return def.
func (n *Node) Int(def int) int {
	v, err := strconv.Atoi(n.TrimmedText())
	if err != nil {
		return def
	}
	return v
}

// Children returns all child elements in document order.
func (n *Node) Children() []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	var out []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			out = append(out, &Node{node: child})
		}
	}
	return out
}

// Select returns the child elements with the given name, in document order.
func (n *Node) Select(name string) []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	var out []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			out = append(out, &Node{node: child})
		}
	}
	return out
}

// First returns the first child element with the given name, or nil.
func (n *Node) First(name string) *Node {
	if n == nil || n.node == nil {
		return nil
	}
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			return &Node{node: child}
		}
	}
	return nil
}

// Attr returns the value of the named attribute, or "" when absent.
func (n *Node) Attr(name string) string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// Attributes returns all attributes keyed by local name.
func (n *Node) Attributes() map[string]string {
	if n == nil || n.node == nil {
		return nil
	}
	attrs := make(map[string]string, len(n.node.Attr))
	for _, attr := range n.node.Attr {
		attrs[attr.Name.Local] = attr.Value
	}
	return attrs
}

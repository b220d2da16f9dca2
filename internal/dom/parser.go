package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses a complete HTML document
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParseString parses a complete HTML document from a string
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// ParseFragment parses markup as the content of context. The returned nodes
// are detached. A nil context parses in the context of a body element.
func ParseFragment(markup string, context *html.Node) ([]*html.Node, error) {
	if context == nil {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	} else if context.DataAtom != atom.Lookup([]byte(context.Data)) {
		// Nodes built by hand may carry a stale atom, which the parser rejects
		context = &html.Node{Type: html.ElementNode, Data: context.Data, DataAtom: atom.Lookup([]byte(context.Data))}
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}
	return nodes, nil
}

// Render serializes n and its descendants
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML serializes the children of n
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}

// SetInnerHTML replaces the children of n with the parsed markup
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := ParseFragment(markup, n)
	if err != nil {
		return err
	}
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// Escape escapes text so it can be interpolated into markup
func Escape(text string) string {
	return html.EscapeString(text)
}

// ReplaceInText replaces needle by text in every attribute value and text
// node under root, root included.
func ReplaceInText(root *html.Node, needle, text string) {
	Walk(root, func(n *html.Node) bool {
		switch n.Type {
		case html.ElementNode:
			for i, a := range n.Attr {
				if strings.Contains(a.Val, needle) {
					n.Attr[i].Val = strings.ReplaceAll(a.Val, needle, text)
				}
			}
		case html.TextNode:
			if strings.Contains(n.Data, needle) {
				n.Data = strings.ReplaceAll(n.Data, needle, text)
			}
		}
		return true
	})
}

// ReplaceWithNodes replaces needle in the text nodes under root by copies of
// replacement. Attributes are left alone.
func ReplaceWithNodes(root *html.Node, needle string, replacement []*html.Node) {
	var targets []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.TextNode && strings.Contains(n.Data, needle) {
			targets = append(targets, n)
		}
		return true
	})

	for _, t := range targets {
		parts := strings.Split(t.Data, needle)
		parent := t.Parent
		if parent == nil {
			continue
		}
		for i, part := range parts {
			if i > 0 {
				for _, r := range replacement {
					parent.InsertBefore(Clone(r), t)
				}
			}
			if part != "" {
				parent.InsertBefore(NewText(part), t)
			}
		}
		parent.RemoveChild(t)
	}
}

// ParseMarkup parses a rich-text fragment (label, hint) in a neutral context.
// An empty string yields no nodes.
func ParseMarkup(markup string) ([]*html.Node, error) {
	if markup == "" {
		return nil, nil
	}
	return ParseFragment(markup, nil)
}

package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IsElement returns true if n is an element node
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// IsTag returns true if n is an element with the given tag name
func IsTag(n *html.Node, tag string) bool {
	return IsElement(n) && n.Data == tag
}

// NewElement creates a detached element with a consistent DataAtom
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// NewText creates a detached text node
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// Attr returns the value of an attribute and whether it is present
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the value of an attribute, or def when it is absent
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// HasAttr checks if the node has a specific attribute
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets or replaces an attribute
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr removes an attribute if present
func RemoveAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// ToggleAttr sets attribute key to val when on is true and removes it otherwise
func ToggleAttr(n *html.Node, key, val string, on bool) {
	if on {
		SetAttr(n, key, val)
	} else {
		RemoveAttr(n, key)
	}
}

// ID returns the id attribute of n
func ID(n *html.Node) string {
	return AttrOr(n, "id", "")
}

// Classes returns the class list of n
func Classes(n *html.Node) []string {
	return strings.Fields(AttrOr(n, "class", ""))
}

// HasClass checks if n carries the given class
func HasClass(n *html.Node, class string) bool {
	if !IsElement(n) {
		return false
	}
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

// HasAnyClass checks if n carries at least one of the given classes
func HasAnyClass(n *html.Node, classes ...string) bool {
	for _, c := range classes {
		if HasClass(n, c) {
			return true
		}
	}
	return false
}

// AddClass adds a class unless already present
func AddClass(n *html.Node, class string) {
	if class == "" || HasClass(n, class) {
		return
	}
	current := AttrOr(n, "class", "")
	if strings.TrimSpace(current) == "" {
		SetAttr(n, "class", class)
		return
	}
	SetAttr(n, "class", strings.TrimSpace(current)+" "+class)
}

// RemoveClass removes every occurrence of a class
func RemoveClass(n *html.Node, class string) {
	if !HasClass(n, class) {
		return
	}
	var kept []string
	for _, c := range Classes(n) {
		if c != class {
			kept = append(kept, c)
		}
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// ToggleClass adds class when on is true and removes it otherwise
func ToggleClass(n *html.Node, class string, on bool) {
	if on {
		AddClass(n, class)
	} else {
		RemoveClass(n, class)
	}
}

// RemoveClassesWithPrefix removes all classes starting with prefix
func RemoveClassesWithPrefix(n *html.Node, prefix string) {
	var kept []string
	changed := false
	for _, c := range Classes(n) {
		if strings.HasPrefix(c, prefix) {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	if changed {
		SetAttr(n, "class", strings.Join(kept, " "))
	}
}

// Walk calls fn for n and every descendant in document order.
// Returning false from fn stops the walk.
func Walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// ElementByID finds the first element under root (root included) with the given id
func ElementByID(root *html.Node, id string) *html.Node {
	if root == nil || id == "" {
		return nil
	}
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if IsElement(n) && ID(n) == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Find returns the first descendant element of root matching pred
func Find(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	for c := root.FirstChild; c != nil && found == nil; c = c.NextSibling {
		Walk(c, func(n *html.Node) bool {
			if IsElement(n) && pred(n) {
				found = n
				return false
			}
			return true
		})
	}
	return found
}

// FindAll returns every descendant element of root matching pred
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var result []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, func(n *html.Node) bool {
			if IsElement(n) && pred(n) {
				result = append(result, n)
			}
			return true
		})
	}
	return result
}

// ByTag returns the first descendant element with one of the given tag names
func ByTag(root *html.Node, tags ...string) *html.Node {
	return Find(root, func(n *html.Node) bool {
		for _, t := range tags {
			if n.Data == t {
				return true
			}
		}
		return false
	})
}

// AllByTag returns every descendant element with the given tag name
func AllByTag(root *html.Node, tag string) []*html.Node {
	return FindAll(root, func(n *html.Node) bool { return n.Data == tag })
}

// ByClass returns every descendant element carrying class
func ByClass(root *html.Node, class string) []*html.Node {
	return FindAll(root, func(n *html.Node) bool { return HasClass(n, class) })
}

// ChildElements returns the element children of n
func ChildElements(n *html.Node) []*html.Node {
	var result []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c) {
			result = append(result, c)
		}
	}
	return result
}

// FirstChildElement returns the first element child of n
func FirstChildElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c) {
			return c
		}
	}
	return nil
}

// Contains reports whether n is root or attached somewhere below it
func Contains(root, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

// Detach removes n from its parent, if any
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// RemoveChildren detaches all children of n
func RemoveChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

// InsertBefore inserts n as a sibling before ref
func InsertBefore(ref, n *html.Node) {
	ref.Parent.InsertBefore(n, ref)
}

// InsertAfter inserts n as a sibling after ref
func InsertAfter(ref, n *html.Node) {
	ref.Parent.InsertBefore(n, ref.NextSibling)
}

// Replace puts n at the position of old, detaching old
func Replace(old, n *html.Node) {
	old.Parent.InsertBefore(n, old)
	old.Parent.RemoveChild(old)
}

// Clone returns a deep, detached copy of n
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// TextContent returns the concatenated text content of the node and its children
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var text strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
		return true
	})
	return text.String()
}

// SetText replaces the children of n with a single text node
func SetText(n *html.Node, text string) {
	RemoveChildren(n)
	if text != "" {
		n.AppendChild(NewText(text))
	}
}

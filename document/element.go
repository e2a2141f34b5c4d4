package document

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var bindableTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
	"summary":  true,
	"label":    true,
}

var bindableRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"tab":              true,
	"checkbox":         true,
	"radio":            true,
	"switch":           true,
	"option":           true,
}

// IsBindable reports whether n is an interactive element a key can be bound to.
func IsBindable(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if bindableTags[n.Data] {
		return true
	}
	role, _ := Attr(n, "role")
	return bindableRoles[strings.ToLower(strings.TrimSpace(role))]
}

// ClosestBindable walks from n towards the root and returns the first
// bindable element, or nil.
func ClosestBindable(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if IsBindable(p) {
			return p
		}
	}
	return nil
}

// FirstBindable returns the closest bindable element of the first target
// that has one. Targets are ordered topmost first, as a hit test reports them.
func FirstBindable(targets []*html.Node) *html.Node {
	for _, t := range targets {
		if b := ClosestBindable(t); b != nil {
			return b
		}
	}
	return nil
}

// IsProtected reports whether keystrokes aimed at n are text input and must
// not be captured: inputs, textareas and editable content.
func IsProtected(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "input", "textarea":
		return true
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		v, ok := Attr(p, "contenteditable")
		if !ok {
			continue
		}
		switch strings.ToLower(v) {
		case "", "true", "plaintext-only":
			return true
		case "false":
			return false
		}
	}
	return false
}

// IndexPath computes the absolute positional path of n, e.g.
// /html/body/div[2]/button. The index is only written when the parent has
// several children with the same tag. The browser bridge uses it to address
// the same element across the page and a snapshot.
func IndexPath(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		parts = append(parts, indexStep(cur))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

func indexStep(n *html.Node) string {
	if n.Parent == nil {
		return n.Data
	}
	idx, total := 0, 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode || s.Data != n.Data {
			continue
		}
		total++
		if s == n {
			idx = total
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s[%d]", n.Data, idx)
	}
	return n.Data
}

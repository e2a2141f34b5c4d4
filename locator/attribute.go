package locator

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/document"
)

// Operator is the match semantics of an attribute candidate.
type Operator string

const (
	OpEquals     Operator = "equals"      // @name='v'
	OpContains   Operator = "contains"    // every class token present
	OpStartsWith Operator = "starts-with" // starts-with(@href, 'v')
	OpText       Operator = "text"        // a direct text child equals v
	OpString     Operator = "string"      // full text content equals v
)

// Pseudo-attribute names for text candidates.
const (
	NameText   = "text"
	NameString = "string"
	NameClass  = "class"
	NameHref   = "href"
)

// maxStringLen bounds descendant text used as a "string" candidate.
const maxStringLen = 20

// priorityAttributes are read in this order.
var priorityAttributes = []string{
	"id",
	"name",
	"title",
	"aria-labelledby",
	"aria-label",
	"href",
	"alt",
}

// Attribute is one identity-bearing candidate of an element. Values is
// never empty.
type Attribute struct {
	Name   string
	Values []string
}

// Operator derives the match semantics from the candidate name.
func (a Attribute) Operator() Operator {
	switch a.Name {
	case NameClass:
		return OpContains
	case NameHref:
		return OpStartsWith
	case NameText:
		return OpText
	case NameString:
		return OpString
	default:
		return OpEquals
	}
}

// Predicate renders the XPath boolean expression for this candidate.
// Multiple values of a class candidate are ANDed; any other operator ORs
// its values.
func (a Attribute) Predicate() string {
	parts := make([]string, 0, len(a.Values))
	for _, v := range a.Values {
		parts = append(parts, a.valuePredicate(v))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	join := " or "
	if a.Operator() == OpContains {
		join = " and "
	}
	return "(" + strings.Join(parts, join) + ")"
}

func (a Attribute) valuePredicate(v string) string {
	switch a.Operator() {
	case OpContains:
		return "contains(concat(' ', normalize-space(@class), ' '), " + quote(" "+v+" ") + ")"
	case OpStartsWith:
		return "starts-with(@" + a.Name + ", " + quote(v) + ")"
	case OpText:
		return "text()[normalize-space(.)=" + quote(v) + "]"
	case OpString:
		return "normalize-space(.)=" + quote(v)
	default:
		return "@" + a.Name + "=" + quote(v)
	}
}

func (a Attribute) equal(b Attribute) bool {
	if a.Name != b.Name || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			return false
		}
	}
	return true
}

// Attributes extracts the ordered candidate list of an element: priority
// attributes, then own text (or short full text), then the class list.
// It only reads n.
func Attributes(n *html.Node) []Attribute {
	var out []Attribute
	for _, name := range priorityAttributes {
		v, ok := document.Attr(n, name)
		if !ok {
			continue
		}
		if name == NameHref {
			v = stripURLNoise(v)
		}
		out = append(out, Attribute{Name: name, Values: []string{v}})
	}

	if own := document.OwnText(n); own != "" {
		out = append(out, Attribute{Name: NameText, Values: []string{own}})
	} else if full := document.TextContent(n); full != "" && len([]rune(full)) <= maxStringLen {
		out = append(out, Attribute{Name: NameString, Values: []string{full}})
	}

	if cls, ok := document.Attr(n, NameClass); ok {
		if tokens := strings.Fields(cls); len(tokens) > 0 {
			out = append(out, Attribute{Name: NameClass, Values: tokens})
		}
	}
	return out
}

// stripURLNoise drops the query string and fragment so the starts-with
// match tolerates them.
func stripURLNoise(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

// quote renders s as an XPath 1.0 string literal. XPath has no escapes, so
// strings holding both quote kinds are built with concat().
func quote(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	lits := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			lits = append(lits, `"'"`)
		}
		if p != "" {
			lits = append(lits, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(lits, ", ") + ")"
}

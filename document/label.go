package document

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// maxLabel bounds the label length in runes.
const maxLabel = 80

var labelConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// Label renders a short, single-line markdown description of an element,
// used to list bindings to humans. Falls back to the tag name when the
// element has no renderable content.
func Label(n *html.Node) string {
	if n == nil {
		return ""
	}
	md, err := labelConverter.ConvertString(htmlquery.OutputHTML(n, true))
	if err != nil {
		md = ""
	}
	md = NormalizeSpace(md)
	if md == "" {
		for _, key := range []string{"aria-label", "title", "alt", "name", "id"} {
			if v, ok := Attr(n, key); ok && strings.TrimSpace(v) != "" {
				md = NormalizeSpace(v)
				break
			}
		}
	}
	if md == "" {
		return "<" + n.Data + ">"
	}
	if r := []rune(md); len(r) > maxLabel {
		md = string(r[:maxLabel-1]) + "…"
	}
	return md
}

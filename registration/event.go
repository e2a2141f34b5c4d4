package registration

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/document"
)

// EventType discriminates Event.
type EventType int

const (
	PointerMove EventType = iota + 1
	PointerClick
	KeyDown
	KeyUp
)

func (t EventType) String() string {
	switch t {
	case PointerMove:
		return "pointer_move"
	case PointerClick:
		return "pointer_click"
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	default:
		return "unknown"
	}
}

// Event is one user input observed on the page.
type Event struct {
	Type EventType

	// Pointer events: the elements under the pointer, topmost first, as
	// nodes of Doc.
	Targets []*html.Node
	Doc     *document.Document

	// Key events: the key name ("a", "F2", "Escape") and the focused
	// element, nil when focus is on the document.
	Key    string
	Target *html.Node
}

// Source delivers page input. The channel is closed once ctx is done.
type Source interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Indicator renders the target overlay over the tracked element.
type Indicator interface {
	Show(ctx context.Context, el *html.Node) error
	Hide(ctx context.Context) error
}

// Persister stores a completed binding.
type Persister interface {
	AddBinding(ctx context.Context, b *binding.Binding) error
}

// reservedKeys never become a binding key.
var reservedKeys = map[string]bool{
	"TAB":     true,
	"ENTER":   true,
	"ESCAPE":  true,
	"SHIFT":   true,
	"CONTROL": true,
	"ALT":     true,
	"META":    true,
}

// QualifyingKey reports whether a keydown of key on target may be bound or
// triggered: not a reserved or modifier key, and not typed into a text
// field or editable content.
func QualifyingKey(key string, target *html.Node) bool {
	if key == "" || reservedKeys[strings.ToUpper(key)] {
		return false
	}
	return !document.IsProtected(target)
}

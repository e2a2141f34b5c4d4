package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ysmood/gson"
	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/document"
	"github.com/hazyhaar/vind/registration"
)

// rawEvent is the payload the page script sends.
type rawEvent struct {
	Type    string   `json:"type"`
	Targets []string `json:"targets"`
	Key     string   `json:"key"`
	Target  string   `json:"target"`
	Version int      `json:"version"`
}

func parseRaw(j gson.JSON) (rawEvent, error) {
	var ev rawEvent
	if err := json.Unmarshal([]byte(j.JSON("", "")), &ev); err != nil {
		return ev, fmt.Errorf("browser: decode event: %w", err)
	}
	return ev, nil
}

type subscriber struct {
	ctx context.Context
	ch  chan registration.Event
}

// Events streams the input of one tab as registration events. It
// satisfies registration.Source; every subscriber receives every event.
type Events struct {
	tab  *Tab
	snap func(context.Context) (*document.Document, error)
	raw  chan rawEvent
	done chan struct{}

	mu   sync.Mutex
	subs map[int]*subscriber
	next int

	version int
	doc     *document.Document
	stop    func() error
}

// Events exposes the event binding, installs the page listeners and
// starts converting page input. It stops when ctx is done.
func (t *Tab) Events(ctx context.Context) (*Events, error) {
	e := newEvents(t.Snapshot)
	e.tab = t

	stop, err := t.Page.Expose(bindingName, func(j gson.JSON) (interface{}, error) {
		ev, err := parseRaw(j)
		if err != nil {
			t.logger.Debug("browser: bad event", "error", err)
			return nil, nil
		}
		e.offer(ev)
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("browser: expose: %w", err)
	}
	e.stop = stop

	if _, err := t.Page.EvalOnNewDocument(listenerScript); err != nil {
		stop()
		return nil, fmt.Errorf("browser: install listeners: %w", err)
	}
	if _, err := t.Page.Context(ctx).Eval(`() => { ` + listenerScript + ` }`); err != nil {
		stop()
		return nil, fmt.Errorf("browser: install listeners: %w", err)
	}

	go e.run(ctx)
	return e, nil
}

func newEvents(snap func(context.Context) (*document.Document, error)) *Events {
	return &Events{
		snap: snap,
		raw:  make(chan rawEvent, 256),
		done: make(chan struct{}),
		subs: make(map[int]*subscriber),
	}
}

// offer queues a page event. Pointer moves are dropped when the queue is
// full; a later move supersedes them.
func (e *Events) offer(ev rawEvent) {
	if ev.Type == "move" {
		select {
		case e.raw <- ev:
		default:
		}
		return
	}
	select {
	case e.raw <- ev:
	case <-e.done:
	}
}

// Subscribe registers a subscriber until ctx is done.
func (e *Events) Subscribe(ctx context.Context) (<-chan registration.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-e.done:
		return nil, fmt.Errorf("browser: event source stopped")
	default:
	}
	s := &subscriber{ctx: ctx, ch: make(chan registration.Event, 64)}

	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = s
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(s.ch)
		}
		e.mu.Unlock()
	}()
	return s.ch, nil
}

func (e *Events) run(ctx context.Context) {
	defer close(e.done)
	defer e.closeAll()
	if e.stop != nil {
		defer e.stop()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-e.raw:
			ev, err := e.convert(ctx, raw)
			if err != nil {
				if e.tab != nil {
					e.tab.logger.Debug("browser: event dropped", "type", raw.Type, "error", err)
				}
				continue
			}
			e.publish(ev)
		}
	}
}

// convert resolves the index paths of raw against a snapshot, taken again
// only when the page reported a DOM change since the last one.
func (e *Events) convert(ctx context.Context, raw rawEvent) (registration.Event, error) {
	var ev registration.Event
	switch raw.Type {
	case "move":
		ev.Type = registration.PointerMove
	case "click":
		ev.Type = registration.PointerClick
	case "keydown":
		ev.Type = registration.KeyDown
	case "keyup":
		ev.Type = registration.KeyUp
	default:
		return ev, fmt.Errorf("unknown event type %q", raw.Type)
	}

	if e.doc == nil || raw.Version != e.version {
		doc, err := e.snap(ctx)
		if err != nil {
			return ev, err
		}
		e.doc, e.version = doc, raw.Version
	}
	ev.Doc = e.doc

	for _, p := range raw.Targets {
		if n := e.at(ctx, p); n != nil {
			ev.Targets = append(ev.Targets, n)
		}
	}
	ev.Key = raw.Key
	if raw.Target != "" {
		ev.Target = e.at(ctx, raw.Target)
	}
	return ev, nil
}

func (e *Events) at(ctx context.Context, path string) *html.Node {
	ns, err := e.doc.Evaluate(ctx, path)
	if err != nil || len(ns) != 1 {
		return nil
	}
	return ns[0]
}

func (e *Events) publish(ev registration.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.subs {
		if ev.Type == registration.PointerMove {
			select {
			case s.ch <- ev:
			default:
			}
			continue
		}
		select {
		case s.ch <- ev:
		case <-s.ctx.Done():
		}
	}
}

func (e *Events) closeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, s := range e.subs {
		delete(e.subs, id)
		close(s.ch)
	}
}

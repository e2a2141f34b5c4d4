// Package registration runs the interactive flow that turns "point at an
// element, press a key" into a persisted binding.
//
// States advance strictly forward:
//
//	Idle -> SelectingElement -> SelectingKey -> SavingBinding -> Idle
//
// One registration runs at a time. A registration owns a single
// cancellation context for its whole lifetime; Cancel, the cancel key
// (Escape) or the caller's context fire it, and whichever phase is waiting
// (element, key, or the locator search) returns ErrAborted. Cleanup always
// runs before Register returns.
//
// Usage:
//
//	c := registration.New(src, overlay, keeper, registration.Config{}, logger)
//	b, err := c.Register(ctx, "example.com", "docs")
//	if registration.IsAborted(err) {
//		return nil
//	}
package registration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/document"
	"github.com/hazyhaar/vind/locator"
)

// State is the registration phase.
type State int

const (
	Idle State = iota
	SelectingElement
	SelectingKey
	SavingBinding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SelectingElement:
		return "selecting_element"
	case SelectingKey:
		return "selecting_key"
	case SavingBinding:
		return "saving_binding"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Selection is the target tracking mode inside SelectingElement.
type Selection int

const (
	SelectionIdle Selection = iota
	SelectionActive
	SelectionPaused
)

func (s Selection) String() string {
	switch s {
	case SelectionActive:
		return "selecting"
	case SelectionPaused:
		return "paused"
	default:
		return "idle"
	}
}

// Config tunes the interactive flow.
type Config struct {
	// Throttle bounds target recomputation on pointer movement. Default: 20ms.
	Throttle time.Duration `json:"throttle" yaml:"throttle"`

	// PauseKey suspends target tracking while held. Default: "Alt".
	PauseKey string `json:"pause_key" yaml:"pause_key"`

	// CancelKey aborts the registration. Default: "Escape".
	CancelKey string `json:"cancel_key" yaml:"cancel_key"`
}

func (c *Config) defaults() {
	if c.Throttle <= 0 {
		c.Throttle = 20 * time.Millisecond
	}
	if c.PauseKey == "" {
		c.PauseKey = "Alt"
	}
	if c.CancelKey == "" {
		c.CancelKey = "Escape"
	}
}

// Controller is the registration state machine.
type Controller struct {
	source    Source
	indicator Indicator
	store     Persister
	cfg       Config
	logger    *slog.Logger

	slot slot

	mu        sync.Mutex
	state     State
	selection Selection
	cancel    context.CancelCauseFunc
	onState   func(State)

	// query adapts a page snapshot for the locator search.
	query func(*document.Document) locator.Document
}

// New creates a Controller. indicator may be nil.
func New(source Source, indicator Indicator, store Persister, cfg Config, logger *slog.Logger) *Controller {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		source:    source,
		indicator: indicator,
		store:     store,
		cfg:       cfg,
		logger:    logger,
		slot:      newSlot(),
		query:     func(d *document.Document) locator.Document { return d },
	}
}

// OnState installs a callback invoked on every state change, from the
// registering goroutine.
func (c *Controller) OnState(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selection returns the current target tracking mode.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// InProgress reports whether a registration is running.
func (c *Controller) InProgress() bool {
	return c.slot.held()
}

// Cancel aborts the running registration.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return ErrNotInProgress
	}
	c.logger.Info("registration: cancel requested")
	cancel(ErrAborted)
	return nil
}

// Register runs one registration for the domain+path scope and returns the
// persisted binding. It fails with ErrInProgress when another one runs.
func (c *Controller) Register(ctx context.Context, domain, path string) (*binding.Binding, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	c.mu.Lock()
	if !c.slot.tryAcquire() {
		c.mu.Unlock()
		cancel(ErrInProgress)
		return nil, ErrInProgress
	}
	c.cancel = cancel
	c.mu.Unlock()
	defer c.slot.release()

	pumpDone := make(chan struct{})
	pumping := false
	defer func() {
		cancel(errFinished)
		if pumping {
			<-pumpDone
		}
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		c.hide(context.WithoutCancel(ctx))
		c.setSelection(SelectionIdle)
		c.setState(Idle)
	}()

	raw, err := c.source.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("registration: subscribe: %w", err)
	}
	events := make(chan Event, 64)
	pumping = true
	go c.pump(ctx, cancel, raw, events, pumpDone)

	c.logger.Info("registration: started", "domain", domain, "path", path)

	c.setState(SelectingElement)
	sel, err := c.selectElement(ctx, events)
	if err != nil {
		c.logOutcome(err)
		return nil, err
	}

	c.setState(SelectingKey)
	key, err := c.selectKey(ctx, events)
	if err != nil {
		c.logOutcome(err)
		return nil, err
	}

	c.setState(SavingBinding)
	b := binding.New(domain, path, key, sel.result.Selector, sel.tree)
	b.Label = document.Label(sel.element)
	if err := c.store.AddBinding(ctx, b); err != nil {
		c.logger.Warn("registration: save failed", "id", b.ID, "error", err)
		return nil, fmt.Errorf("registration: save: %w", err)
	}

	c.logger.Info("registration: binding saved",
		"id", b.ID, "domain", b.Domain, "path", b.Path, "key", b.Key, "selector", b.Selector)
	return b, nil
}

func (c *Controller) logOutcome(err error) {
	if IsAborted(err) {
		c.logger.Info("registration: aborted", "reason", err)
		return
	}
	c.logger.Warn("registration: failed", "error", err)
}

// pump forwards source events and turns the cancel key into cancellation.
// Pointer moves are dropped when the consumer is busy (resolving): a newer
// move supersedes them.
func (c *Controller) pump(ctx context.Context, cancel context.CancelCauseFunc, in <-chan Event, out chan<- Event, done chan<- struct{}) {
	defer close(done)
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if ev.Type == KeyDown && ev.Key == c.cfg.CancelKey {
				c.logger.Info("registration: cancel key pressed", "key", ev.Key)
				cancel(ErrAborted)
				return
			}
			select {
			case out <- ev:
				continue
			default:
			}
			if ev.Type == PointerMove {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

type selection struct {
	element *html.Node
	result  *locator.Result
	tree    *locator.Node
}

// selectElement tracks the bindable element under the pointer until a
// click lands on it, then resolves its locator.
func (c *Controller) selectElement(ctx context.Context, events <-chan Event) (*selection, error) {
	var (
		tracked string // index path of the tracked element
		last    *Event
		paused  bool
		th      = newThrottle[Event](c.cfg.Throttle)
	)
	defer th.stop()
	c.setSelection(SelectionActive)

	track := func(ev Event) {
		el := document.FirstBindable(ev.Targets)
		path := document.IndexPath(el)
		if path == tracked {
			return
		}
		tracked = path
		if el == nil {
			c.hide(ctx)
			return
		}
		c.logger.Debug("registration: target", "path", path, "tag", el.Data)
		c.show(ctx, el)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, aborted(ctx)

		case <-th.C():
			if ev, ok := th.fire(); ok && !paused {
				track(ev)
			}

		case ev, ok := <-events:
			if !ok {
				return nil, closed(ctx)
			}
			switch ev.Type {
			case KeyDown:
				if ev.Key == c.cfg.PauseKey && !paused {
					paused = true
					th.stop()
					tracked = ""
					c.hide(ctx)
					c.setSelection(SelectionPaused)
				}

			case KeyUp:
				if ev.Key == c.cfg.PauseKey && paused {
					paused = false
					c.setSelection(SelectionActive)
					if last != nil {
						track(*last)
					}
				}

			case PointerMove:
				e := ev
				last = &e
				if paused {
					continue
				}
				if v, ok := th.offer(ev); ok {
					track(v)
				}

			case PointerClick:
				if paused || tracked == "" || ev.Doc == nil {
					continue
				}
				el := hit(ev.Targets, tracked)
				if el == nil {
					continue
				}
				c.logger.Info("registration: element selected", "path", tracked, "tag", el.Data)

				res, tree, err := locator.NewResolver(c.query(ev.Doc), c.logger).ResolveElement(ctx, el)
				if err != nil {
					if ctx.Err() != nil {
						return nil, aborted(ctx)
					}
					return nil, err
				}
				return &selection{element: el, result: res, tree: tree}, nil
			}
		}
	}
}

// hit returns the element at path among targets and their ancestors.
func hit(targets []*html.Node, path string) *html.Node {
	for _, t := range targets {
		for n := t; n != nil && n.Type == html.ElementNode; n = n.Parent {
			if document.IndexPath(n) == path {
				return n
			}
		}
	}
	return nil
}

// selectKey waits for one qualifying keydown.
func (c *Controller) selectKey(ctx context.Context, events <-chan Event) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", ErrNoKeySelected, aborted(ctx))
		case ev, ok := <-events:
			if !ok {
				return "", fmt.Errorf("%w: %w", ErrNoKeySelected, closed(ctx))
			}
			if ev.Type != KeyDown || !QualifyingKey(ev.Key, ev.Target) {
				continue
			}
			c.logger.Info("registration: key selected", "key", ev.Key)
			return ev.Key, nil
		}
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	if prev == s {
		return
	}
	c.logger.Debug("registration: state", "from", prev, "to", s)
	if fn != nil {
		fn(s)
	}
}

func (c *Controller) setSelection(s Selection) {
	c.mu.Lock()
	c.selection = s
	c.mu.Unlock()
}

func (c *Controller) show(ctx context.Context, el *html.Node) {
	if c.indicator == nil {
		return
	}
	if err := c.indicator.Show(ctx, el); err != nil && ctx.Err() == nil {
		c.logger.Warn("registration: show indicator", "error", err)
	}
}

func (c *Controller) hide(ctx context.Context) {
	if c.indicator == nil {
		return
	}
	if err := c.indicator.Hide(ctx); err != nil {
		c.logger.Warn("registration: hide indicator", "error", err)
	}
}

package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/document"
)

// Tab wraps a Rod page: snapshots, the target overlay and clicks. It
// satisfies registration.Indicator and trigger.Page.
type Tab struct {
	Page   *rod.Page
	cfg    Config
	logger *slog.Logger
	router *rod.HijackRouter
}

// OpenTab creates a tab on the manager's browser and navigates to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	blocked, err := newBlockList(mgr.cfg.ResourceBlocking)
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, cfg: mgr.cfg, logger: mgr.logger}
	if t.router, err = blockResources(page, blocked); err != nil {
		t.Close()
		return nil, err
	}
	if err := t.Navigate(ctx, pageURL); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Navigate loads pageURL and waits for the load event.
func (t *Tab) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, t.cfg.NavTimeout)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		t.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// URL returns the current page URL, empty when the tab is gone.
func (t *Tab) URL() string {
	info, err := t.Page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Snapshot parses the current DOM into a Document.
func (t *Tab) Snapshot(ctx context.Context) (*document.Document, error) {
	res, err := t.Page.Context(ctx).Eval(outerHTMLJS)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return parseSnapshot(res.Value.Str())
}

// parseSnapshot parses outer HTML and drops the overlay element.
func parseSnapshot(src string) (*document.Document, error) {
	doc, err := document.ParseString(src)
	if err != nil {
		return nil, err
	}
	overlays, err := doc.Evaluate(context.Background(), "//*[@id='"+overlayID+"']")
	if err != nil {
		return nil, err
	}
	for _, n := range overlays {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return doc, nil
}

// Show draws the overlay over el, a node of a snapshot of this tab.
func (t *Tab) Show(ctx context.Context, el *html.Node) error {
	_, err := t.Page.Context(ctx).Eval(showOverlayJS, document.IndexPath(el))
	if err != nil {
		return fmt.Errorf("browser: show overlay: %w", err)
	}
	return nil
}

// Hide removes the overlay.
func (t *Tab) Hide(ctx context.Context) error {
	_, err := t.Page.Context(ctx).Eval(hideOverlayJS)
	if err != nil {
		return fmt.Errorf("browser: hide overlay: %w", err)
	}
	return nil
}

// SetCapture makes page clicks select elements instead of activating
// them, for the duration of a registration.
func (t *Tab) SetCapture(ctx context.Context, on bool) error {
	_, err := t.Page.Context(ctx).Eval(setCaptureJS, on)
	return err
}

// Click clicks the live element el stands for.
func (t *Tab) Click(ctx context.Context, el *html.Node) error {
	path := document.IndexPath(el)
	els, err := t.Page.Context(ctx).ElementsX(path)
	if err != nil {
		return fmt.Errorf("browser: find %s: %w", path, err)
	}
	if len(els) != 1 {
		return fmt.Errorf("browser: %s matches %d elements", path, len(els))
	}
	if err := els[0].Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", path, err)
	}
	return nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

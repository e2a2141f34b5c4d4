package binding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/locator"
)

// ErrNotFound means neither the cached selector nor the locator tree
// identifies exactly one element in the current document.
var ErrNotFound = errors.New("binding: element not found")

// Locate finds the bound element in doc. The cached selector is evaluated
// first; when it does not match exactly one element the stored locator is
// re-resolved. The returned selector is the one that matched, which
// differs from b.Selector when it was refreshed.
func Locate(ctx context.Context, doc locator.Document, b *Binding, logger *slog.Logger) (*html.Node, string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if b.Selector != "" {
		matches, err := doc.Evaluate(ctx, b.Selector)
		if err != nil {
			return nil, "", fmt.Errorf("binding: locate %s: %w", b.ID, err)
		}
		if len(matches) == 1 {
			return matches[0], b.Selector, nil
		}
		logger.Debug("binding: cached selector stale",
			"id", b.ID, "selector", b.Selector, "matches", len(matches))
	}

	if b.Locator == nil {
		return nil, "", fmt.Errorf("binding: locate %s: %w", b.ID, ErrNotFound)
	}

	res, err := locator.NewResolver(doc, logger).Resolve(ctx, b.Locator)
	if err != nil {
		var ue *locator.UnresolvableError
		if errors.As(err, &ue) {
			return nil, "", fmt.Errorf("binding: locate %s: %w: %w", b.ID, ErrNotFound, err)
		}
		return nil, "", fmt.Errorf("binding: locate %s: %w", b.ID, err)
	}
	if res.Selector != b.Selector {
		logger.Info("binding: selector refreshed",
			"id", b.ID, "old", b.Selector, "new", res.Selector, "evaluations", res.Evaluations)
	}
	return res.Element, res.Selector, nil
}

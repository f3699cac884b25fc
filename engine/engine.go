package engine

import (
	"context"
	"errors"

	"github.com/ysmood/gson"
)

// ErrDriverClosed marks a driver that can no longer be controlled (the
// browser process died or the connection to it was lost). Errors wrapping
// it abort the whole crawl session.
var ErrDriverClosed = errors.New("driver closed")

// Page is the single tab a crawl session drives. Every method is bounded by
// ctx; implementations must return promptly once ctx is done.
type Page interface {
	// Navigate loads url in the tab.
	Navigate(ctx context.Context, url string) error

	// WaitLoad blocks until the document reports load completion.
	WaitLoad(ctx context.Context) error

	// Eval runs a JavaScript function expression in the page and returns
	// its JSON-encoded result.
	Eval(ctx context.Context, js string) (gson.JSON, error)

	// HTML returns a snapshot of the rendered markup.
	HTML(ctx context.Context) (string, error)

	// Has reports whether at least one element matches the CSS selector.
	Has(ctx context.Context, selector string) (bool, error)
}

package engine

import (
	"context"
	"fmt"
	"time"
)

const (
	jsScrollHeight   = `() => document.body ? document.body.scrollHeight : 0`
	jsScrollToBottom = `() => window.scrollTo(0, document.body.scrollHeight)`

	// maxScrollSteps bounds a pass on pages with endless feeds.
	maxScrollSteps = 400
)

// Sleeper is the part of a clock a scroll pass needs.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ScrollThrough scrolls the page down in step-pixel increments, pausing
// after each, and returns to the top. Engines without scripting report a
// zero height and the pass is a no-op apart from the final scroll.
func ScrollThrough(ctx context.Context, p Page, clock Sleeper, step int, pause time.Duration) error {
	if step <= 0 {
		return fmt.Errorf("scroll step must be positive, got %d", step)
	}
	res, err := p.Eval(ctx, jsScrollHeight)
	if err != nil {
		return fmt.Errorf("read scroll height: %w", err)
	}
	height := res.Int()

	for y, n := 0, 0; y < height && n < maxScrollSteps; y, n = y+step, n+1 {
		if _, err := p.Eval(ctx, scrollTo(y)); err != nil {
			return fmt.Errorf("scroll to %d: %w", y, err)
		}
		if err := clock.Sleep(ctx, pause); err != nil {
			return err
		}
	}
	if _, err := p.Eval(ctx, scrollTo(0)); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	return nil
}

// ScrollToBottom jumps to the end of the document once.
func ScrollToBottom(ctx context.Context, p Page) error {
	_, err := p.Eval(ctx, jsScrollToBottom)
	return err
}

func scrollTo(y int) string {
	return fmt.Sprintf(`() => window.scrollTo(0, %d)`, y)
}

// Package captcha detects anti-bot challenges on the current page and holds
// the crawl until a human (or the site) clears them.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/lazcrawl/engine"
	"github.com/use-agent/lazcrawl/timing"
)

// ErrTimeout is returned when a challenge is still present at the deadline.
var ErrTimeout = errors.New("captcha not cleared before deadline")

// Options configures a Guard.
type Options struct {
	// Selector matches the challenge marker, e.g. iframe[src*='captcha'].
	Selector string
	// Timeout is how long a challenge may stay on screen.
	Timeout time.Duration
	// Poll is the pause between two checks.
	Poll timing.Range
	// Settle is the pause after a challenge clears.
	Settle timing.Range
}

// Report describes what Ensure observed.
type Report struct {
	Challenged bool
	Polls      int
	Waited     time.Duration
}

// Guard detects and waits out challenges. It is not safe for concurrent use
// on the same page, which matches the single-tab session it serves.
type Guard struct {
	opts   Options
	clock  timing.Clock
	jitter *timing.Jitter
}

// NewGuard creates a Guard.
func NewGuard(opts Options, clock timing.Clock, jitter *timing.Jitter) *Guard {
	return &Guard{opts: opts, clock: clock, jitter: jitter}
}

// Detect reports whether a challenge marker is present. Query errors count
// as "no challenge".
func (g *Guard) Detect(ctx context.Context, page engine.Page) bool {
	present, _ := g.check(ctx, page)
	return present
}

// check is Detect that surfaces driver loss.
func (g *Guard) check(ctx context.Context, page engine.Page) (bool, error) {
	present, err := page.Has(ctx, g.opts.Selector)
	if err != nil {
		if errors.Is(err, engine.ErrDriverClosed) || ctx.Err() != nil {
			return false, err
		}
		slog.Debug("captcha check failed", "error", err)
		return false, nil
	}
	return present, nil
}

// poll is the state of an active challenge wait.
type poll struct {
	started  time.Time
	deadline time.Time
	count    int
}

func (p *poll) expired(now time.Time) bool { return !now.Before(p.deadline) }

// Ensure returns immediately when no challenge is present. Otherwise it
// re-checks every Poll interval until the marker disappears, then pauses for
// Settle. A challenge that outlives Timeout yields ErrTimeout.
func (g *Guard) Ensure(ctx context.Context, page engine.Page) (Report, error) {
	present, err := g.check(ctx, page)
	if err != nil || !present {
		return Report{}, err
	}

	now := g.clock.Now()
	st := poll{started: now, deadline: now.Add(g.opts.Timeout)}
	slog.Warn("captcha detected, waiting for it to be solved", "timeout", g.opts.Timeout)

	for !st.expired(g.clock.Now()) {
		if _, err := timing.Pause(ctx, g.clock, g.jitter, g.opts.Poll); err != nil {
			return g.report(st), err
		}
		st.count++

		present, err := g.check(ctx, page)
		if err != nil {
			return g.report(st), err
		}
		if !present {
			slog.Info("captcha cleared", "polls", st.count, "waited", g.clock.Now().Sub(st.started))
			if _, err := timing.Pause(ctx, g.clock, g.jitter, g.opts.Settle); err != nil {
				return g.report(st), err
			}
			return g.report(st), nil
		}
	}

	rep := g.report(st)
	return rep, fmt.Errorf("%w: still present after %s (%d polls)", ErrTimeout, rep.Waited.Round(time.Second), rep.Polls)
}

func (g *Guard) report(st poll) Report {
	return Report{Challenged: true, Polls: st.count, Waited: g.clock.Now().Sub(st.started)}
}

package captcha

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/lazcrawl/engine"
	"github.com/use-agent/lazcrawl/engine/enginetest"
	"github.com/use-agent/lazcrawl/timing"
)

const pageURL = "https://www.lazada.vn/products/a-i1.html"

func newFixture(t *testing.T, captchaFor time.Duration) (*Guard, *enginetest.Page, *enginetest.Clock) {
	t.Helper()
	clock := enginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	page := &enginetest.Page{
		Clock:   clock,
		Pages:   map[string]string{pageURL: `<div id="root"></div>`},
		Captcha: map[string]time.Duration{pageURL: captchaFor},
	}
	require.NoError(t, page.Navigate(context.Background(), pageURL))

	g := NewGuard(Options{
		Selector: "iframe[src*='captcha']",
		Timeout:  60 * time.Second,
		Poll:     timing.Range{Min: 2 * time.Second, Max: 3 * time.Second},
		Settle:   timing.Range{Min: 2 * time.Second, Max: 3 * time.Second},
	}, clock, timing.NewJitter(3))
	return g, page, clock
}

func TestEnsure_NoChallengeReturnsImmediately(t *testing.T) {
	g, page, clock := newFixture(t, 0)

	rep, err := g.Ensure(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, rep.Challenged)
	assert.Empty(t, clock.Sleeps(), "no polling expected")
	assert.False(t, g.Detect(context.Background(), page))
}

func TestEnsure_ChallengeClears(t *testing.T) {
	g, page, clock := newFixture(t, 10*time.Second)
	assert.True(t, g.Detect(context.Background(), page))

	rep, err := g.Ensure(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, rep.Challenged)
	assert.GreaterOrEqual(t, rep.Polls, 4)
	assert.LessOrEqual(t, rep.Polls, 5)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, rep.Polls+1, "polls plus one settle pause")
	for _, d := range sleeps {
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestEnsure_TimesOut(t *testing.T) {
	g, page, clock := newFixture(t, time.Hour)
	start := clock.Now()

	rep, err := g.Ensure(context.Background(), page)
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, rep.Challenged)

	elapsed := clock.Now().Sub(start)
	assert.GreaterOrEqual(t, elapsed, 60*time.Second)
	assert.Less(t, elapsed, 63*time.Second, "must stop polling right after the deadline")
}

func TestEnsure_ClearsJustBeforeDeadline(t *testing.T) {
	g, page, _ := newFixture(t, 59*time.Second)

	_, err := g.Ensure(context.Background(), page)
	assert.NoError(t, err)
}

func TestEnsure_DriverClosed(t *testing.T) {
	g, page, _ := newFixture(t, 0)
	page.Closed = true

	_, err := g.Ensure(context.Background(), page)
	assert.ErrorIs(t, err, engine.ErrDriverClosed)
	assert.False(t, g.Detect(context.Background(), page))
}

func TestEnsure_ContextCancelled(t *testing.T) {
	g, page, _ := newFixture(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Ensure(ctx, page)
	assert.ErrorIs(t, err, context.Canceled)
}

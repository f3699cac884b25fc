package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/lazcrawl/engine"
	"github.com/use-agent/lazcrawl/engine/enginetest"
)

func TestScrollThrough(t *testing.T) {
	clock := enginetest.NewClock(time.Unix(0, 0))
	page := &enginetest.Page{Clock: clock, ScrollHeight: 1000}

	err := engine.ScrollThrough(context.Background(), page, clock, 200, 100*time.Millisecond)
	require.NoError(t, err)

	// 0, 200, 400, 600, 800 then back to top.
	assert.Len(t, clock.Sleeps(), 5)
	evals := page.Evals()
	require.Len(t, evals, 7)
	assert.Contains(t, evals[0], "scrollHeight")
	assert.Contains(t, evals[len(evals)-1], "scrollTo(0, 0)")
}

func TestScrollThrough_NoScripting(t *testing.T) {
	clock := enginetest.NewClock(time.Unix(0, 0))
	page := &enginetest.Page{Clock: clock}

	require.NoError(t, engine.ScrollThrough(context.Background(), page, clock, 200, time.Second))
	assert.Empty(t, clock.Sleeps())
}

func TestScrollThrough_DriverClosed(t *testing.T) {
	clock := enginetest.NewClock(time.Unix(0, 0))
	page := &enginetest.Page{Clock: clock, Closed: true}

	err := engine.ScrollThrough(context.Background(), page, clock, 200, time.Second)
	assert.True(t, errors.Is(err, engine.ErrDriverClosed))
}

func TestScrollToBottom(t *testing.T) {
	page := &enginetest.Page{Clock: enginetest.NewClock(time.Unix(0, 0))}
	require.NoError(t, engine.ScrollToBottom(context.Background(), page))
	require.Len(t, page.Evals(), 1)
	assert.True(t, strings.Contains(page.Evals()[0], "scrollTo"))
}

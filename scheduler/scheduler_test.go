package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurationUntilNextLocalMidnightIsWithinADay(t *testing.T) {
	d := durationUntilNextLocalMidnight()
	require.Greater(t, d, time.Duration(0))
	require.LessOrEqual(t, d, 24*time.Hour)
}

// TestRefreshOnceDropsWhenBusy is the non-blocking "never overlap" rule
// from spec.md §4.3.
func TestRefreshOnceDropsWhenBusy(t *testing.T) {
	s := &Scheduler{refreshing: make(chan struct{}, 1)}

	s.refreshing <- struct{}{} // simulate a refresh already in flight

	// With a nil aggregator, refreshOnce would panic if it did not drop.
	s.refreshOnce(context.Background())
	require.Len(t, s.refreshing, 1)

	select {
	case s.refreshing <- struct{}{}:
		t.Fatal("expected the busy channel to reject a second concurrent signal")
	default:
	}
}

package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch/errors"
	"github.com/streamwatch/streamwatch/events"
)

func newTestBroker() *Broker {
	return NewBroker(events.NewBus())
}

func TestCreateStartsInitializing(t *testing.T) {
	b := newTestBroker()
	j := b.Create("kick", "xqc")
	require.Equal(t, StateInitializing, j.State)
	require.Equal(t, 0, j.Progress)
}

func TestTransitionFollowsGraph(t *testing.T) {
	b := newTestBroker()
	j := b.Create("kick", "xqc")

	_, err := b.Transition(j.ID, StateResolving, Patch{})
	require.NoError(t, err)
	_, err = b.Transition(j.ID, StateCapturing, Patch{})
	require.NoError(t, err)
	got, err := b.Transition(j.ID, StateCaptured, Patch{})
	require.NoError(t, err)
	require.Equal(t, StateCaptured, got.State)
}

func TestIllegalTransitionRejected(t *testing.T) {
	b := newTestBroker()
	j := b.Create("kick", "xqc")

	_, err := b.Transition(j.ID, StateCaptured, Patch{})
	require.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestProgressMonotonicWithinState(t *testing.T) {
	b := newTestBroker()
	j := b.Create("kick", "xqc")
	_, _ = b.Transition(j.ID, StateResolving, Patch{})
	_, _ = b.Transition(j.ID, StateCapturing, Patch{})

	_, err := b.UpdateProgress(j.ID, 40)
	require.NoError(t, err)
	got, err := b.UpdateProgress(j.ID, 20)
	require.NoError(t, err)
	require.Equal(t, 40, got.Progress, "progress must not decrease within a state")

	got, err = b.UpdateProgress(j.ID, 90)
	require.NoError(t, err)
	require.Equal(t, 90, got.Progress)
}

func TestProgressResetsAcrossStates(t *testing.T) {
	b := newTestBroker()
	j := b.Create("kick", "xqc")
	_, _ = b.Transition(j.ID, StateResolving, Patch{})
	_, _ = b.Transition(j.ID, StateCapturing, Patch{})
	_, _ = b.UpdateProgress(j.ID, 100)

	got, err := b.Transition(j.ID, StateCaptured, Patch{})
	require.NoError(t, err)
	require.Equal(t, 0, got.Progress)
}

// TestAtMostOneConcurrentTransition is §8 property 4: firing N concurrent
// transition attempts against a shared job from the same starting state,
// exactly one succeeds.
func TestAtMostOneConcurrentTransition(t *testing.T) {
	b := newTestBroker()
	j := b.Create("kick", "xqc")

	const n = 50
	var wg sync.WaitGroup
	successes := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := b.Transition(j.ID, StateResolving, Patch{})
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestDeleteRequiresTerminalState(t *testing.T) {
	b := newTestBroker()
	j := b.Create("kick", "xqc")

	err := b.Delete(j.ID)
	require.Error(t, err)

	_, _ = b.Transition(j.ID, StateError, Patch{})
	require.NoError(t, b.Delete(j.ID))
}

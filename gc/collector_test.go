package gc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch/events"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/metrics"
)

// TestStallSweepFailsAgedNonTerminalJob is §8 property 7.
func TestStallSweepFailsAgedNonTerminalJob(t *testing.T) {
	broker := jobs.NewBroker(events.NewBus())
	j := broker.Create("kick", "xqc")
	_, err := broker.Transition(j.ID, jobs.StateResolving, jobs.Patch{})
	require.NoError(t, err)
	got, err := broker.Transition(j.ID, jobs.StateCapturing, jobs.Patch{})
	require.NoError(t, err)
	require.Equal(t, jobs.StateCapturing, got.State)

	dataDir := t.TempDir()
	c := NewCollector(broker, dataDir, metrics.New())
	c.stallThreshold = 0 // every non-terminal job looks stalled immediately

	time.Sleep(time.Millisecond)
	c.StallSweep()

	got, ok := broker.Get(j.ID)
	require.True(t, ok)
	require.Equal(t, jobs.StateError, got.State)
	require.Equal(t, "stalled", got.ErrorReason)
}

func TestStallSweepLeavesFreshJobsAlone(t *testing.T) {
	broker := jobs.NewBroker(events.NewBus())
	j := broker.Create("kick", "xqc")

	dataDir := t.TempDir()
	c := NewCollector(broker, dataDir, metrics.New())

	c.StallSweep()

	got, ok := broker.Get(j.ID)
	require.True(t, ok)
	require.Equal(t, jobs.StateInitializing, got.State)
}

// TestDiskPressureSweepEvictsOldestTenPercent is §8 property 8: with usage
// forced over threshold, only the oldest-by-creation clips are removed.
func TestDiskPressureSweepEvictsOldestTenPercent(t *testing.T) {
	dataDir := t.TempDir()
	clipsDir := filepath.Join(dataDir, "clips")
	require.NoError(t, os.MkdirAll(clipsDir, 0o755))

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for i, name := range names {
		path := filepath.Join(clipsDir, name+".mp4")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		mtime := time.Now().Add(time.Duration(i) * time.Hour)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	broker := jobs.NewBroker(events.NewBus())
	c := NewCollector(broker, dataDir, metrics.New())
	c.diskPressureThresholdPct = -1 // force "over threshold" without mocking gopsutil
	c.diskPressureEvictPct = 10

	c.DiskPressureSweep()

	_, err := os.Stat(filepath.Join(clipsDir, "a.mp4"))
	require.True(t, os.IsNotExist(err), "oldest clip should be evicted")

	_, err = os.Stat(filepath.Join(clipsDir, "j.mp4"))
	require.NoError(t, err, "newest clip must survive")
}

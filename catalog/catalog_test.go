package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch/platforms"
)

func rec(platform platforms.Platform, id string, status platforms.Status) platforms.Record {
	return platforms.Record{Platform: platform, PlatformID: id, DisplayName: id, Status: status}
}

// TestSortOrdering is §8 property 1: live-first, then viewer count, then
// recency, with a stable (platform, platform_id) tiebreak.
func TestSortOrdering(t *testing.T) {
	now := time.Now()
	snap := Snapshot{
		rec(platforms.Kick, "b", platforms.LiveStatus{ViewerCount: 10}),
		rec(platforms.Kick, "a", platforms.LiveStatus{ViewerCount: 50}),
		rec(platforms.Trovo, "z", platforms.OfflineStatus{LastBroadcastAt: now.Add(-time.Hour)}),
		rec(platforms.Trovo, "y", platforms.OfflineStatus{LastBroadcastAt: now.Add(-time.Minute)}),
		rec(platforms.DLive, "never", platforms.OfflineStatus{}),
	}

	Sort(snap)

	require.Equal(t, "a", snap[0].PlatformID, "higher viewer count sorts first among live")
	require.Equal(t, "b", snap[1].PlatformID)
	require.Equal(t, "y", snap[2].PlatformID, "more recent last_broadcast_at sorts first among offline")
	require.Equal(t, "z", snap[3].PlatformID)
	require.Equal(t, "never", snap[4].PlatformID, "absent last_broadcast_at sorts as epoch zero, i.e. last")
}

// TestSortTiebreakIsStablePlatformThenID covers the final tiebreak key.
func TestSortTiebreakIsStablePlatformThenID(t *testing.T) {
	snap := Snapshot{
		rec(platforms.Trovo, "same", platforms.LiveStatus{ViewerCount: 5}),
		rec(platforms.Kick, "same", platforms.LiveStatus{ViewerCount: 5}),
	}
	Sort(snap)
	require.Equal(t, platforms.Kick, snap[0].Platform, "kick < trovo lexicographically")
}

// TestWriteAtomicThenRead is §8 property 2: a reader never observes a
// partially-written snapshot, and the round trip preserves every Status kind.
func TestWriteAtomicThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	snap := Snapshot{
		rec(platforms.Kick, "live1", platforms.LiveStatus{Title: "hi", ViewerCount: 99, StartedAt: time.Now().Truncate(time.Second).UTC()}),
		rec(platforms.Trovo, "off1", platforms.OfflineStatus{LastBroadcastAt: time.Now().Add(-time.Hour).Truncate(time.Second).UTC()}),
		rec(platforms.DLive, "nf1", platforms.NotFoundStatus{}),
		rec(platforms.Twitch, "err1", platforms.ErrorStatus{Reason: "timeout"}),
	}

	require.NoError(t, WriteAtomic(path, snap))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover temp file after a successful rename")

	got, err := ReadFromDisk(path)
	require.NoError(t, err)
	require.Len(t, got, len(snap))
	for i := range snap {
		require.Equal(t, snap[i].Platform, got[i].Platform)
		require.Equal(t, snap[i].PlatformID, got[i].PlatformID)
		require.Equal(t, snap[i].Status, got[i].Status)
	}
}

func TestReadFromDiskMissingFileReturnsEmpty(t *testing.T) {
	snap, err := ReadFromDisk(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Empty(t, snap)
}

// Package catalog implements the catalog aggregator (C2): fan out over the
// roster, merge per-platform results, apply the uniform sort, and publish
// an atomically-written snapshot.
package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/streamwatch/streamwatch/platforms"
)

// Snapshot is the ordered, persisted catalog (spec.md §3).
type Snapshot []platforms.Record

// sortKey captures the four precedence fields from §4.2 for one record.
type sortKey struct {
	live            bool
	viewerCount     uint32
	lastBroadcastAt time.Time
	platform        platforms.Platform
	platformID      string
}

func keyFor(r platforms.Record) sortKey {
	k := sortKey{platform: r.Platform, platformID: r.PlatformID}
	switch s := r.Status.(type) {
	case platforms.LiveStatus:
		k.live = true
		k.viewerCount = s.ViewerCount
	case platforms.OfflineStatus:
		k.lastBroadcastAt = s.LastBroadcastAt
	}
	return k
}

// Sort applies spec.md §4.2's total order in place:
//  1. live before not-live
//  2. among live, higher viewer_count first
//  3. among not-live, more recent last_broadcast_at first (absent = epoch zero)
//  4. ties broken by (platform, platform_id) ascending
func Sort(snap Snapshot) {
	sort.SliceStable(snap, func(i, j int) bool {
		a, b := keyFor(snap[i]), keyFor(snap[j])

		if a.live != b.live {
			return a.live // live sorts first
		}
		if a.live {
			if a.viewerCount != b.viewerCount {
				return a.viewerCount > b.viewerCount
			}
		} else {
			if !a.lastBroadcastAt.Equal(b.lastBroadcastAt) {
				return a.lastBroadcastAt.After(b.lastBroadcastAt)
			}
		}
		if a.platform != b.platform {
			return a.platform < b.platform
		}
		return a.platformID < b.platformID
	})
}

// WriteAtomic persists snap to path via write-to-temp-then-rename, so
// concurrent readers (§8 property 2) never observe a truncated file.
// Grounded on the teacher's object-store upload discipline
// (clients/object_store_client.go), adapted to local disk.
func WriteAtomic(path string, snap Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// ReadFromDisk loads the last persisted snapshot, e.g. for per-platform
// fallback on refresh failure, or an empty Snapshot if none exists yet.
func ReadFromDisk(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

package platforms

import (
	"encoding/json"
	"os"
)

// Roster is the static `{platform -> streamer refs}` configuration read once
// at startup (spec.md §3). It is never mutated during a process lifetime;
// the catalog aggregator only ever reads it.
type Roster map[Platform][]string

// Refs flattens the roster into a slice of Ref, in roster-file order within
// each platform and platform-map iteration order across platforms (the
// aggregator's own sort pass is what gives the published catalog its total
// order, not roster iteration order).
func (r Roster) Refs() []Ref {
	var out []Ref
	for platform, ids := range r {
		for _, id := range ids {
			out = append(out, Ref{Platform: platform, PlatformID: id})
		}
	}
	return out
}

// ForPlatform returns the configured refs for one platform, or nil if the
// platform has no roster entries (not the same as "unknown platform" at the
// HTTP layer, which 404s instead).
func (r Roster) ForPlatform(platform Platform) []string {
	return r[platform]
}

// AllPlatforms lists every platform streamwatch knows how to adapt, in a
// fixed order used for "partitioned by platform" responses and for
// constructing one adapter instance per platform regardless of whether its
// roster is empty.
func AllPlatforms() []Platform {
	return []Platform{Kick, Trovo, Chaturbate, DLive, Twitch, YouTube, Rumble}
}

// IsKnownPlatform reports whether platform is one streamwatch has an
// adapter for (used to return 404 for GET /api/streamers/{platform} on an
// unrecognized value).
func IsKnownPlatform(platform string) bool {
	for _, p := range AllPlatforms() {
		if string(p) == platform {
			return true
		}
	}
	return false
}

// LoadRoster reads the static roster file: a JSON object of
// `{"platform": ["streamer_id", ...]}`, plain JSON like the array format
// already used for the catalog snapshot (catalog.WriteAtomic/ReadFromDisk)
// rather than introducing a second config format for what is, at startup,
// just more normalized data. A missing file yields an empty roster rather
// than an error, so a fresh deployment can start up and have its roster
// added later without a restart-blocking failure.
func LoadRoster(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Roster{}, nil
		}
		return nil, err
	}
	var r Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

package platforms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRosterMissingFileReturnsEmpty(t *testing.T) {
	r, err := LoadRoster(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Empty(t, r)
}

func TestLoadRosterParsesPlatformMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kick":["a","b"],"twitch":["c"]}`), 0o644))

	r, err := LoadRoster(path)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, r.ForPlatform(Kick))
	require.Equal(t, []string{"c"}, r.ForPlatform(Twitch))
	require.Empty(t, r.ForPlatform(Rumble))
}

func TestIsKnownPlatform(t *testing.T) {
	require.True(t, IsKnownPlatform("kick"))
	require.False(t, IsKnownPlatform("not-a-platform"))
}

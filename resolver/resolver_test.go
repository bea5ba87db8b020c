package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch/catalog"
	"github.com/streamwatch/streamwatch/events"
	"github.com/streamwatch/streamwatch/metrics"
	"github.com/streamwatch/streamwatch/platforms"
)

const validMediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXTINF:6.0,
segment0.ts
#EXT-X-ENDLIST
`

func TestResolveFromSnapshotSkipsBrowserProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	snap := catalog.Snapshot{
		{
			Platform:   platforms.Kick,
			PlatformID: "xqc",
			Status:     platforms.LiveStatus{Title: "live", ViewerCount: 10},
			StreamURL:  "https://example.com/stream.m3u8",
		},
	}
	require.NoError(t, catalog.WriteAtomic(path, snap))

	agg := catalog.NewAggregator(nil, nil, nil, path, events.NewBus(), metrics.New())
	r := New(agg, nil)

	url := r.fromSnapshot(platforms.Ref{Platform: platforms.Kick, PlatformID: "xqc"})
	require.Equal(t, "https://example.com/stream.m3u8", url)
}

func TestResolveFromSnapshotMissReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	agg := catalog.NewAggregator(nil, nil, nil, path, events.NewBus(), metrics.New())
	r := New(agg, nil)

	url := r.fromSnapshot(platforms.Ref{Platform: platforms.Kick, PlatformID: "missing"})
	require.Empty(t, url)
}

func TestVerifyPlaylistAcceptsValidMediaPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(validMediaPlaylist))
	}))
	defer srv.Close()

	r := &Resolver{}
	require.NoError(t, r.verifyPlaylist(context.Background(), srv.URL))
}

func TestVerifyPlaylistRejectsNonPlaylistBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not a playlist</html>"))
	}))
	defer srv.Close()

	r := &Resolver{}
	require.Error(t, r.verifyPlaylist(context.Background(), srv.URL))
}

func TestVerifyPlaylistRejects404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := &Resolver{}
	require.Error(t, r.verifyPlaylist(context.Background(), srv.URL))
}

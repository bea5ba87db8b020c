package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch/capture"
	"github.com/streamwatch/streamwatch/catalog"
	"github.com/streamwatch/streamwatch/clip"
	"github.com/streamwatch/streamwatch/events"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/metrics"
	"github.com/streamwatch/streamwatch/platforms"
	"github.com/streamwatch/streamwatch/uploader"
)

func newTestServer(t *testing.T, apiKey string) (*Server, *jobs.Broker) {
	t.Helper()
	dataDir := t.TempDir()
	bus := events.NewBus()
	m := metrics.New()
	broker := jobs.NewBroker(bus)

	agg := catalog.NewAggregator(nil, nil, nil, filepath.Join(dataDir, "catalog.json"), bus, m)
	capWorker := capture.NewWorker(broker, nil, dataDir)
	clipExtractor := clip.NewExtractor(broker, dataDir)
	up := uploader.New("https://file.io", broker)

	s := NewServer(agg, broker, capWorker, clipExtractor, up, bus, m, dataDir, apiKey, 240*time.Second)
	return s, broker
}

func doRequest(t *testing.T, router http.Handler, method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestUnauthorizedWithoutAPIKey(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	router := NewRouter(s)

	rr := doRequest(t, router, http.MethodGet, "/api/streamers", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPIKeyDisabledWhenUnconfigured(t *testing.T) {
	s, _ := newTestServer(t, "")
	router := NewRouter(s)

	rr := doRequest(t, router, http.MethodGet, "/api/streamers", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestGetPlatformStreamersUnknownPlatform404(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	router := NewRouter(s)

	rr := doRequest(t, router, http.MethodGet, "/api/streamers/not-a-platform", "secret", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetPlatformStreamersKnownPlatform(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	router := NewRouter(s)

	rr := doRequest(t, router, http.MethodGet, "/api/streamers/"+string(platforms.Kick), "secret", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRefreshReturns202Immediately(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	router := NewRouter(s)

	rr := doRequest(t, router, http.MethodPost, "/api/refresh", "secret", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
}

func TestJobLifecycleEndpoints(t *testing.T) {
	s, broker := newTestServer(t, "secret")
	router := NewRouter(s)

	job := broker.Create("kick", "xqc")

	rr := doRequest(t, router, http.MethodGet, "/api/jobs/"+job.ID, "secret", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got jobs.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, jobs.StateInitializing, got.State)

	rr = doRequest(t, router, http.MethodGet, "/api/jobs/does-not-exist", "secret", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/api/jobs", "secret", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

// TestCreateClipRequiresCapturedState exercises §6's "requires captured"
// precondition on POST /api/clip.
func TestCreateClipRequiresCapturedState(t *testing.T) {
	s, broker := newTestServer(t, "secret")
	router := NewRouter(s)

	job := broker.Create("kick", "xqc") // still `initializing`

	rr := doRequest(t, router, http.MethodPost, "/api/clip", "secret", clipRequest{
		ClipID: job.ID, StartTime: 0, Duration: 10,
	})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateClipUnknownJob404(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	router := NewRouter(s)

	rr := doRequest(t, router, http.MethodPost, "/api/clip", "secret", clipRequest{
		ClipID: "nope", StartTime: 0, Duration: 10,
	})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateClipInvalidRangeRejected(t *testing.T) {
	s, broker := newTestServer(t, "secret")
	router := NewRouter(s)

	job := broker.Create("kick", "xqc")
	_, err := broker.Transition(job.ID, jobs.StateResolving, jobs.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(job.ID, jobs.StateCapturing, jobs.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(job.ID, jobs.StateCaptured, jobs.Patch{})
	require.NoError(t, err)

	s.rememberMaxDuration(job.ID, 60)

	rr := doRequest(t, router, http.MethodPost, "/api/clip", "secret", clipRequest{
		ClipID: job.ID, StartTime: 50, Duration: 20, // 70 > 60
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadRequiresCompletedState(t *testing.T) {
	s, broker := newTestServer(t, "secret")
	router := NewRouter(s)

	job := broker.Create("kick", "xqc")

	rr := doRequest(t, router, http.MethodPost, "/api/upload", "secret", uploadRequest{ClipID: job.ID})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestDeleteClipRemovesJobRegistryEntry(t *testing.T) {
	s, broker := newTestServer(t, "secret")
	router := NewRouter(s)

	job := broker.Create("kick", "xqc")
	_, err := broker.Transition(job.ID, jobs.StateError, jobs.Patch{})
	require.NoError(t, err)

	rr := doRequest(t, router, http.MethodDelete, "/api/clips/"+job.ID, "secret", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	_, ok := broker.Get(job.ID)
	require.False(t, ok)
}

func TestListClipsEmptyDataDir(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	router := NewRouter(s)

	rr := doRequest(t, router, http.MethodGet, "/api/clips", "secret", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, "[]", rr.Body.String())
}

package uploader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch/events"
	"github.com/streamwatch/streamwatch/jobs"
)

func writeTestClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake mp4 bytes"), 0o644))
	return path
}

func completedJob(t *testing.T, broker *jobs.Broker) jobs.Job {
	t.Helper()
	j := broker.Create("kick", "xqc")
	_, err := broker.Transition(j.ID, jobs.StateResolving, jobs.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, jobs.StateCapturing, jobs.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, jobs.StateCaptured, jobs.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, jobs.StateProcessing, jobs.Patch{})
	require.NoError(t, err)
	clipPath := writeTestClip(t)
	got, err := broker.Transition(j.ID, jobs.StateCompleted, jobs.Patch{ClipPath: jobs.StrPtr(clipPath)})
	require.NoError(t, err)
	return got
}

func TestUploadSuccessTransitionsToUploaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"url":"https://file.io/abc123"}`))
	}))
	defer srv.Close()

	broker := jobs.NewBroker(events.NewBus())
	job := completedJob(t, broker)

	u := New(srv.URL, broker)
	require.NoError(t, u.Upload(context.Background(), job))

	got, ok := broker.Get(job.ID)
	require.True(t, ok)
	require.Equal(t, jobs.StateUploaded, got.State)
	require.Equal(t, "https://file.io/abc123", got.UploadedURL)
}

func TestUploadHostFailureTransitionsToError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"reason":"too large"}`))
	}))
	defer srv.Close()

	broker := jobs.NewBroker(events.NewBus())
	job := completedJob(t, broker)

	u := New(srv.URL, broker)
	err := u.Upload(context.Background(), job)
	require.Error(t, err)

	got, ok := broker.Get(job.ID)
	require.True(t, ok)
	require.Equal(t, jobs.StateError, got.State)
	require.Contains(t, got.ErrorReason, "too large")
}

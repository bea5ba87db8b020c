// Package jobs implements the job broker (C8): the in-memory registry of
// clipping-pipeline jobs, their state transitions, and the watchdog hook
// used by the garbage collector's stall sweep.
//
// Grounded on the teacher's cache/cache.go generic Cache[T] plus
// pipeline/coordinator.go's JobInfo (embedded sync.Mutex) and
// Coordinator.runHandlerAsync lock-around-mutation discipline; this
// package adds the richer state-transition-graph enforcement (§4.8) the
// teacher's simpler cache never needed.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a job's position in the §4.8 transition graph.
type State string

const (
	StateInitializing State = "initializing"
	StateResolving     State = "resolving"
	StateCapturing     State = "capturing"
	StateCaptured       State = "captured"
	StateProcessing     State = "processing"
	StateCompleted       State = "completed"
	StateUploading       State = "uploading"
	StateUploaded         State = "uploaded"
	StateError            State = "error"
)

// IsTerminal reports whether no further transitions occur from this state.
func (s State) IsTerminal() bool {
	return s == StateUploaded || s == StateCompleted || s == StateError
}

// legalFrom holds the adjacency list of the transition graph in §4.8: every
// state before uploaded may also transition to error; uploaded and error
// have no outgoing transitions.
var legalFrom = map[State][]State{
	StateInitializing: {StateResolving, StateError},
	StateResolving:     {StateCapturing, StateError},
	StateCapturing:     {StateCaptured, StateError},
	StateCaptured:       {StateProcessing, StateError},
	StateProcessing:     {StateCompleted, StateError},
	StateCompleted:       {StateUploading, StateError},
	StateUploading:       {StateUploaded, StateError},
}

// Job is one clipping-pipeline job. Field mutation happens only inside
// Broker.Transition and Broker.UpdateProgress, under the job's own mutex;
// readers receive copies.
type Job struct {
	ID          string
	Platform    string
	StreamerRef string
	State       State
	Progress    int
	Title       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	BufferPath        string
	StreamURL         string
	ClipPath          string
	ThumbnailPath     string
	PreviewFramePaths []string
	UploadedURL       string
	ErrorReason       string

	mu sync.Mutex
}

// snapshot copies the fields a reader is allowed to see, excluding the
// mutex, so List/Get never hand out a value another goroutine could lock.
func (j *Job) snapshot() Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

// snapshotLocked is snapshot's body for callers that already hold j.mu.
func (j *Job) snapshotLocked() Job {
	cp := *j
	cp.mu = sync.Mutex{}
	cp.PreviewFramePaths = append([]string(nil), j.PreviewFramePaths...)
	return cp
}

func newJob(platform, streamerRef string) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		Platform:    platform,
		StreamerRef: streamerRef,
		State:       StateInitializing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

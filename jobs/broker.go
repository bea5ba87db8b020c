package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/streamwatch/streamwatch/errors"
	"github.com/streamwatch/streamwatch/events"
)

// Patch carries the field updates a caller wants applied as part of a
// transition; nil fields are left untouched.
type Patch struct {
	Title             *string
	BufferPath        *string
	StreamURL         *string
	ClipPath          *string
	ThumbnailPath     *string
	PreviewFramePaths []string
	UploadedURL       *string
	ErrorReason       *string
}

// Broker owns the in-memory job registry. A single mutex serializes the
// registry map itself (adding/removing jobs); each Job's own mutex
// serializes field mutation, mirroring the teacher's
// pipeline.Coordinator.Jobs *cache.Cache[*JobInfo] plus per-JobInfo locking.
type Broker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	bus  *events.Bus
}

func NewBroker(bus *events.Bus) *Broker {
	return &Broker{jobs: make(map[string]*Job), bus: bus}
}

// Create initializes a job in `initializing` and publishes job_created.
func (b *Broker) Create(platform, streamerRef string) *Job {
	j := newJob(platform, streamerRef)

	b.mu.Lock()
	b.jobs[j.ID] = j
	b.mu.Unlock()

	b.bus.Publish(events.Message{Kind: events.KindJobCreated, Payload: j.snapshot()})
	return j
}

// Get returns a snapshot copy of one job, or ok=false if unknown.
func (b *Broker) Get(id string) (Job, bool) {
	b.mu.RLock()
	j, ok := b.jobs[id]
	b.mu.RUnlock()
	if !ok {
		return Job{}, false
	}
	return j.snapshot(), true
}

// List returns a snapshot of every job currently registered.
func (b *Broker) List() []Job {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Job, 0, len(b.jobs))
	for _, j := range b.jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// Delete removes a job, only allowed in a terminal state.
func (b *Broker) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[id]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("job %s", id), nil)
	}
	j.mu.Lock()
	terminal := j.State.IsTerminal()
	j.mu.Unlock()
	if !terminal {
		return errors.ErrInvalidTransition
	}
	delete(b.jobs, id)
	return nil
}

// Transition enforces the §4.8 transition graph and serializes concurrent
// attempts per-job: exactly one of N concurrent callers racing the same
// (from, to) observes success, the rest get ErrInvalidTransition — the
// job's own mutex is held across the legality check and the mutation, so
// there is no window for two transitions to both read the same "from"
// state and both succeed.
func (b *Broker) Transition(id string, to State, patch Patch) (Job, error) {
	b.mu.RLock()
	j, ok := b.jobs[id]
	b.mu.RUnlock()
	if !ok {
		return Job{}, errors.NewNotFoundError(fmt.Sprintf("job %s", id), nil)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if !isLegalTransition(j.State, to) {
		return Job{}, errors.ErrInvalidTransition
	}

	j.State = to
	j.UpdatedAt = time.Now()
	// Progress resets on every state change: monotonicity (§8 property 3)
	// is only promised within a state, not across the whole pipeline.
	j.Progress = 0
	applyPatch(j, patch)

	cp := j.snapshotLocked()

	kind := events.KindJobUpdated
	if to == StateError {
		kind = events.KindJobError
	}
	b.bus.Publish(events.Message{Kind: kind, Payload: cp})
	return cp, nil
}

// UpdateProgress reports progress within the job's current state without
// changing its state, used by the capture/clip/upload stages as they parse
// a transcoder's or HTTP upload's progress signal. Progress is clamped to
// be non-decreasing within the current state.
func (b *Broker) UpdateProgress(id string, progress int) (Job, error) {
	b.mu.RLock()
	j, ok := b.jobs[id]
	b.mu.RUnlock()
	if !ok {
		return Job{}, errors.NewNotFoundError(fmt.Sprintf("job %s", id), nil)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > j.Progress {
		j.Progress = progress
		j.UpdatedAt = time.Now()
	}

	cp := j.snapshotLocked()
	b.bus.Publish(events.Message{Kind: events.KindJobUpdated, Payload: cp})
	return cp, nil
}

func isLegalTransition(from, to State) bool {
	for _, candidate := range legalFrom[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func applyPatch(j *Job, p Patch) {
	if p.Title != nil {
		j.Title = *p.Title
	}
	if p.BufferPath != nil {
		j.BufferPath = *p.BufferPath
	}
	if p.StreamURL != nil {
		j.StreamURL = *p.StreamURL
	}
	if p.ClipPath != nil {
		j.ClipPath = *p.ClipPath
	}
	if p.ThumbnailPath != nil {
		j.ThumbnailPath = *p.ThumbnailPath
	}
	if p.PreviewFramePaths != nil {
		j.PreviewFramePaths = p.PreviewFramePaths
	}
	if p.UploadedURL != nil {
		j.UploadedURL = *p.UploadedURL
	}
	if p.ErrorReason != nil {
		j.ErrorReason = *p.ErrorReason
	}
}

// StrPtr and friends let callers build a Patch inline without a local var.
func StrPtr(s string) *string { return &s }

// Package capture drives the external transcoder to buffer a bounded
// wall-clock duration of a resolved stream URL into a per-job temp file
// (C5), advancing the job through initializing -> resolving -> capturing ->
// captured | error.
package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/streamwatch/streamwatch/config"
	"github.com/streamwatch/streamwatch/errors"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/log"
	"github.com/streamwatch/streamwatch/platforms"
	"github.com/streamwatch/streamwatch/resolver"
	"github.com/streamwatch/streamwatch/subprocess"
)

// Worker runs one job's capture sub-stage end to end.
type Worker struct {
	broker   *jobs.Broker
	resolver *resolver.Resolver
	dataDir  string
}

func NewWorker(broker *jobs.Broker, resolver *resolver.Resolver, dataDir string) *Worker {
	return &Worker{broker: broker, resolver: resolver, dataDir: dataDir}
}

// Run drives job through resolving and capturing. maxDuration is replaced by
// config.DefaultMaxClipDuration if it is zero or negative or exceeds it.
func (w *Worker) Run(ctx context.Context, job jobs.Job, maxDuration time.Duration) error {
	if maxDuration <= 0 || maxDuration > config.DefaultMaxClipDuration {
		maxDuration = config.DefaultMaxClipDuration
	}

	if _, err := w.broker.Transition(job.ID, jobs.StateResolving, jobs.Patch{}); err != nil {
		return err
	}

	ref := platforms.Ref{Platform: platforms.Platform(job.Platform), PlatformID: job.StreamerRef}
	streamURL, err := w.resolver.Resolve(ctx, ref)
	if err != nil {
		w.fail(job.ID, err)
		return err
	}

	bufferPath := filepath.Join(w.dataDir, config.TempDirName, job.ID+".ts")
	if _, err := w.broker.Transition(job.ID, jobs.StateCapturing, jobs.Patch{
		StreamURL:  jobs.StrPtr(streamURL),
		BufferPath: jobs.StrPtr(bufferPath),
	}); err != nil {
		return err
	}

	if err := w.capture(ctx, job.ID, streamURL, bufferPath, maxDuration); err != nil {
		w.fail(job.ID, err)
		return err
	}

	if _, err := w.broker.Transition(job.ID, jobs.StateCaptured, jobs.Patch{}); err != nil {
		return err
	}
	return nil
}

func (w *Worker) fail(jobID string, cause error) {
	if _, err := w.broker.Transition(jobID, jobs.StateError, jobs.Patch{ErrorReason: jobs.StrPtr(cause.Error())}); err != nil {
		log.LogError(jobID, "failed to record capture error on job", err)
	}
}

// outTimeRE matches ffmpeg's `-progress pipe:1` out_time=HH:MM:SS.xx lines.
var outTimeRE = regexp.MustCompile(`^out_time=(\d{2}):(\d{2}):(\d{2})(?:\.(\d+))?$`)

// capture copy-only transcodes streamURL into bufferPath, stopping after
// maxDuration, grounded line-for-line on video.ClipSegment's process-building
// style (base args, timeout context, stdout/stderr handling).
func (w *Worker) capture(ctx context.Context, jobID, streamURL, bufferPath string, maxDuration time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(bufferPath), 0o755); err != nil {
		return errors.NewTranscodeError("failed to create buffer directory", "", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, maxDuration+30*time.Second)
	defer cancel()

	args := []string{
		"-y",
		"-i", streamURL,
		"-t", fmt.Sprintf("%.3f", maxDuration.Seconds()),
		"-c", "copy",
		"-progress", "pipe:1",
		bufferPath,
	}
	cmd := exec.CommandContext(timeoutCtx, "ffmpeg", args...)
	log.Log(jobID, "capturing", "compiled-command", fmt.Sprintf("ffmpeg %s", args))

	tail, err := subprocess.LogOutputsWithStdoutHandler(jobID, cmd, func(line string) {
		w.onProgressLine(jobID, line, maxDuration)
	})
	if err != nil {
		return errors.NewTranscodeError("failed to attach to ffmpeg output", "", err)
	}

	if err := cmd.Run(); err != nil {
		return errors.NewTranscodeError(fmt.Sprintf("capture failed for job %s", jobID), tail.String(), err)
	}
	return nil
}

func (w *Worker) onProgressLine(jobID, line string, target time.Duration) {
	m := outTimeRE.FindStringSubmatch(line)
	if m == nil {
		return
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	elapsed := time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute + time.Duration(s)*time.Second

	pct := int(elapsed.Seconds() / target.Seconds() * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if _, err := w.broker.UpdateProgress(jobID, pct); err != nil {
		log.LogError(jobID, "failed to update capture progress", err)
	}
}

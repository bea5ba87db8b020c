// Package clip implements the clip extractor (C6): cutting a sub-range of a
// captured buffer, re-encoding it for web delivery, and generating a
// mid-point thumbnail plus evenly-spaced preview frames over the full
// buffer. Grounded directly on the teacher's video/clip.go (ClipSegment,
// formatTime) and pipeline/thumbnails.go (GenerateThumbs, fps=1/N sampling).
package clip

import (
	"context"
	"fmt"
	"math"
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
	"github.com/streamwatch/streamwatch/subprocess"
)

const transcodeTimeout = 10 * time.Minute

// outTimeRE matches ffmpeg's `-progress pipe:1` out_time=HH:MM:SS.xx lines.
var outTimeRE = regexp.MustCompile(`^out_time=(\d{2}):(\d{2}):(\d{2})(?:\.(\d+))?$`)

func parseOutTime(line string) (float64, bool) {
	m := outTimeRE.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	d := time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute + time.Duration(s)*time.Second
	return d.Seconds(), true
}

// Extractor runs the extract_clip and generate_previews operations against
// a captured job.
type Extractor struct {
	broker  *jobs.Broker
	dataDir string
}

func NewExtractor(broker *jobs.Broker, dataDir string) *Extractor {
	return &Extractor{broker: broker, dataDir: dataDir}
}

// formatTime renders a seconds offset in ffmpeg's HH:MM:SS.mmm syntax,
// identical to the teacher's video.formatTime.
func formatTime(seconds float64) string {
	millis := int64(seconds * 1000)
	d := time.Duration(millis) * time.Millisecond
	t := time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(d)
	return t.Format("15:04:05.000")
}

// ValidateRange is a pure function implementing spec.md §4.6's range check
// (§8 property 6): start >= 0, duration > 0, start+duration <= maxDuration.
func ValidateRange(startS, durationS, maxDuration float64) error {
	if startS < 0 || durationS <= 0 || startS+durationS > maxDuration {
		return errors.ErrInvalidRange
	}
	return nil
}

// ExtractClip cuts [startS, startS+durationS) from job's buffer into a final
// mp4, re-encoding H.264 medium/CRF22 + AAC 128k with faststart, and
// transitions the job through processing -> completed. A failed thumbnail
// does not fail the clip.
func (e *Extractor) ExtractClip(ctx context.Context, job jobs.Job, startS, durationS, maxDuration float64) error {
	if err := ValidateRange(startS, durationS, maxDuration); err != nil {
		return err
	}

	if _, err := e.broker.Transition(job.ID, jobs.StateProcessing, jobs.Patch{}); err != nil {
		return err
	}

	clipPath := filepath.Join(e.dataDir, config.ClipsDirName, job.ID+".mp4")
	if err := os.MkdirAll(filepath.Dir(clipPath), 0o755); err != nil {
		e.fail(job.ID, err)
		return err
	}

	if err := e.transcode(ctx, job.ID, job.BufferPath, clipPath, startS, durationS); err != nil {
		e.fail(job.ID, err)
		return err
	}

	thumbPath := filepath.Join(e.dataDir, config.ThumbnailsDirName, job.ID+".jpg")
	if err := e.thumbnail(ctx, job.ID, job.BufferPath, thumbPath, startS+durationS/2); err != nil {
		log.LogError(job.ID, "thumbnail generation failed, continuing without one", err)
		thumbPath = ""
	}

	patch := jobs.Patch{ClipPath: jobs.StrPtr(clipPath)}
	if thumbPath != "" {
		patch.ThumbnailPath = jobs.StrPtr(thumbPath)
	}
	_, err := e.broker.Transition(job.ID, jobs.StateCompleted, patch)
	return err
}

func (e *Extractor) fail(jobID string, cause error) {
	if _, err := e.broker.Transition(jobID, jobs.StateError, jobs.Patch{ErrorReason: jobs.StrPtr(cause.Error())}); err != nil {
		log.LogError(jobID, "failed to record clip error on job", err)
	}
}

func (e *Extractor) transcode(ctx context.Context, jobID, inputPath, outputPath string, startS, durationS float64) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-ss", formatTime(startS),
		"-i", inputPath,
		"-t", fmt.Sprintf("%.3f", durationS),
		"-c:v", "libx264", "-preset", "medium", "-crf", "22",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		outputPath,
	}
	cmd := exec.CommandContext(timeoutCtx, "ffmpeg", args...)
	log.Log(jobID, "extracting clip", "compiled-command", fmt.Sprintf("ffmpeg %s", args))

	tail, err := subprocess.LogOutputsWithStdoutHandler(jobID, cmd, func(line string) {
		e.onProgressLine(jobID, line, durationS)
	})
	if err != nil {
		return errors.NewTranscodeError("failed to attach to ffmpeg output", "", err)
	}
	if err := cmd.Run(); err != nil {
		return errors.NewTranscodeError(fmt.Sprintf("clip extraction failed for job %s", jobID), tail.String(), err)
	}
	return nil
}

func (e *Extractor) onProgressLine(jobID, line string, target float64) {
	secs, ok := parseOutTime(line)
	if !ok {
		return
	}
	pct := int(secs / target * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if _, err := e.broker.UpdateProgress(jobID, pct); err != nil {
		log.LogError(jobID, "failed to update clip progress", err)
	}
}

// thumbnail extracts a single frame at offsetS as a best-effort side effect.
func (e *Extractor) thumbnail(ctx context.Context, jobID, inputPath, outputPath string, offsetS float64) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-ss", formatTime(offsetS),
		"-i", inputPath,
		"-frames:v", "1",
		outputPath,
	}
	cmd := exec.CommandContext(timeoutCtx, "ffmpeg", args...)
	tail, err := subprocess.LogOutputs(jobID, cmd)
	if err != nil {
		return err
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("thumbnail extraction failed [%s]: %w", tail.String(), err)
	}
	return nil
}

// GeneratePreviews samples the full buffer (not the sub-range) at
// 1/floor(maxDuration/numFrames) fps into temp/preview_<jobid>/, returning
// the ordered frame paths. Does not affect job state.
func (e *Extractor) GeneratePreviews(ctx context.Context, job jobs.Job, numFrames int, maxDuration float64) ([]string, error) {
	if numFrames <= 0 {
		numFrames = config.DefaultPreviewFrameCount
	}
	fps := 1.0 / math.Floor(maxDuration/float64(numFrames))
	if math.IsInf(fps, 0) || fps <= 0 {
		return nil, fmt.Errorf("invalid preview sampling rate for %d frames over %.0fs", numFrames, maxDuration)
	}

	previewDir := filepath.Join(e.dataDir, config.TempDirName, "preview_"+job.ID)
	if err := os.MkdirAll(previewDir, 0o755); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	pattern := filepath.Join(previewDir, "frame_%03d.jpg")
	args := []string{
		"-y",
		"-i", job.BufferPath,
		"-vf", fmt.Sprintf("fps=%f", fps),
		"-vframes", fmt.Sprintf("%d", numFrames),
		pattern,
	}
	cmd := exec.CommandContext(timeoutCtx, "ffmpeg", args...)
	tail, err := subprocess.LogOutputs(job.ID, cmd)
	if err != nil {
		return nil, err
	}
	if err := cmd.Run(); err != nil {
		return nil, errors.NewTranscodeError(fmt.Sprintf("preview generation failed for job %s", job.ID), tail.String(), err)
	}

	matches, err := filepath.Glob(filepath.Join(previewDir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/streamwatch/streamwatch/clip"
	"github.com/streamwatch/streamwatch/config"
	"github.com/streamwatch/streamwatch/errors"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/log"
	"github.com/streamwatch/streamwatch/platforms"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.LogNoRequestID("failed to encode JSON response", "error", err)
	}
}

// listStreamers is GET /api/streamers: the current catalog, partitioned by
// platform.
func (s *Server) listStreamers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	byPlatform := make(map[platforms.Platform][]platforms.Record)
	for _, rec := range s.aggregator.Latest() {
		byPlatform[rec.Platform] = append(byPlatform[rec.Platform], rec)
	}
	writeJSON(w, http.StatusOK, byPlatform)
}

// listLiveStreamers is GET /api/streamers/live: the live subset, already in
// viewer-count order courtesy of catalog.Sort's total ordering.
func (s *Server) listLiveStreamers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var live []platforms.Record
	for _, rec := range s.aggregator.Latest() {
		if _, ok := rec.Status.(platforms.LiveStatus); ok {
			live = append(live, rec)
		}
	}
	writeJSON(w, http.StatusOK, live)
}

// getPlatformStreamers is GET /api/streamers/{platform}.
func (s *Server) getPlatformStreamers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	platform := ps.ByName("platform")
	if !platforms.IsKnownPlatform(platform) {
		errors.WriteHTTPNotFound(w, "unknown platform "+platform, nil)
		return
	}
	var out []platforms.Record
	for _, rec := range s.aggregator.Latest() {
		if string(rec.Platform) == platform {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// refreshAll is POST /api/refresh: triggers an immediate full refresh and
// returns before it completes.
func (s *Server) refreshAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	go func() {
		if _, err := s.aggregator.Refresh(context.Background()); err != nil {
			log.LogNoRequestID("triggered refresh failed", "error", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

// refreshOnePlatform is POST /api/refresh/{platform}.
func (s *Server) refreshOnePlatform(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	platform := ps.ByName("platform")
	if !platforms.IsKnownPlatform(platform) {
		errors.WriteHTTPNotFound(w, "unknown platform "+platform, nil)
		return
	}
	go func() {
		if _, err := s.aggregator.RefreshPlatform(context.Background(), platforms.Platform(platform)); err != nil {
			log.LogNoRequestID("triggered scoped refresh failed", "platform", platform, "error", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

type captureRequest struct {
	Platform    string  `json:"platform"`
	StreamerID  string  `json:"streamerId"`
	MaxDuration float64 `json:"maxDuration,omitempty"`
}

// startCapture is POST /api/capture: creates a job and starts the capture
// worker in the background, returning the job id immediately.
func (s *Server) startCapture(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPBadRequest(w, "invalid request body", err)
		return
	}
	if !platforms.IsKnownPlatform(req.Platform) {
		errors.WriteHTTPBadRequest(w, "unknown platform "+req.Platform, nil)
		return
	}

	maxDuration := s.defaultMaxClipDuration
	if req.MaxDuration > 0 {
		maxDuration = time.Duration(req.MaxDuration * float64(time.Second))
	}

	created := s.broker.Create(req.Platform, req.StreamerID)
	job, _ := s.broker.Get(created.ID)
	s.rememberMaxDuration(job.ID, maxDuration.Seconds())
	s.metrics.JobsInFlight.Inc()

	go func() {
		defer s.metrics.JobsInFlight.Dec()
		if err := s.capture.Run(context.Background(), job, maxDuration); err != nil {
			log.LogError(job.ID, "capture worker failed", err)
			return
		}
		s.bus.Publish(eventMessage(eventKindCaptureComplete, job.ID))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID})
}

// listJobs is GET /api/jobs.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.broker.List())
}

// getJob is GET /api/jobs/{id}.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	job, ok := s.broker.Get(ps.ByName("id"))
	if !ok {
		errors.WriteHTTPNotFound(w, "job not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type clipRequest struct {
	ClipID    string  `json:"clipId"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	Title     string  `json:"title,omitempty"`
}

// createClip is POST /api/clip: requires the job to be in `captured`.
func (s *Server) createClip(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req clipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPBadRequest(w, "invalid request body", err)
		return
	}
	job, ok := s.broker.Get(req.ClipID)
	if !ok {
		errors.WriteHTTPNotFound(w, "job not found", nil)
		return
	}
	if job.State != jobs.StateCaptured {
		errors.WriteHTTPConflict(w, "job is not in captured state", nil)
		return
	}
	maxDuration, ok := s.maxDurationFor(job.ID)
	if !ok {
		maxDuration = s.defaultMaxClipDuration.Seconds()
	}
	if err := clip.ValidateRange(req.StartTime, req.Duration, maxDuration); err != nil {
		errors.WriteHTTPBadRequest(w, "invalid clip range", err)
		return
	}
	go func() {
		if err := s.clip.ExtractClip(context.Background(), job, req.StartTime, req.Duration, maxDuration); err != nil {
			log.LogError(job.ID, "clip extraction failed", err)
			return
		}
		s.bus.Publish(eventMessage(eventKindClipComplete, job.ID))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID})
}

type previewRequest struct {
	ClipID    string `json:"clipId"`
	NumFrames int    `json:"numFrames,omitempty"`
}

// generatePreview is POST /api/preview: requires `captured`. Unlike capture
// and clip, preview generation does not move the job through the state
// graph (clip.Extractor.GeneratePreviews is a pure side computation over an
// already-captured buffer), so this responds synchronously with the frame
// paths rather than a job id.
func (s *Server) generatePreview(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPBadRequest(w, "invalid request body", err)
		return
	}
	job, ok := s.broker.Get(req.ClipID)
	if !ok {
		errors.WriteHTTPNotFound(w, "job not found", nil)
		return
	}
	if job.State != jobs.StateCaptured {
		errors.WriteHTTPConflict(w, "job is not in captured state", nil)
		return
	}
	maxDuration, ok := s.maxDurationFor(job.ID)
	if !ok {
		maxDuration = s.defaultMaxClipDuration.Seconds()
	}

	frames, err := s.clip.GeneratePreviews(r.Context(), job, req.NumFrames, maxDuration)
	if err != nil {
		errors.WriteHTTPInternalServerError(w, "preview generation failed", err)
		return
	}
	s.bus.Publish(eventMessage(eventKindPreviewComplete, job.ID))
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": job.ID, "frames": frames})
}

type uploadRequest struct {
	ClipID string `json:"clipId"`
}

// uploadClip is POST /api/upload: requires `completed`.
func (s *Server) uploadClip(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPBadRequest(w, "invalid request body", err)
		return
	}
	job, ok := s.broker.Get(req.ClipID)
	if !ok {
		errors.WriteHTTPNotFound(w, "job not found", nil)
		return
	}
	if job.State != jobs.StateCompleted {
		errors.WriteHTTPConflict(w, "job is not in completed state", nil)
		return
	}

	go func() {
		if err := s.uploader.Upload(context.Background(), job); err != nil {
			log.LogError(job.ID, "upload failed", err)
			return
		}
		s.bus.Publish(eventMessage(eventKindUploadComplete, job.ID))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID})
}

type clipFileInfo struct {
	ID           string `json:"id"`
	SizeBytes    int64  `json:"size_bytes"`
	FileURL      string `json:"file"`
	ThumbnailURL string `json:"thumbnail,omitempty"`
}

// listClips is GET /api/clips: finished clip files with sizes and
// thumbnails, read straight off disk rather than the job registry, so a
// clip survives being listed even after its job entry ages out of the
// daily sweep.
func (s *Server) listClips(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	clipsDir := filepath.Join(s.dataDir, config.ClipsDirName)
	entries, err := os.ReadDir(clipsDir)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, []clipFileInfo{})
			return
		}
		errors.WriteHTTPInternalServerError(w, "failed to list clips", err)
		return
	}

	out := make([]clipFileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		item := clipFileInfo{ID: id, SizeBytes: info.Size(), FileURL: "/api/clips/" + id + "/file"}
		if _, err := os.Stat(filepath.Join(s.dataDir, config.ThumbnailsDirName, id+".jpg")); err == nil {
			item.ThumbnailURL = "/api/clips/" + id + "/thumbnail"
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

// serveClipFile is GET /api/clips/{id}/file: streams the clip's mp4.
func (s *Server) serveClipFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	path := filepath.Join(s.dataDir, config.ClipsDirName, ps.ByName("id")+".mp4")
	if _, err := os.Stat(path); err != nil {
		errors.WriteHTTPNotFound(w, "clip not found", nil)
		return
	}
	http.ServeFile(w, r, path)
}

// serveClipThumbnail is GET /api/clips/{id}/thumbnail.
func (s *Server) serveClipThumbnail(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	path := filepath.Join(s.dataDir, config.ThumbnailsDirName, ps.ByName("id")+".jpg")
	if _, err := os.Stat(path); err != nil {
		errors.WriteHTTPNotFound(w, "thumbnail not found", nil)
		return
	}
	http.ServeFile(w, r, path)
}

// deleteClip is DELETE /api/clips/{id}: removes the clip file, its
// thumbnail, and the job registry entry. The broker refuses to delete a
// non-terminal job (e.g. one still `uploading`); that answers 409 after the
// clip and thumbnail files are already gone.
func (s *Server) deleteClip(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	clipPath := filepath.Join(s.dataDir, config.ClipsDirName, id+".mp4")
	if err := os.Remove(clipPath); err != nil && !os.IsNotExist(err) {
		errors.WriteHTTPInternalServerError(w, "failed to remove clip file", err)
		return
	}
	_ = os.Remove(filepath.Join(s.dataDir, config.ThumbnailsDirName, id+".jpg"))

	if err := s.broker.Delete(id); err != nil && !errors.IsNotFound(err) {
		errors.WriteHTTPConflict(w, "failed to remove job registry entry", err)
		return
	}
	s.forgetMaxDuration(id)

	w.WriteHeader(http.StatusNoContent)
}

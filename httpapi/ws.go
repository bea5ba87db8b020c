package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/streamwatch/streamwatch/clip"
	"github.com/streamwatch/streamwatch/events"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/log"
	"github.com/streamwatch/streamwatch/platforms"
)

// Event kinds mirrored here as strings for the outgoing wire message, since
// events.Kind is an internal type but the push channel's JSON envelope
// needs a stable "kind" field regardless of which Go type produced it.
const (
	eventKindCaptureComplete = "capture_complete"
	eventKindClipComplete    = "clip_complete"
	eventKindPreviewComplete = "preview_complete"
	eventKindUploadComplete  = "upload_complete"
)

func eventMessage(kind string, jobID string) events.Message {
	var k events.Kind
	switch kind {
	case eventKindCaptureComplete:
		k = events.KindCaptureComplete
	case eventKindClipComplete:
		k = events.KindClipComplete
	case eventKindPreviewComplete:
		k = events.KindPreviewComplete
	case eventKindUploadComplete:
		k = events.KindUploadComplete
	}
	return events.Message{Kind: k, Payload: map[string]string{"job_id": jobID}}
}

// upgrader is permissive on Origin, matching the teacher's CORS posture
// (middleware.AllowCORS allows any origin) rather than the stricter
// same-origin default gorilla/websocket otherwise applies.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wireMessage is the envelope this push channel speaks on the wire, both
// directions: Kind discriminates, Payload carries the kind-specific body.
type wireMessage struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload,omitempty"`
}

// clientCommand is an inbound message. Only one of its payload fields is
// populated depending on Kind, matching the HTTP request bodies it mirrors.
type clientCommand struct {
	Kind string `json:"kind"`

	Capture captureRequest `json:"capture,omitempty"`
	Clip    clipRequest    `json:"clip,omitempty"`
	Preview previewRequest `json:"preview,omitempty"`
	Upload  uploadRequest  `json:"upload,omitempty"`
	Refresh struct {
		Platform string `json:"platform,omitempty"`
	} `json:"refresh,omitempty"`
	JobID string `json:"jobId,omitempty"`
}

// serveWS upgrades to a duplex event stream (spec.md §6): one goroutine
// forwards every bus message to the client, the other reads client
// commands and dispatches them through the same logic the HTTP handlers
// use, so the two surfaces stay behaviorally identical.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.LogNoRequestID("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	s.metrics.EventSubscribers.Inc()
	defer s.metrics.EventSubscribers.Dec()

	// A new subscriber gets the current catalog once, then only future events.
	if err := conn.WriteJSON(wireMessage{Kind: string(events.KindCatalogSnapshot), Payload: s.aggregator.Latest()}); err != nil {
		return
	}

	done := make(chan struct{})
	go s.wsWriteLoop(conn, sub, done)
	s.wsReadLoop(conn, done)
}

func (s *Server) wsWriteLoop(conn *websocket.Conn, sub *events.Subscription, done chan struct{}) {
	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wireMessage{Kind: string(msg.Kind), Payload: msg.Payload}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) wsReadLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.dispatchCommand(conn, cmd)
	}
}

// dispatchCommand handles one client-sent command with the same semantics
// as its HTTP counterpart (spec.md §6: "equivalent in semantics").
func (s *Server) dispatchCommand(conn *websocket.Conn, cmd clientCommand) {
	switch cmd.Kind {
	case "start_capture":
		s.wsStartCapture(conn, cmd.Capture)
	case "create_clip":
		s.wsCreateClip(conn, cmd.Clip)
	case "generate_preview":
		s.wsGeneratePreview(conn, cmd.Preview)
	case "upload_clip":
		s.wsUploadClip(conn, cmd.Upload)
	case "refresh_streamers":
		s.wsRefresh(cmd.Refresh.Platform)
	case "get_job_status":
		s.wsJobStatus(conn, cmd.JobID)
	default:
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "unknown command kind " + cmd.Kind})
	}
}

func (s *Server) wsStartCapture(conn *websocket.Conn, req captureRequest) {
	if !platforms.IsKnownPlatform(req.Platform) {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "unknown platform " + req.Platform})
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

	_ = conn.WriteJSON(wireMessage{Kind: "job_created", Payload: map[string]string{"id": job.ID}})
}

func (s *Server) wsCreateClip(conn *websocket.Conn, req clipRequest) {
	job, ok := s.broker.Get(req.ClipID)
	if !ok {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "job not found"})
		return
	}
	if job.State != jobs.StateCaptured {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "job is not in captured state"})
		return
	}
	maxDuration, ok := s.maxDurationFor(job.ID)
	if !ok {
		maxDuration = s.defaultMaxClipDuration.Seconds()
	}
	if err := clip.ValidateRange(req.StartTime, req.Duration, maxDuration); err != nil {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: err.Error()})
		return
	}

	go func() {
		if err := s.clip.ExtractClip(context.Background(), job, req.StartTime, req.Duration, maxDuration); err != nil {
			log.LogError(job.ID, "clip extraction failed", err)
			return
		}
		s.bus.Publish(eventMessage(eventKindClipComplete, job.ID))
	}()

	_ = conn.WriteJSON(wireMessage{Kind: "job_created", Payload: map[string]string{"id": job.ID}})
}

func (s *Server) wsGeneratePreview(conn *websocket.Conn, req previewRequest) {
	job, ok := s.broker.Get(req.ClipID)
	if !ok {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "job not found"})
		return
	}
	if job.State != jobs.StateCaptured {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "job is not in captured state"})
		return
	}
	maxDuration, ok := s.maxDurationFor(job.ID)
	if !ok {
		maxDuration = s.defaultMaxClipDuration.Seconds()
	}

	frames, err := s.clip.GeneratePreviews(context.Background(), job, req.NumFrames, maxDuration)
	if err != nil {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: err.Error()})
		return
	}
	s.bus.Publish(eventMessage(eventKindPreviewComplete, job.ID))
	_ = conn.WriteJSON(wireMessage{Kind: "preview_complete", Payload: map[string]interface{}{"id": job.ID, "frames": frames}})
}

func (s *Server) wsUploadClip(conn *websocket.Conn, req uploadRequest) {
	job, ok := s.broker.Get(req.ClipID)
	if !ok {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "job not found"})
		return
	}
	if job.State != jobs.StateCompleted {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "job is not in completed state"})
		return
	}

	go func() {
		if err := s.uploader.Upload(context.Background(), job); err != nil {
			log.LogError(job.ID, "upload failed", err)
			return
		}
		s.bus.Publish(eventMessage(eventKindUploadComplete, job.ID))
	}()

	_ = conn.WriteJSON(wireMessage{Kind: "job_created", Payload: map[string]string{"id": job.ID}})
}

func (s *Server) wsRefresh(platform string) {
	if platform == "" {
		go func() {
			if _, err := s.aggregator.Refresh(context.Background()); err != nil {
				log.LogNoRequestID("triggered refresh failed", "error", err)
			}
		}()
		return
	}
	if !platforms.IsKnownPlatform(platform) {
		return
	}
	go func() {
		if _, err := s.aggregator.RefreshPlatform(context.Background(), platforms.Platform(platform)); err != nil {
			log.LogNoRequestID("triggered scoped refresh failed", "platform", platform, "error", err)
		}
	}()
}

func (s *Server) wsJobStatus(conn *websocket.Conn, jobID string) {
	job, ok := s.broker.Get(jobID)
	if !ok {
		_ = conn.WriteJSON(wireMessage{Kind: "error", Payload: "job not found"})
		return
	}
	_ = conn.WriteJSON(wireMessage{Kind: "job_updated", Payload: job})
}

package httpapi

import (
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/streamwatch/streamwatch/capture"
	"github.com/streamwatch/streamwatch/catalog"
	"github.com/streamwatch/streamwatch/clip"
	"github.com/streamwatch/streamwatch/events"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/metrics"
	"github.com/streamwatch/streamwatch/uploader"
)

// Server wires the catalog aggregator, job broker, and clipping pipeline
// stages behind the §6 HTTP surface. Grounded on the teacher's
// api.NewCatalystAPIRouter handler-collection pattern (one struct of
// dependencies, methods returning httprouter.Handle).
type Server struct {
	aggregator *catalog.Aggregator
	broker     *jobs.Broker
	capture    *capture.Worker
	clip       *clip.Extractor
	uploader   *uploader.Uploader
	bus        *events.Bus
	metrics    *metrics.Metrics
	dataDir    string
	apiKey     string

	defaultMaxClipDuration time.Duration

	// maxDurations tracks the capture-time maxDuration per job id, keyed by
	// job id, so a later /api/clip or /api/preview call can validate a
	// range against the same bound the capture stage used. Not part of
	// jobs.Job itself: the job broker models the pipeline's state graph,
	// not request-scoped parameters a handler layer needs to recall.
	durMu        sync.Mutex
	maxDurations map[string]float64
}

func NewServer(aggregator *catalog.Aggregator, broker *jobs.Broker, cap *capture.Worker, clipExtractor *clip.Extractor, up *uploader.Uploader, bus *events.Bus, m *metrics.Metrics, dataDir, apiKey string, defaultMaxClipDuration time.Duration) *Server {
	return &Server{
		aggregator:             aggregator,
		broker:                 broker,
		capture:                cap,
		clip:                   clipExtractor,
		uploader:               up,
		bus:                    bus,
		metrics:                m,
		dataDir:                dataDir,
		apiKey:                 apiKey,
		defaultMaxClipDuration: defaultMaxClipDuration,
		maxDurations:           make(map[string]float64),
	}
}

// NewRouter builds the full §6 HTTP surface, every /api/* path gated by the
// static API key.
func NewRouter(s *Server) *httprouter.Router {
	router := httprouter.New()
	auth := func(h httprouter.Handle) httprouter.Handle { return requireAPIKey(s.apiKey, h) }

	router.GET("/api/streamers", auth(s.listStreamers))
	router.GET("/api/streamers/live", auth(s.listLiveStreamers))
	router.GET("/api/streamers/:platform", auth(s.getPlatformStreamers))

	router.POST("/api/refresh", auth(s.refreshAll))
	router.POST("/api/refresh/:platform", auth(s.refreshOnePlatform))

	router.POST("/api/capture", auth(s.startCapture))

	router.GET("/api/jobs", auth(s.listJobs))
	router.GET("/api/jobs/:id", auth(s.getJob))

	router.POST("/api/clip", auth(s.createClip))
	router.POST("/api/preview", auth(s.generatePreview))
	router.POST("/api/upload", auth(s.uploadClip))

	router.GET("/api/clips", auth(s.listClips))
	router.GET("/api/clips/:id/file", auth(s.serveClipFile))
	router.GET("/api/clips/:id/thumbnail", auth(s.serveClipThumbnail))
	router.DELETE("/api/clips/:id", auth(s.deleteClip))

	router.GET("/api/ws", auth(s.serveWS))

	return router
}

func (s *Server) rememberMaxDuration(jobID string, d float64) {
	s.durMu.Lock()
	s.maxDurations[jobID] = d
	s.durMu.Unlock()
}

func (s *Server) maxDurationFor(jobID string) (float64, bool) {
	s.durMu.Lock()
	defer s.durMu.Unlock()
	d, ok := s.maxDurations[jobID]
	return d, ok
}

func (s *Server) forgetMaxDuration(jobID string) {
	s.durMu.Lock()
	delete(s.maxDurations, jobID)
	s.durMu.Unlock()
}

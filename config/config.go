// Package config holds streamwatch's process-wide defaults and the parsed
// command-line/environment configuration.
package config

import "time"

// Version is set at build time via -ldflags, matching the teacher's pattern.
var Version string

// Directory layout (spec.md §6): buffers and preview frames live under
// DataDir/temp, finished clips under DataDir/clips, thumbnails under
// DataDir/thumbnails, the catalog snapshot at a fixed path under DataDir.
const (
	TempDirName       = "temp"
	ClipsDirName      = "clips"
	ThumbnailsDirName = "thumbnails"
	CatalogFileName   = "catalog.json"
)

// DefaultRefreshInterval is the catalog aggregator's polling cadence.
const DefaultRefreshInterval = time.Minute

// DefaultMaxClipDuration is the hard cap on a segment capture's wall-clock
// duration (spec.md §4.5 "default 240s, capped by config").
const DefaultMaxClipDuration = 240 * time.Second

// DefaultPreviewFrameCount is generate_previews' default sample count when
// the client omits numFrames.
const DefaultPreviewFrameCount = 10

const (
	DefaultHTTPRequestTimeout  = 10 * time.Second
	DefaultOAuthRefreshMargin  = 60 * time.Second
	DefaultPageNavTimeout      = 60 * time.Second
	DefaultSelectorWaitTimeout = 3 * time.Second

	DefaultStallThreshold   = 30 * time.Minute
	DefaultStallSweepPeriod = 5 * time.Minute
	DefaultDiskSweepPeriod  = 6 * time.Hour
	DefaultGCRetention      = 24 * time.Hour

	DefaultDiskPressureThresholdPct = 90
	DefaultDiskPressureEvictPct     = 10
)

// DefaultUploadEndpoint is the anonymous file host clips are POSTed to,
// overridable via the -upload-endpoint flag / STREAMWATCH_UPLOAD_ENDPOINT env var.
const DefaultUploadEndpoint = "https://file.io"

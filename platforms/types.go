// Package platforms defines the normalized streamer record shared by every
// platform adapter, plus the Adapter interface C2 fans out over.
package platforms

import (
	"context"
	"time"
)

// Platform identifies one of the seven supported services.
type Platform string

const (
	Kick        Platform = "kick"
	Trovo       Platform = "trovo"
	Chaturbate  Platform = "chaturbate"
	DLive       Platform = "dlive"
	Twitch      Platform = "twitch"
	YouTube     Platform = "youtube"
	Rumble      Platform = "rumble"
)

// Ref is a roster entry: a platform plus whatever natural key that platform
// uses to identify a streamer (numeric id, login, channel slug).
type Ref struct {
	Platform   Platform
	PlatformID string
}

// Status is the tagged union of a record's live/offline/not-found/error
// state. Concrete types below implement it as a marker method, mirroring the
// teacher's struct-per-concept style (video.InputTrack/OutputVideo) rather
// than a stringly-typed discriminator field.
type Status interface {
	isStatus()
	Kind() string
}

type LiveStatus struct {
	Title       string
	ViewerCount uint32
	StartedAt   time.Time
}

func (LiveStatus) isStatus()     {}
func (LiveStatus) Kind() string  { return "live" }

type OfflineStatus struct {
	// LastBroadcastAt is the zero time iff no historical broadcast could be
	// determined for this streamer.
	LastBroadcastAt time.Time
}

func (OfflineStatus) isStatus()    {}
func (OfflineStatus) Kind() string { return "offline" }

// NotFoundStatus means the scrape target page is absent (404, or an
// explicit "channel not found" signal on API platforms).
type NotFoundStatus struct{}

func (NotFoundStatus) isStatus()    {}
func (NotFoundStatus) Kind() string { return "not_found" }

// ErrorStatus means the adapter could not determine live/offline state this
// cycle; Reason is a human-readable explanation, never a raw Go error.
type ErrorStatus struct {
	Reason string
}

func (ErrorStatus) isStatus()    {}
func (ErrorStatus) Kind() string { return "error" }

// Record is one streamer's normalized state as of one poll cycle. Records
// are never mutated in place: each poll produces a fresh Record that
// supplants the prior one in the next published Snapshot.
type Record struct {
	Platform    Platform  `json:"platform"`
	PlatformID  string    `json:"platform_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	ChannelURL  string    `json:"channel_url"`
	Status      Status    `json:"status"`
	LastChecked time.Time `json:"last_checked"`

	// ErrorDetail carries a partial-failure annotation even when Status is
	// not itself ErrorStatus (e.g. a live record whose secondary
	// last-broadcast call failed is still usable with this set).
	ErrorDetail string `json:"error_detail,omitempty"`

	// StreamURL is the last known media-playlist URL for a live record, when
	// the adapter was able to observe one directly. The resolver consults
	// this before falling back to a browser probe.
	StreamURL string `json:"stream_url,omitempty"`
}

func (r Record) Ref() Ref {
	return Ref{Platform: r.Platform, PlatformID: r.PlatformID}
}

// Adapter fetches one streamer's current state from one platform. Adapters
// must never let a network or parse error escape Fetch: all failures are
// absorbed into Record.Status = ErrorStatus{...} or Record.ErrorDetail.
type Adapter interface {
	Platform() Platform
	Fetch(ctx context.Context, ref Ref) Record
}

package platforms

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireRecord is Record's JSON wire shape: Status is additive-fields-only
// per spec.md §6 ("Schema is stable; additive fields only"), flattened
// under a "status" object discriminated by "kind".
type wireRecord struct {
	Platform    Platform  `json:"platform"`
	PlatformID  string    `json:"platform_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	ChannelURL  string    `json:"channel_url"`
	LastChecked time.Time `json:"last_checked"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	StreamURL   string    `json:"stream_url,omitempty"`

	Status wireStatus `json:"status"`
}

type wireStatus struct {
	Kind            string    `json:"kind"`
	Title           string    `json:"title,omitempty"`
	ViewerCount     uint32    `json:"viewer_count,omitempty"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	LastBroadcastAt time.Time `json:"last_broadcast_at,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Platform:    r.Platform,
		PlatformID:  r.PlatformID,
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
		ChannelURL:  r.ChannelURL,
		LastChecked: r.LastChecked,
		ErrorDetail: r.ErrorDetail,
		StreamURL:   r.StreamURL,
	}
	switch s := r.Status.(type) {
	case LiveStatus:
		w.Status = wireStatus{Kind: "live", Title: s.Title, ViewerCount: s.ViewerCount, StartedAt: s.StartedAt}
	case OfflineStatus:
		w.Status = wireStatus{Kind: "offline", LastBroadcastAt: s.LastBroadcastAt}
	case NotFoundStatus:
		w.Status = wireStatus{Kind: "not_found"}
	case ErrorStatus:
		w.Status = wireStatus{Kind: "error", Reason: s.Reason}
	default:
		w.Status = wireStatus{Kind: "error", Reason: "unknown status"}
	}
	return json.Marshal(w)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Platform = w.Platform
	r.PlatformID = w.PlatformID
	r.DisplayName = w.DisplayName
	r.AvatarURL = w.AvatarURL
	r.ChannelURL = w.ChannelURL
	r.LastChecked = w.LastChecked
	r.ErrorDetail = w.ErrorDetail
	r.StreamURL = w.StreamURL

	switch w.Status.Kind {
	case "live":
		r.Status = LiveStatus{Title: w.Status.Title, ViewerCount: w.Status.ViewerCount, StartedAt: w.Status.StartedAt}
	case "offline":
		r.Status = OfflineStatus{LastBroadcastAt: w.Status.LastBroadcastAt}
	case "not_found":
		r.Status = NotFoundStatus{}
	case "error":
		r.Status = ErrorStatus{Reason: w.Status.Reason}
	default:
		return fmt.Errorf("platforms: unknown status kind %q", w.Status.Kind)
	}
	return nil
}

// Package kick implements the API-JSON adapter for kick.com.
package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/streamwatch/streamwatch/platforms"
)

const (
	baseURL       = "https://kick.com/api/v2"
	requestBudget = 10 * time.Second
)

type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: platforms.NewHTTPClient(requestBudget)}
}

func (a *Adapter) Platform() platforms.Platform { return platforms.Kick }

type channelResponse struct {
	Slug        string `json:"slug"`
	UserProfile struct {
		Username  string `json:"username"`
		AvatarURL string `json:"profile_pic"`
	} `json:"user"`
	Livestream *struct {
		SessionTitle string `json:"session_title"`
		Viewers      int    `json:"viewer_count"`
		CreatedAt    string `json:"created_at"`
	} `json:"livestream"`
	PreviousLivestreams []struct {
		CreatedAt string `json:"created_at"`
	} `json:"previous_livestreams"`
}

// Fetch implements platforms.Adapter. (a) liveness comes directly from
// whether "livestream" is non-null, (b) viewer count and title are read off
// that same object when present, (c) a channel with no active stream needs
// no secondary call here since Kick's channel endpoint already embeds
// previous broadcasts, (d) any transport/decode error collapses into
// ErrorStatus/ErrorDetail per §4.1, never escaping this method.
func (a *Adapter) Fetch(ctx context.Context, ref platforms.Ref) platforms.Record {
	rec := platforms.Record{
		Platform:    platforms.Kick,
		PlatformID:  ref.PlatformID,
		ChannelURL:  fmt.Sprintf("https://kick.com/%s", ref.PlatformID),
		LastChecked: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, requestBudget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/channels/%s", baseURL, ref.PlatformID), nil)
	if err != nil {
		rec.Status = platforms.ErrorStatus{Reason: err.Error()}
		return rec
	}
	req.Header.Set("User-Agent", platforms.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		rec.Status = platforms.ErrorStatus{Reason: "request failed: " + err.Error()}
		return rec
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		rec.Status = platforms.NotFoundStatus{}
		return rec
	}
	if resp.StatusCode != http.StatusOK {
		rec.Status = platforms.ErrorStatus{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
		return rec
	}

	var body channelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		rec.Status = platforms.ErrorStatus{Reason: "decode failed: " + err.Error()}
		return rec
	}

	rec.DisplayName = body.UserProfile.Username
	rec.AvatarURL = body.UserProfile.AvatarURL

	if body.Livestream != nil {
		startedAt, _ := time.Parse(time.RFC3339, body.Livestream.CreatedAt)
		rec.Status = platforms.LiveStatus{
			Title:       body.Livestream.SessionTitle,
			ViewerCount: clampViewers(body.Livestream.Viewers),
			StartedAt:   startedAt,
		}
		return rec
	}

	var lastBroadcast time.Time
	if len(body.PreviousLivestreams) > 0 {
		if t, err := time.Parse(time.RFC3339, body.PreviousLivestreams[0].CreatedAt); err == nil {
			lastBroadcast = t
		}
	}
	rec.Status = platforms.OfflineStatus{LastBroadcastAt: lastBroadcast}
	return rec
}

func clampViewers(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// Package trovo implements the API-JSON adapter for trovo.live. Unlike kick,
// Trovo's live-status endpoint carries no last-broadcast field, so an
// offline result triggers a secondary call — the (c) case from §4.1.
package trovo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/streamwatch/streamwatch/platforms"
)

const (
	liveURL       = "https://open-api.trovo.live/openplatform/channels/id"
	channelURL    = "https://open-api.trovo.live/openplatform/channel-info"
	requestBudget = 10 * time.Second
)

type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: platforms.NewHTTPClient(requestBudget)}
}

func (a *Adapter) Platform() platforms.Platform { return platforms.Trovo }

type liveResponse struct {
	StreamerInfo []struct {
		UID         int64  `json:"uid"`
		Username    string `json:"username"`
		IsLive      int    `json:"isLive"`
		StreamTitle string `json:"streamTitle"`
		CurrentView int    `json:"currentViewers"`
	} `json:"streamerInfo"`
}

type channelResponse struct {
	ChannelID       int64  `json:"channel_id"`
	NickName        string `json:"nickname"`
	ProfilePic      string `json:"profilePic"`
	LastLiveTime    int64  `json:"last_live_open_time"`
}

func (a *Adapter) Fetch(ctx context.Context, ref platforms.Ref) platforms.Record {
	rec := platforms.Record{
		Platform:    platforms.Trovo,
		PlatformID:  ref.PlatformID,
		ChannelURL:  fmt.Sprintf("https://trovo.live/s/%s", ref.PlatformID),
		LastChecked: time.Now(),
	}

	live, err := a.fetchLive(ctx, ref.PlatformID)
	if err != nil {
		rec.Status = platforms.ErrorStatus{Reason: err.Error()}
		return rec
	}
	if live == nil {
		rec.Status = platforms.NotFoundStatus{}
		return rec
	}

	rec.DisplayName = live.Username
	if live.IsLive == 1 {
		rec.Status = platforms.LiveStatus{
			Title:       live.StreamTitle,
			ViewerCount: clampViewers(live.CurrentView),
			StartedAt:   time.Now(), // Trovo's channel endpoint doesn't expose stream start time
		}
		return rec
	}

	// offline: secondary call for last-broadcast time, per §4.1(c). A
	// failure here must not fail the whole record — it just leaves
	// LastBroadcastAt absent and records the partial failure.
	channel, err := a.fetchChannel(ctx, ref.PlatformID)
	if err != nil {
		rec.Status = platforms.OfflineStatus{}
		rec.ErrorDetail = "last-broadcast lookup failed: " + err.Error()
		return rec
	}
	var lastBroadcast time.Time
	if channel != nil && channel.LastLiveTime > 0 {
		lastBroadcast = time.Unix(channel.LastLiveTime, 0)
	}
	if channel != nil && channel.ProfilePic != "" {
		rec.AvatarURL = channel.ProfilePic
	}
	rec.Status = platforms.OfflineStatus{LastBroadcastAt: lastBroadcast}
	return rec
}

func (a *Adapter) fetchLive(ctx context.Context, username string) (*streamerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, requestBudget)
	defer cancel()

	payload, _ := json.Marshal(map[string]any{"username": username})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, liveURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", platforms.DefaultUserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body liveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	if len(body.StreamerInfo) == 0 {
		return nil, nil
	}
	return &streamerInfo{
		Username:    body.StreamerInfo[0].Username,
		IsLive:      body.StreamerInfo[0].IsLive,
		StreamTitle: body.StreamerInfo[0].StreamTitle,
		CurrentView: body.StreamerInfo[0].CurrentView,
	}, nil
}

type streamerInfo struct {
	Username    string
	IsLive      int
	StreamTitle string
	CurrentView int
}

func (a *Adapter) fetchChannel(ctx context.Context, username string) (*channelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestBudget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?username=%s", channelURL, username), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", platforms.DefaultUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body channelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return &body, nil
}

func clampViewers(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

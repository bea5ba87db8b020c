// Package chaturbate implements the API-JSON adapter for chaturbate.com.
package chaturbate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/streamwatch/streamwatch/platforms"
)

const (
	roomStatusURL = "https://chaturbate.com/api/chatvideocontext/%s/"
	requestBudget = 10 * time.Second
)

type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: platforms.NewHTTPClient(requestBudget)}
}

func (a *Adapter) Platform() platforms.Platform { return platforms.Chaturbate }

type roomResponse struct {
	RoomStatus  string `json:"room_status"`
	NumUsers    int    `json:"num_users"`
	Description string `json:"room_subject"`
}

// Fetch: Chaturbate's room-status endpoint folds live/offline/not-found into
// a single call, so there is no secondary request for (c) here; the
// platform never exposes a last-broadcast timestamp, so offline records
// always have an absent LastBroadcastAt.
func (a *Adapter) Fetch(ctx context.Context, ref platforms.Ref) platforms.Record {
	rec := platforms.Record{
		Platform:    platforms.Chaturbate,
		PlatformID:  ref.PlatformID,
		DisplayName: ref.PlatformID,
		ChannelURL:  fmt.Sprintf("https://chaturbate.com/%s/", ref.PlatformID),
		LastChecked: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, requestBudget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(roomStatusURL, ref.PlatformID), nil)
	if err != nil {
		rec.Status = platforms.ErrorStatus{Reason: err.Error()}
		return rec
	}
	req.Header.Set("User-Agent", platforms.DefaultUserAgent)

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

	var body roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		rec.Status = platforms.ErrorStatus{Reason: "decode failed: " + err.Error()}
		return rec
	}

	if body.RoomStatus == "public" {
		rec.Status = platforms.LiveStatus{
			Title:       body.Description,
			ViewerCount: clampViewers(body.NumUsers),
			StartedAt:   time.Now(),
		}
		return rec
	}
	rec.Status = platforms.OfflineStatus{}
	return rec
}

func clampViewers(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// Package dlive implements the API-JSON adapter for dlive.tv, which fronts a
// single GraphQL endpoint rather than REST resources.
package dlive

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
	graphqlURL    = "https://graphigo.prd.dlive.tv/"
	requestBudget = 10 * time.Second
)

type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: platforms.NewHTTPClient(requestBudget)}
}

func (a *Adapter) Platform() platforms.Platform { return platforms.DLive }

const userQuery = `query ($name: String!) {
  userByDisplayName(displayname: $name) {
    displayname
    avatar { url }
    livestream { title watchingCount createdAt }
    pastBroadcasts(first: 1) { list { createdAt } }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		User *struct {
			DisplayName string `json:"displayname"`
			Avatar      struct {
				URL string `json:"url"`
			} `json:"avatar"`
			Livestream *struct {
				Title          string `json:"title"`
				WatchingCount  int    `json:"watchingCount"`
				CreatedAt      string `json:"createdAt"`
			} `json:"livestream"`
			PastBroadcasts struct {
				List []struct {
					CreatedAt string `json:"createdAt"`
				} `json:"list"`
			} `json:"pastBroadcasts"`
		} `json:"userByDisplayName"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *Adapter) Fetch(ctx context.Context, ref platforms.Ref) platforms.Record {
	rec := platforms.Record{
		Platform:    platforms.DLive,
		PlatformID:  ref.PlatformID,
		ChannelURL:  fmt.Sprintf("https://dlive.tv/%s", ref.PlatformID),
		LastChecked: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, requestBudget)
	defer cancel()

	payload, _ := json.Marshal(graphqlRequest{
		Query:     userQuery,
		Variables: map[string]any{"name": ref.PlatformID},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphqlURL, bytes.NewReader(payload))
	if err != nil {
		rec.Status = platforms.ErrorStatus{Reason: err.Error()}
		return rec
	}
	req.Header.Set("User-Agent", platforms.DefaultUserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		rec.Status = platforms.ErrorStatus{Reason: "request failed: " + err.Error()}
		return rec
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rec.Status = platforms.ErrorStatus{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
		return rec
	}

	var body graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		rec.Status = platforms.ErrorStatus{Reason: "decode failed: " + err.Error()}
		return rec
	}
	if len(body.Errors) > 0 {
		rec.Status = platforms.ErrorStatus{Reason: body.Errors[0].Message}
		return rec
	}
	if body.Data.User == nil {
		rec.Status = platforms.NotFoundStatus{}
		return rec
	}

	user := body.Data.User
	rec.DisplayName = user.DisplayName
	rec.AvatarURL = user.Avatar.URL

	if user.Livestream != nil {
		startedAt, _ := time.Parse(time.RFC3339, user.Livestream.CreatedAt)
		rec.Status = platforms.LiveStatus{
			Title:       user.Livestream.Title,
			ViewerCount: clampViewers(user.Livestream.WatchingCount),
			StartedAt:   startedAt,
		}
		return rec
	}

	var lastBroadcast time.Time
	if len(user.PastBroadcasts.List) > 0 {
		if t, err := time.Parse(time.RFC3339, user.PastBroadcasts.List[0].CreatedAt); err == nil {
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

// Package rumble implements the HTML-scrape adapter for rumble.com channel
// pages, mirroring the youtube adapter's scrape discipline against a
// different page shape.
package rumble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/streamwatch/streamwatch/browser"
	"github.com/streamwatch/streamwatch/platforms"
)

const (
	navTimeout      = 60 * time.Second
	selectorTimeout = 3 * time.Second
)

type Adapter struct {
	owner *browser.Owner
}

func New(owner *browser.Owner) *Adapter {
	return &Adapter{owner: owner}
}

func (a *Adapter) Platform() platforms.Platform { return platforms.Rumble }

func (a *Adapter) Fetch(ctx context.Context, ref platforms.Ref) platforms.Record {
	rec := platforms.Record{
		Platform:    platforms.Rumble,
		PlatformID:  ref.PlatformID,
		ChannelURL:  fmt.Sprintf("https://rumble.com/c/%s", ref.PlatformID),
		LastChecked: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, navTimeout+10*time.Second)
	defer cancel()

	page, err := a.owner.Acquire(ctx)
	if err != nil {
		rec.Status = platforms.ErrorStatus{Reason: "browser acquire failed: " + err.Error()}
		return rec
	}
	defer page.Close()

	if err := blockNonMediaRequests(page.Ctx); err != nil {
		rec.ErrorDetail = "request blocking setup failed: " + err.Error()
	}

	var pageTitle, url string
	navCt, navCancel := context.WithTimeout(page.Ctx, navTimeout)
	defer navCancel()
	if err := chromedp.Run(navCt,
		chromedp.Navigate(rec.ChannelURL),
		chromedp.Title(&pageTitle),
		chromedp.Location(&url),
	); err != nil {
		rec.Status = platforms.ErrorStatus{Reason: "navigation failed: " + err.Error()}
		return rec
	}

	if isNotFound(pageTitle, url) {
		rec.Status = platforms.NotFoundStatus{}
		return rec
	}

	var displayName, avatar string
	_ = runGuarded(page.Ctx, chromedp.Text(`.channel-header--title`, &displayName, chromedp.NodeVisible))
	_ = runGuarded(page.Ctx, chromedp.AttributeValue(`.channel-header--thumb img`, "src", &avatar, nil))
	rec.DisplayName = strings.TrimSpace(displayName)
	rec.AvatarURL = avatar

	var liveBadge string
	badgeErr := runGuarded(page.Ctx, chromedp.Text(`.videostream-is-live`, &liveBadge, chromedp.NodeVisible))
	if badgeErr == nil && strings.Contains(strings.ToUpper(liveBadge), "LIVE") {
		var viewerText, title string
		_ = runGuarded(page.Ctx, chromedp.Text(`.videostream-info--views`, &viewerText, chromedp.NodeVisible))
		_ = runGuarded(page.Ctx, chromedp.Text(`.videostream-info--title`, &title, chromedp.NodeVisible))
		rec.Status = platforms.LiveStatus{
			Title:       strings.TrimSpace(title),
			ViewerCount: platforms.ParseViewerCount(viewerText),
			StartedAt:   time.Now(),
		}
		return rec
	}

	var lastBroadcastText string
	_ = runGuarded(page.Ctx, chromedp.Text(`.video-item--time`, &lastBroadcastText, chromedp.NodeVisible))
	lastBroadcast, _ := platforms.ParseRelativeTime(lastBroadcastText)
	rec.Status = platforms.OfflineStatus{LastBroadcastAt: lastBroadcast}
	return rec
}

func runGuarded(ctx context.Context, action chromedp.Action) error {
	ctx, cancel := context.WithTimeout(ctx, selectorTimeout)
	defer cancel()
	return chromedp.Run(ctx, action)
}

func isNotFound(pageTitle, url string) bool {
	return strings.Contains(pageTitle, "404") || strings.Contains(url, "/404") ||
		strings.Contains(strings.ToLower(pageTitle), "page not found")
}

var mediaCDNHosts = []string{"rumble.com/embedJS", "rumble-res.cloudinary.com", "sp.rmbl.ws"}

func isMediaCDNHost(rawURL string) bool {
	for _, host := range mediaCDNHosts {
		if strings.Contains(rawURL, host) {
			return true
		}
	}
	return false
}

func blockNonMediaRequests(ctx context.Context) error {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		ev2, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(ctx)
			execCtx := context.Background()
			if isMediaCDNHost(ev2.Request.URL) {
				_ = fetch.ContinueRequest(ev2.RequestID).Do(chromedp.WithExecutor(execCtx, c.Target))
			} else {
				_ = fetch.FailRequest(ev2.RequestID, network.ErrorReasonBlockedByClient).Do(chromedp.WithExecutor(execCtx, c.Target))
			}
		}()
	})
	return chromedp.Run(ctx, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
		{URLPattern: "*", ResourceType: network.ResourceTypeImage, RequestStage: fetch.RequestStageRequest},
		{URLPattern: "*", ResourceType: network.ResourceTypeStylesheet, RequestStage: fetch.RequestStageRequest},
		{URLPattern: "*", ResourceType: network.ResourceTypeFont, RequestStage: fetch.RequestStageRequest},
	}))
}

// Package youtube implements the HTML-scrape adapter for a channel's live
// tab, driving the shared headless browser per spec.md §4.1's scrape rules.
package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/streamwatch/streamwatch/browser"
	"github.com/streamwatch/streamwatch/log"
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

func (a *Adapter) Platform() platforms.Platform { return platforms.YouTube }

// Fetch navigates to the channel's /live page, blocks non-media-CDN
// subresources to cut load, detects not-found deterministically, and reads
// the remaining fields via guarded selector queries that degrade to
// Unknown/0 rather than failing the record.
func (a *Adapter) Fetch(ctx context.Context, ref platforms.Ref) platforms.Record {
	rec := platforms.Record{
		Platform:    platforms.YouTube,
		PlatformID:  ref.PlatformID,
		ChannelURL:  fmt.Sprintf("https://www.youtube.com/%s/live", ref.PlatformID),
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
		log.LogError("", "failed to install request blocking", err, "platform", "youtube")
	}

	var title, pageTitle, url string
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

	_ = chromedp.Run(page.Ctx, chromedp.Title(&title))
	rec.DisplayName = displayNameFromTitle(title)

	var avatarSrc string
	_ = runGuarded(page.Ctx, chromedp.AttributeValue(`link[rel="image_src"]`, "href", &avatarSrc, nil))
	rec.AvatarURL = avatarSrc

	var liveBadge string
	badgeErr := runGuarded(page.Ctx, chromedp.Text(`.ytp-live-badge`, &liveBadge, chromedp.NodeVisible))
	if badgeErr == nil && strings.Contains(strings.ToUpper(liveBadge), "LIVE") {
		var viewerText, streamTitle string
		_ = runGuarded(page.Ctx, chromedp.Text(`.view-count`, &viewerText, chromedp.NodeVisible))
		_ = runGuarded(page.Ctx, chromedp.Text(`h1.title`, &streamTitle, chromedp.NodeVisible))
		rec.Status = platforms.LiveStatus{
			Title:       strings.TrimSpace(streamTitle),
			ViewerCount: platforms.ParseViewerCount(viewerText),
			StartedAt:   time.Now(),
		}
		return rec
	}

	var lastBroadcastText string
	_ = runGuarded(page.Ctx, chromedp.Text(`#metadata-line span`, &lastBroadcastText, chromedp.NodeVisible))
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
		strings.Contains(strings.ToLower(pageTitle), "this page isn't available")
}

func displayNameFromTitle(title string) string {
	return strings.TrimSuffix(title, " - YouTube")
}

// blockNonMediaRequests denies image/stylesheet/font requests whose host
// isn't a known media CDN, reducing page weight the way a real scraper
// would (spec.md §4.1 step 3). Paused requests matching the pattern are
// failed unless their URL is on a media CDN host, which continue; requests
// of other resource types are never paused.
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

var mediaCDNHosts = []string{"googlevideo.com", "ytimg.com", "ggpht.com"}

func isMediaCDNHost(rawURL string) bool {
	for _, host := range mediaCDNHosts {
		if strings.Contains(rawURL, host) {
			return true
		}
	}
	return false
}

// Package resolver turns a platform streamer reference into a playable
// media-playlist URL (C4), consulting the last-published catalog snapshot
// first and falling back to a scoped headless-browser probe.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/grafov/m3u8"

	"github.com/streamwatch/streamwatch/browser"
	"github.com/streamwatch/streamwatch/catalog"
	"github.com/streamwatch/streamwatch/errors"
	"github.com/streamwatch/streamwatch/log"
	"github.com/streamwatch/streamwatch/platforms"
)

// probeBudget bounds how long the browser fallback waits for a media
// playlist URL to appear, per §4.4.
const probeBudget = 10 * time.Second

// verifyRetries bounds the backoff retry on the post-probe playlist fetch,
// mirroring video/probe.go's ffprobe retry count.
const verifyRetries = 3

// watchPageBuilder returns the watch-page URL for a platform/ref, mirroring
// each scrape adapter's own URL construction.
var watchPageBuilder = map[platforms.Platform]func(id string) string{
	platforms.YouTube: func(id string) string { return "https://www.youtube.com/" + id + "/live" },
	platforms.Rumble:  func(id string) string { return "https://rumble.com/c/" + id },
	platforms.Kick:    func(id string) string { return "https://kick.com/" + id },
	platforms.Trovo:   func(id string) string { return "https://trovo.live/" + id },
}

type Resolver struct {
	aggregator *catalog.Aggregator
	owner      *browser.Owner
}

func New(aggregator *catalog.Aggregator, owner *browser.Owner) *Resolver {
	return &Resolver{aggregator: aggregator, owner: owner}
}

// Resolve returns a playable media-playlist URL for ref, or a ResolveError
// if neither the catalog snapshot nor the browser probe produces one within
// budget.
func (r *Resolver) Resolve(ctx context.Context, ref platforms.Ref) (string, error) {
	if url := r.fromSnapshot(ref); url != "" {
		return url, nil
	}
	return r.fromBrowserProbe(ctx, ref)
}

func (r *Resolver) fromSnapshot(ref platforms.Ref) string {
	for _, rec := range r.aggregator.Latest() {
		if rec.Ref() == ref && rec.StreamURL != "" {
			return rec.StreamURL
		}
	}
	return ""
}

// fromBrowserProbe opens the watch page in a scoped tab, subscribes to
// network response events only for the duration of this call, and returns
// the first .m3u8-suffixed URL observed, directly implementing spec.md §9's
// restated fix for the original's callback-based subscribe-without-unsubscribe
// pattern: subscribe, await first match or timeout, unsubscribe before
// returning, every time.
func (r *Resolver) fromBrowserProbe(ctx context.Context, ref platforms.Ref) (string, error) {
	build, ok := watchPageBuilder[ref.Platform]
	if !ok {
		return "", errors.NewResolveError("no browser probe available for platform "+string(ref.Platform), nil)
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeBudget)
	defer cancel()

	page, err := r.owner.Acquire(probeCtx)
	if err != nil {
		return "", errors.NewResolveError("failed to acquire browser page", err)
	}
	defer page.Close()

	found := make(chan string, 1)
	listen := func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		if strings.Contains(resp.Response.URL, ".m3u8") {
			select {
			case found <- resp.Response.URL:
			default:
			}
		}
	}
	chromedp.ListenTarget(page.Ctx, listen)

	url := build(ref.PlatformID)
	if err := chromedp.Run(page.Ctx,
		network.Enable(),
		chromedp.Navigate(url),
	); err != nil {
		return "", errors.NewResolveError("failed to navigate watch page", err)
	}

	// Passive page load doesn't guarantee the media-playlist request: many
	// players block autoplay, especially headless. Seek to 0 and call
	// play() on the first <video> element to force it.
	r.triggerPlayback(page.Ctx)

	select {
	case streamURL := <-found:
		if err := r.verifyPlaylist(probeCtx, streamURL); err != nil {
			return "", errors.NewResolveError("observed playlist URL did not resolve to a usable playlist", err)
		}
		return streamURL, nil
	case <-probeCtx.Done():
		log.LogNoRequestID("resolver probe timed out", "platform", ref.Platform, "platform_id", ref.PlatformID)
		return "", errors.NewResolveError("no media playlist observed within budget", probeCtx.Err())
	}
}

// triggerPlayback seeks the watch page's video element to 0 and invokes
// play(), best-effort: a page with no <video> yet, or one that rejects the
// seek, still falls through to the passive network-listen wait.
func (r *Resolver) triggerPlayback(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var unused string
	_ = chromedp.Run(ctx, chromedp.Evaluate(`(function(){
		var v = document.querySelector("video");
		if (!v) { return ""; }
		v.currentTime = 0;
		v.play();
		return "ok";
	})()`, &unused))
}

// verifyPlaylist fetches url and parses it as an HLS playlist, retrying
// transient fetch failures with an exponential backoff the way
// video/probe.go retries ffprobe: the network response that surfaces a
// .m3u8 URL during the page probe can momentarily 404 before the CDN has
// actually published the segment it points at.
func (r *Resolver) verifyPlaylist(ctx context.Context, url string) error {
	boff := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), verifyRetries), ctx)
	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("playlist fetch returned status %d", resp.StatusCode)
		}
		_, listType, err := m3u8.DecodeFrom(resp.Body, false)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("invalid m3u8 playlist: %w", err))
		}
		if listType != m3u8.MASTER && listType != m3u8.MEDIA {
			return backoff.Permanent(fmt.Errorf("unexpected playlist type %v", listType))
		}
		return nil
	}, boff)
}

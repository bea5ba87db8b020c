package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamwatch/streamwatch/events"
	"github.com/streamwatch/streamwatch/log"
	"github.com/streamwatch/streamwatch/metrics"
	"github.com/streamwatch/streamwatch/platforms"
)

// apiWorkerLimit bounds API-adapter concurrency per §4.2/§5 (documented: 5).
const apiWorkerLimit = 5

// Aggregator fans out roster entries across adapters, merges and sorts the
// results, and publishes the snapshot. Grounded on main.go's
// golang.org/x/sync/errgroup use for coordinated startup, generalized here
// to bound per-platform worker concurrency instead.
type Aggregator struct {
	roster      platforms.Roster
	apiAdapters []platforms.Adapter
	// scrapeAdapters run sequentially within their own platform (shared
	// browser) but concurrently across platforms; they share one
	// browser.Owner and each fetch opens its own page.
	scrapeAdapters []platforms.Adapter
	catalogPath    string
	bus            *events.Bus
	metrics        *metrics.Metrics

	mu       sync.RWMutex
	latest   Snapshot
	latestAt time.Time
}

func NewAggregator(roster platforms.Roster, apiAdapters, scrapeAdapters []platforms.Adapter, catalogPath string, bus *events.Bus, m *metrics.Metrics) *Aggregator {
	a := &Aggregator{
		roster:         roster,
		apiAdapters:    apiAdapters,
		scrapeAdapters: scrapeAdapters,
		catalogPath:    catalogPath,
		bus:            bus,
		metrics:        m,
	}
	if snap, err := ReadFromDisk(catalogPath); err == nil {
		a.latest = snap
	}
	return a
}

// Latest returns the most recently published snapshot (used by the C4
// resolver's first step and by the HTTP read endpoints).
func (a *Aggregator) Latest() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// Refresh fans out over every configured adapter and publishes a merged,
// sorted snapshot. All-settled: a platform whose fetch fails keeps its
// prior snapshot's records for that platform rather than dropping them, so
// one platform's outage never empties the whole catalog.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	return a.refreshPlatforms(ctx, append(append([]platforms.Adapter{}, a.apiAdapters...), a.scrapeAdapters...))
}

// RefreshPlatform refreshes a single platform, scoped for POST
// /api/refresh/{platform}.
func (a *Aggregator) RefreshPlatform(ctx context.Context, platform platforms.Platform) (Snapshot, error) {
	for _, ad := range append(a.apiAdapters, a.scrapeAdapters...) {
		if ad.Platform() == platform {
			return a.refreshPlatforms(ctx, []platforms.Adapter{ad})
		}
	}
	return a.Latest(), nil
}

func (a *Aggregator) refreshPlatforms(ctx context.Context, adapters []platforms.Adapter) (Snapshot, error) {
	start := time.Now()

	results := make(map[platforms.Platform][]platforms.Record)
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	for _, adapter := range adapters {
		adapter := adapter
		g.Go(func() error {
			recs, err := a.fetchPlatform(gctx, adapter)
			resultsMu.Lock()
			defer resultsMu.Unlock()
			if err != nil {
				// All-settled: keep this platform's entries from the last
				// persisted snapshot instead of failing the whole refresh.
				log.LogError("", "platform refresh failed, keeping prior snapshot", err, "platform", adapter.Platform())
				results[adapter.Platform()] = a.priorRecordsFor(adapter.Platform())
				a.metrics.CatalogRefreshCount.WithLabelValues(string(adapter.Platform()), "false").Inc()
				return nil // never abort the group: one platform's failure must not cancel the rest
			}
			results[adapter.Platform()] = recs
			a.metrics.CatalogRefreshCount.WithLabelValues(string(adapter.Platform()), "true").Inc()
			return nil
		})
	}
	_ = g.Wait() // errors are absorbed per-platform above; g.Wait() only synchronizes

	a.mu.RLock()
	merged := make(Snapshot, 0, len(a.latest))
	a.mu.RUnlock()

	refreshed := refreshedPlatforms(adapters)
	a.mu.RLock()
	for _, r := range a.latest {
		if !refreshed[r.Platform] {
			merged = append(merged, r)
		}
	}
	a.mu.RUnlock()
	for _, recs := range results {
		merged = append(merged, recs...)
	}

	Sort(merged)

	if err := WriteAtomic(a.catalogPath, merged); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.latest = merged
	a.latestAt = time.Now()
	a.mu.Unlock()

	a.metrics.CatalogSize.Set(float64(len(merged)))
	a.metrics.CatalogRefreshDuration.WithLabelValues("all").Observe(time.Since(start).Seconds())

	a.bus.Publish(events.Message{Kind: events.KindCatalogSnapshot, Payload: merged})
	return merged, nil
}

func refreshedPlatforms(adapters []platforms.Adapter) map[platforms.Platform]bool {
	out := make(map[platforms.Platform]bool, len(adapters))
	for _, ad := range adapters {
		out[ad.Platform()] = true
	}
	return out
}

func (a *Aggregator) priorRecordsFor(platform platforms.Platform) []platforms.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []platforms.Record
	for _, r := range a.latest {
		if r.Platform == platform {
			out = append(out, r)
		}
	}
	return out
}

func (a *Aggregator) fetchPlatform(ctx context.Context, adapter platforms.Adapter) ([]platforms.Record, error) {
	ids := a.roster.ForPlatform(adapter.Platform())
	if len(ids) == 0 {
		return nil, nil
	}

	// Batch-capable adapters (currently just the OAuth platform) get their
	// documented chunking; API adapters fan out over the roster itself
	// through a bounded worker pool (apiWorkerLimit), one goroutine per
	// streamer ref. Scrape adapters fetch their roster one ref at a time, so
	// each scrape platform has at most one page navigating while the two
	// scrape platforms still run concurrently with each other.
	if batch, ok := adapter.(interface {
		FetchBatch(context.Context, []platforms.Ref) []platforms.Record
	}); ok {
		refs := make([]platforms.Ref, len(ids))
		for i, id := range ids {
			refs[i] = platforms.Ref{Platform: adapter.Platform(), PlatformID: id}
		}
		return batch.FetchBatch(ctx, refs), nil
	}

	out := make([]platforms.Record, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	limit := apiWorkerLimit
	for _, sa := range a.scrapeAdapters {
		if sa.Platform() == adapter.Platform() {
			limit = 1
		}
	}
	g.SetLimit(limit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			out[i] = adapter.Fetch(gctx, platforms.Ref{Platform: adapter.Platform(), PlatformID: id})
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// Package scheduler drives the periodic trigger (C3): catalog refresh on a
// fixed interval, plus the garbage collector's three sweeps on their own
// cadences. Grounded on the teacher's ticker-loop style
// (progress.ProgressReporter.mainLoop, clients.PeriodicCallbackClient.Start).
package scheduler

import (
	"context"
	"time"

	"github.com/streamwatch/streamwatch/catalog"
	"github.com/streamwatch/streamwatch/config"
	"github.com/streamwatch/streamwatch/gc"
	"github.com/streamwatch/streamwatch/log"
)

// Scheduler owns four independent ticker loops, each started by Run and
// stopped when ctx is cancelled.
type Scheduler struct {
	aggregator *catalog.Aggregator
	collector  *gc.Collector

	refreshInterval  time.Duration
	stallSweepPeriod time.Duration
	diskSweepPeriod  time.Duration

	// refreshing is a non-blocking "busy" signal: a refresh tick is dropped,
	// never queued, if the previous refresh has not finished yet (spec.md
	// §4.3's "never permitted to overlap").
	refreshing chan struct{}
}

func New(aggregator *catalog.Aggregator, collector *gc.Collector, refreshInterval, stallSweepPeriod, diskSweepPeriod time.Duration) *Scheduler {
	if refreshInterval <= 0 {
		refreshInterval = config.DefaultRefreshInterval
	}
	if stallSweepPeriod <= 0 {
		stallSweepPeriod = config.DefaultStallSweepPeriod
	}
	if diskSweepPeriod <= 0 {
		diskSweepPeriod = config.DefaultDiskSweepPeriod
	}
	return &Scheduler{
		aggregator:       aggregator,
		collector:        collector,
		refreshInterval:  refreshInterval,
		stallSweepPeriod: stallSweepPeriod,
		diskSweepPeriod:  diskSweepPeriod,
		refreshing:       make(chan struct{}, 1),
	}
}

// Run performs one immediate refresh, then starts the four loops, blocking
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.refreshOnce(ctx)

	go s.refreshLoop(ctx)
	go s.dailyLoop(ctx)
	go s.stallLoop(ctx)
	go s.diskLoop(ctx)

	<-ctx.Done()
}

func (s *Scheduler) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshOnce(ctx)
		}
	}
}

func (s *Scheduler) refreshOnce(ctx context.Context) {
	select {
	case s.refreshing <- struct{}{}:
	default:
		log.LogNoRequestID("catalog refresh dropped: previous refresh still running")
		return
	}
	defer func() { <-s.refreshing }()

	if _, err := s.aggregator.Refresh(ctx); err != nil {
		log.LogError("", "catalog refresh failed", err)
	}
}

func (s *Scheduler) dailyLoop(ctx context.Context) {
	timer := time.NewTimer(durationUntilNextLocalMidnight())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.collector.DailySweep()
			timer.Reset(durationUntilNextLocalMidnight())
		}
	}
}

func (s *Scheduler) stallLoop(ctx context.Context) {
	ticker := time.NewTicker(s.stallSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collector.StallSweep()
		}
	}
}

func (s *Scheduler) diskLoop(ctx context.Context) {
	ticker := time.NewTicker(s.diskSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collector.DiskPressureSweep()
		}
	}
}

func durationUntilNextLocalMidnight() time.Duration {
	now := time.Now()
	year, month, day := now.Date()
	nextMidnight := time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
	return nextMidnight.Sub(now)
}

// Package gc implements the garbage collector (C10): the daily, stall, and
// disk-pressure sweeps that keep temp buffers, preview directories, the job
// registry, and finished clips bounded.
package gc

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/streamwatch/streamwatch/config"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/log"
	"github.com/streamwatch/streamwatch/metrics"
)

// Collector owns the three sweeps, invoked on their own schedules by
// scheduler.Scheduler.
type Collector struct {
	broker  *jobs.Broker
	dataDir string
	metrics *metrics.Metrics

	retention               time.Duration
	stallThreshold          time.Duration
	diskPressureThresholdPct float64
	diskPressureEvictPct     float64
}

func NewCollector(broker *jobs.Broker, dataDir string, m *metrics.Metrics) *Collector {
	return &Collector{
		broker:                   broker,
		dataDir:                  dataDir,
		metrics:                  m,
		retention:                config.DefaultGCRetention,
		stallThreshold:           config.DefaultStallThreshold,
		diskPressureThresholdPct: config.DefaultDiskPressureThresholdPct,
		diskPressureEvictPct:     config.DefaultDiskPressureEvictPct,
	}
}

// DailySweep deletes temp buffers and preview directories older than the
// retention window, and drops terminal job registry entries past the same
// window.
func (c *Collector) DailySweep() {
	cutoff := time.Now().Add(-c.retention)

	tempDir := filepath.Join(c.dataDir, config.TempDirName)
	c.removeOlderThan(tempDir, cutoff, c.metrics.GCBuffersRemoved)

	for _, j := range c.broker.List() {
		if j.State.IsTerminal() && j.UpdatedAt.Before(cutoff) {
			if err := c.broker.Delete(j.ID); err != nil {
				log.LogError(j.ID, "daily sweep failed to delete job", err)
				continue
			}
			c.metrics.GCJobsRemoved.Inc()
		}
	}
}

func (c *Collector) removeOlderThan(dir string, cutoff time.Time, counter interface{ Inc() }) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.LogNoRequestID("daily sweep failed to read directory", "dir", dir, "error", err)
		}
		return
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.LogNoRequestID("daily sweep failed to remove path", "path", path, "error", err)
			continue
		}
		counter.Inc()
	}
}

// StallSweep force-fails any non-terminal job whose UpdatedAt is older than
// the stall threshold (spec.md §8 property 7).
func (c *Collector) StallSweep() {
	cutoff := time.Now().Add(-c.stallThreshold)
	for _, j := range c.broker.List() {
		if j.State.IsTerminal() || !j.UpdatedAt.Before(cutoff) {
			continue
		}
		if _, err := c.broker.Transition(j.ID, jobs.StateError, jobs.Patch{ErrorReason: jobs.StrPtr("stalled")}); err != nil {
			log.LogError(j.ID, "stall sweep failed to transition job", err)
			continue
		}
		c.metrics.JobsStalled.Inc()
	}
}

type clipFile struct {
	path      string
	thumbPath string
	createdAt time.Time
	size      int64
}

// DiskPressureSweep deletes the oldest-by-creation-time 10% of finished
// clips (and their thumbnails) when disk usage exceeds 90% (spec.md §8
// property 8). Uses gopsutil for portable disk-usage stats, the same
// library dependency seen elsewhere in the example pack for this concern.
func (c *Collector) DiskPressureSweep() {
	usage, err := disk.Usage(c.dataDir)
	if err != nil {
		log.LogNoRequestID("disk-pressure sweep failed to read usage", "error", err)
		return
	}
	if usage.UsedPercent <= c.diskPressureThresholdPct {
		return
	}

	clipsDir := filepath.Join(c.dataDir, config.ClipsDirName)
	entries, err := os.ReadDir(clipsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.LogNoRequestID("disk-pressure sweep failed to read clips dir", "error", err)
		}
		return
	}

	var clips []clipFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		id := stripExt(entry.Name())
		clips = append(clips, clipFile{
			path:      filepath.Join(clipsDir, entry.Name()),
			thumbPath: filepath.Join(c.dataDir, config.ThumbnailsDirName, id+".jpg"),
			createdAt: info.ModTime(),
			size:      info.Size(),
		})
	}
	if len(clips) == 0 {
		return
	}

	sort.Slice(clips, func(i, j int) bool { return clips[i].createdAt.Before(clips[j].createdAt) })

	evictCount := int(float64(len(clips)) * c.diskPressureEvictPct / 100)
	if evictCount == 0 {
		evictCount = 1
	}
	for i := 0; i < evictCount && i < len(clips); i++ {
		if err := os.Remove(clips[i].path); err != nil {
			log.LogNoRequestID("disk-pressure sweep failed to remove clip", "path", clips[i].path, "error", err)
			continue
		}
		_ = os.Remove(clips[i].thumbPath) // best-effort; absence is not an error
		c.metrics.GCClipsRemoved.Inc()
	}
}

func stripExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

// Package housekeeper periodically expires sessions and removes stale files
// from the download directory.
package housekeeper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"

	"tube-courier/internal/platform/metrics"
)

// Expirer sweeps expired sessions and cancels their downloads.
type Expirer interface {
	ExpireSessions(ctx context.Context) int
}

// ActiveFiles lists destinations of downloads still in flight.
type ActiveFiles interface {
	Paths() []string
}

// Config defines the sweep cadence and file retention.
type Config struct {
	Interval      time.Duration
	FileRetention time.Duration
	DownloadDir   string
}

// Report summarizes one sweep pass.
type Report struct {
	SessionsRemoved int
	FilesRemoved    int
	DiskFree        uint64
}

// Housekeeper performs background cleanup of sessions and files.
type Housekeeper struct {
	conf    Config
	expirer Expirer
	active  ActiveFiles
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New returns a Housekeeper. Metrics may be nil.
func New(conf Config, expirer Expirer, active ActiveFiles, log *slog.Logger, m *metrics.Metrics) *Housekeeper {
	return &Housekeeper{
		conf:    conf,
		expirer: expirer,
		active:  active,
		log:     log.With(slog.String("component", "housekeeper")),
		metrics: m,
		now:     time.Now,
	}
}

// Run calls SweepOnce every Interval until ctx is done.
func (h *Housekeeper) Run(ctx context.Context) {
	if h.conf.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(h.conf.Interval)
	defer ticker.Stop()

	h.log.Info("housekeeper started",
		slog.Duration("interval", h.conf.Interval),
		slog.Duration("file_retention", h.conf.FileRetention))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs exactly one pass: session expiry, file cleanup, disk check.
func (h *Housekeeper) SweepOnce(ctx context.Context) Report {
	var rep Report
	if h.expirer != nil {
		rep.SessionsRemoved = h.expirer.ExpireSessions(ctx)
	}
	rep.FilesRemoved = h.sweepFiles()
	h.metrics.AddFilesSwept(rep.FilesRemoved)

	if usage, err := DiskUsage(ctx, h.conf.DownloadDir); err != nil {
		h.log.Warn("disk usage unavailable", slog.String("error", err.Error()))
	} else {
		rep.DiskFree = usage.Free
		h.metrics.SetDownloadDirFree(usage.Free)
		if usage.UsedPercent > 90 {
			h.log.Warn("download volume nearly full",
				slog.String("free", humanize.IBytes(usage.Free)),
				slog.Float64("used_percent", usage.UsedPercent))
		}
	}

	if rep.SessionsRemoved > 0 || rep.FilesRemoved > 0 {
		h.log.Info("sweep finished",
			slog.Int("sessions_removed", rep.SessionsRemoved),
			slog.Int("files_removed", rep.FilesRemoved))
	}
	return rep
}

// sweepFiles removes regular files older than FileRetention unless they
// belong to an in-flight download.
func (h *Housekeeper) sweepFiles() int {
	if h.conf.DownloadDir == "" || h.conf.FileRetention <= 0 {
		return 0
	}
	entries, err := os.ReadDir(h.conf.DownloadDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			h.log.Warn("read download dir", slog.String("error", err.Error()))
		}
		return 0
	}

	var live []string
	if h.active != nil {
		for _, p := range h.active.Paths() {
			live = append(live, filepath.Base(p))
		}
	}

	cutoff := h.now().Add(-h.conf.FileRetention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || belongsToAny(e.Name(), live) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(h.conf.DownloadDir, e.Name())
		if err := os.Remove(path); err != nil {
			h.log.Warn("remove stale file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	return removed
}

// belongsToAny reports whether name is one of live or a side file of one.
func belongsToAny(name string, live []string) bool {
	for _, l := range live {
		if name == l || strings.HasPrefix(name, l+".") {
			return true
		}
	}
	return false
}

// DiskUsage reports usage of the filesystem holding dir.
func DiskUsage(ctx context.Context, dir string) (*disk.UsageStat, error) {
	if dir == "" {
		dir = "."
	}
	return disk.UsageWithContext(ctx, dir)
}

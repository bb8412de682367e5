package analysis

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron"
)

// Janitor periodically removes scratch leftovers of runs that never cleaned up,
// such as after a crash, and runs any extra sweepers on the same schedule.
type Janitor struct {
	root     string
	maxAge   time.Duration
	schedule string
	sweepers []func() int
	cron     *cron.Cron
	now      func() time.Time
}

type JanitorOption func(j *Janitor)

func WithSweeper(sweep func() int) JanitorOption {
	return func(j *Janitor) {
		j.sweepers = append(j.sweepers, sweep)
	}
}

func WithSchedule(spec string) JanitorOption {
	return func(j *Janitor) {
		j.schedule = spec
	}
}

// NewJanitor removes entries older than twice the run deadline.
func NewJanitor(cfg ToolConfig, opts ...JanitorOption) *Janitor {
	cfg = cfg.withDefaults()
	j := &Janitor{
		root:     cfg.ScratchRoot,
		maxAge:   2 * cfg.Deadline,
		schedule: "@every 10m",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Janitor) Start() error {
	j.cron = cron.New()
	if err := j.cron.AddFunc(j.schedule, func() { j.RunOnce() }); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	slog.Info("Scratch janitor started", "root", j.root, "schedule", j.schedule, "max_age", j.maxAge)
	return nil
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// RunOnce performs one sweep and returns how many scratch entries were removed.
func (j *Janitor) RunOnce() int {
	removed := 0
	entries, err := os.ReadDir(j.root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to list scratch root", "root", j.root, "error", err)
	}
	cutoff := j.now().Add(-j.maxAge)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), scratchPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(j.root, e.Name())
		if err := os.RemoveAll(p); err != nil {
			slog.Warn("Failed to remove stale scratch entry", "path", p, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Removed stale scratch entries", "count", removed)
	}

	for _, sweep := range j.sweepers {
		if n := sweep(); n > 0 {
			slog.Debug("Sweeper purged expired entries", "count", n)
		}
	}
	return removed
}

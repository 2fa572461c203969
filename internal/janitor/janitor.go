// Package janitor prunes stale session artifacts on a cron schedule.
package janitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Janitor sweeps the data directory and removes session directories older
// than the retention window.
type Janitor struct {
	dataDir string
	maxAge  time.Duration
	cron    *cron.Cron
}

// New creates a Janitor retaining sessions for maxAgeDays.
func New(dataDir string, maxAgeDays int) *Janitor {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &Janitor{
		dataDir: dataDir,
		maxAge:  time.Duration(maxAgeDays) * 24 * time.Hour,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the sweep on the given schedule and starts the ticker.
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() {
		if _, err := j.Sweep(); err != nil {
			slog.Error("session sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	slog.Info("janitor started", "schedule", schedule, "max_age", j.maxAge)
	return nil
}

// Stop stops the cron ticker.
func (j *Janitor) Stop() {
	j.cron.Stop()
}

// Sweep removes expired session directories and returns how many were
// pruned. A missing sessions directory is not an error.
func (j *Janitor) Sweep() (int, error) {
	root := filepath.Join(j.dataDir, "sessions")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sessions dir: %w", err)
	}

	cutoff := time.Now().Add(-j.maxAge)
	pruned := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("skipping unreadable session dir", "name", entry.Name(), "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			slog.Error("failed to prune session", "session", entry.Name(), "error", err)
			continue
		}
		slog.Info("pruned stale session", "session", entry.Name(), "age", time.Since(info.ModTime()).Round(time.Hour))
		pruned++
	}
	return pruned, nil
}

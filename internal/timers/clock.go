package timers

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/aegisforge/internal/audit"
)

// ClockConfig sets the interview deadline and the earlier warning point.
type ClockConfig struct {
	MaxDuration time.Duration
	WarningAt   time.Duration
}

// Clock enforces the interview time limit: an optional warning sub-timer
// and a hard deadline that forces a graceful shutdown. The shutdown
// callback must itself be idempotent against a concurrent user-requested
// shutdown.
type Clock struct {
	cfg       ClockConfig
	audit     *audit.Log
	onWarning func(ctx context.Context)
	onTimeout func(ctx context.Context)

	warning *Timer
	timeout *Timer
}

// NewClock creates the interview clock. onWarning may be nil.
func NewClock(cfg ClockConfig, log *audit.Log, onWarning, onTimeout func(ctx context.Context)) *Clock {
	return &Clock{cfg: cfg, audit: log, onWarning: onWarning, onTimeout: onTimeout}
}

// Start arms the warning and deadline timers.
func (c *Clock) Start(reg *Registry) {
	if c.onWarning != nil && c.cfg.WarningAt > 0 && c.cfg.WarningAt < c.cfg.MaxDuration {
		c.warning = StartTimer(reg, "clock-warning", c.cfg.WarningAt, c.audit, c.onWarning)
	}
	c.timeout = StartTimer(reg, "clock-timeout", c.cfg.MaxDuration, c.audit, func(ctx context.Context) {
		slog.Info("interview clock expired, forcing shutdown")
		c.onTimeout(ctx)
	})
	slog.Info("interview clock started", "max_duration", c.cfg.MaxDuration, "warning_at", c.cfg.WarningAt)
}

// Cancel stops both timers (interview ended early).
func (c *Clock) Cancel() {
	if c.warning != nil {
		c.warning.Cancel()
	}
	if c.timeout != nil {
		c.timeout.Cancel()
	}
}

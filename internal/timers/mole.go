package timers

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/user/aegisforge/internal/audit"
	"github.com/user/aegisforge/internal/types"
)

const moleActor = "MoleAgent"

// MoleConfig sets the randomized strike window.
type MoleConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Mole is the integrity tester. It lurks for a randomized delay, then
// fires at most once, logging one bait message from the fixed set. The
// bait is recorded for scoring; delivery into the conversation is left as
// an extension point via the Room port.
type Mole struct {
	cfg   MoleConfig
	baits []string
	audit *audit.Log

	timer *Timer
}

// NewMole wires the mole with its bait set.
func NewMole(cfg MoleConfig, baits []string, log *audit.Log) *Mole {
	return &Mole{cfg: cfg, baits: baits, audit: log}
}

// Start arms the strike timer.
func (m *Mole) Start(reg *Registry) {
	delay := m.cfg.MinDelay
	if spread := m.cfg.MaxDelay - m.cfg.MinDelay; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}
	m.timer = StartTimer(reg, "mole", delay, m.audit, func(_ context.Context) {
		bait := m.baits[rand.Intn(len(m.baits))]
		m.audit.LogEvent(moleActor, types.KindBaitOffered, "Bait: "+bait, map[string]any{"bait": bait})
		slog.Info("mole triggered", "bait", bait)
	})
}

// Cancel stops a pending strike.
func (m *Mole) Cancel() {
	if m.timer != nil {
		m.timer.Cancel()
	}
}

// Fired reports whether the bait was offered.
func (m *Mole) Fired() bool {
	return m.timer != nil && m.timer.State() == Fired
}

package timers

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/user/aegisforge/internal/audit"
	"github.com/user/aegisforge/internal/convo"
	"github.com/user/aegisforge/internal/signal"
	"github.com/user/aegisforge/internal/types"
)

const pressureActor = "PressureAgent"

// PressureConfig controls the interjection loop.
type PressureConfig struct {
	Grace       time.Duration
	MinInterval time.Duration
	MaxInterval time.Duration
	Chance      float64
}

// Pressure is the anxious stakeholder. After an initial grace period it
// repeatedly sleeps a randomized interval and, with some probability,
// emits an interjection. Runs until cancelled, not a one-shot timer.
type Pressure struct {
	cfg        PressureConfig
	persona    string
	interrupts []string
	ctx        *convo.Context
	room       types.Room
	audit      *audit.Log
}

// NewPressure wires the interjector with the fixed interjection bank.
func NewPressure(cfg PressureConfig, persona string, interrupts []string, convoCtx *convo.Context, room types.Room, log *audit.Log) *Pressure {
	if cfg.Chance <= 0 {
		cfg.Chance = 0.5
	}
	return &Pressure{
		cfg:        cfg,
		persona:    persona,
		interrupts: interrupts,
		ctx:        convoCtx,
		room:       room,
		audit:      log,
	}
}

// Start begins the interjection loop on the registry.
func (p *Pressure) Start(reg *Registry) {
	reg.Go(p.loop)
	slog.Info("pressure agent started", "persona", p.persona)
}

func (p *Pressure) loop(ctx context.Context) {
	// The loop only exits on cancellation; record it the way one-shot
	// timers do.
	defer p.audit.LogEvent("System", types.KindTimerCancelled, "pressure-loop", nil)

	if !sleep(ctx, p.cfg.Grace) {
		return
	}

	for {
		interval := p.cfg.MinInterval
		if spread := p.cfg.MaxInterval - p.cfg.MinInterval; spread > 0 {
			interval += time.Duration(rand.Int63n(int64(spread)))
		}
		if !sleep(ctx, interval) {
			return
		}

		if rand.Float64() >= p.cfg.Chance {
			continue
		}
		p.interject(ctx)
	}
}

func (p *Pressure) interject(ctx context.Context) {
	msg := p.interrupts[rand.Intn(len(p.interrupts))]

	p.audit.LogEvent(pressureActor, types.KindInterruption, "Triggered: "+msg, nil)
	p.ctx.Append("system", "[STAKEHOLDER INTERRUPTION] "+msg)

	if err := p.room.SendData(ctx, signal.Transcript(p.persona, msg)); err != nil {
		slog.Error("failed to broadcast interjection", "error", err)
	}
}

// sleep waits d or until ctx is cancelled; returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

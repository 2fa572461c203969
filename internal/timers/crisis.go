package timers

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/aegisforge/internal/audit"
	"github.com/user/aegisforge/internal/convo"
	"github.com/user/aegisforge/internal/scenario"
	"github.com/user/aegisforge/internal/signal"
	"github.com/user/aegisforge/internal/types"
	"github.com/user/aegisforge/pkg/llm"
)

const crisisActor = "CrisisPopupAgent"

// CrisisConfig sets the two-stage schedule: the first firing after
// FirstDelay, the second SecondDelay after the first firing.
type CrisisConfig struct {
	FirstDelay  time.Duration
	SecondDelay time.Duration
	GenTimeout  time.Duration
}

// Crisis injects surprise crisis questions mid-interview. Each firing
// generates content via the LLM (static fallback bank on failure or empty
// output), appends a high-priority interruption to the shared context, and
// signals the frontend.
type Crisis struct {
	cfg       CrisisConfig
	provider  CompletionProvider
	ctx       *convo.Context
	room      types.Room
	audit     *audit.Log
	domain    string
	candidate string

	// mu guards both stage timers: the second is armed from inside the
	// first firing's goroutine while Cancel may run from a shutdown
	// goroutine.
	mu     sync.Mutex
	first  *Timer
	second *Timer
}

// CompletionProvider is the slice of llm.Provider the crisis generator
// needs.
type CompletionProvider interface {
	Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error)
}

// NewCrisis wires a crisis agent. candidate may be empty or "Candidate"
// for generic questions.
func NewCrisis(cfg CrisisConfig, provider CompletionProvider, convoCtx *convo.Context, room types.Room, log *audit.Log, domain, candidate string) *Crisis {
	if cfg.GenTimeout <= 0 {
		cfg.GenTimeout = 15 * time.Second
	}
	return &Crisis{
		cfg:       cfg,
		provider:  provider,
		ctx:       convoCtx,
		room:      room,
		audit:     log,
		domain:    domain,
		candidate: candidate,
	}
}

// Start arms the first-stage timer. The second stage is armed from inside
// the first firing so its delay is measured from that firing, not from
// session start.
func (c *Crisis) Start(reg *Registry) {
	first := StartTimer(reg, "crisis-1", c.cfg.FirstDelay, c.audit, func(ctx context.Context) {
		c.trigger(ctx)
		second := StartTimer(reg, "crisis-2", c.cfg.SecondDelay, c.audit, c.trigger)
		c.mu.Lock()
		c.second = second
		c.mu.Unlock()
	})
	c.mu.Lock()
	c.first = first
	c.mu.Unlock()
}

// Cancel stops whichever stages are still pending.
func (c *Crisis) Cancel() {
	c.mu.Lock()
	first, second := c.first, c.second
	c.mu.Unlock()
	if first != nil {
		first.Cancel()
	}
	if second != nil {
		second.Cancel()
	}
}

func (c *Crisis) trigger(ctx context.Context) {
	question := c.generate(ctx)

	c.audit.LogEvent(crisisActor, types.KindCrisisTriggered, "Domain: "+c.domain,
		map[string]any{"question": question})

	if err := c.room.SendData(ctx, signal.CrisisPopup("INCOMING CRISIS", question)); err != nil {
		slog.Error("failed to send crisis popup", "error", err)
	}

	c.ctx.Append("system", scenario.CrisisPivot(question))

	if err := c.room.SendData(ctx, signal.Transcript("SYSTEM", "[CRISIS ALERT] "+question)); err != nil {
		slog.Error("failed to broadcast crisis", "error", err)
	}
}

// generate asks the LLM for a domain-specific question, falling back to
// the static bank on any failure or empty output.
func (c *Crisis) generate(ctx context.Context) string {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.GenTimeout)
	defer cancel()

	prompt := scenario.CrisisPrompt(c.domain, c.candidate)
	resp, err := c.provider.Complete(callCtx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		slog.Error("crisis generation failed, using fallback", "domain", c.domain, "error", err)
		return scenario.CrisisFallback(c.domain)
	}

	question := strings.TrimSpace(strings.ReplaceAll(resp.Content, "```", ""))
	if question == "" {
		return scenario.CrisisFallback(c.domain)
	}
	return question
}

// Package session coordinates one live interview: persona wiring, the
// transcript loop, safety checks and the end-of-session report pipeline.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/aegisforge/internal/audit"
	"github.com/user/aegisforge/internal/convo"
	"github.com/user/aegisforge/internal/evaluator"
	"github.com/user/aegisforge/internal/report"
	"github.com/user/aegisforge/internal/scenario"
	"github.com/user/aegisforge/internal/signal"
	"github.com/user/aegisforge/internal/timers"
	"github.com/user/aegisforge/internal/types"
	"github.com/user/aegisforge/pkg/llm"
)

const (
	systemActor = "System"
	leadActor   = "IncidentLead"
)

// State is the session lifecycle phase.
type State int32

const (
	Starting State = iota
	Active
	Ending
	Ended
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Ending:
		return "ending"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Notifier delivers the finished report somewhere out of band. Failures
// are logged, never fatal.
type Notifier interface {
	NotifyReport(ctx context.Context, fsir *report.FSIR) error
}

// Config carries everything the coordinator needs beyond its
// collaborators.
type Config struct {
	DataDir          string
	Model            string
	MaxContextTokens int
	OutputReserve    int
	EvalConcurrency  int64
	Role             string
	ReplyTimeout     time.Duration
	GoodbyeTimeout   time.Duration

	Clock    timers.ClockConfig
	Crisis   timers.CrisisConfig
	Pressure timers.PressureConfig
	Mole     timers.MoleConfig
}

// DefaultConfig returns the production schedule: crisis at 3 minutes and
// again 5 minutes later, a 40-minute interview with a warning at 35, the
// stakeholder interjecting every 15-40 seconds after a 20-second grace,
// and the mole striking once between 30 and 60 seconds in.
func DefaultConfig() Config {
	return Config{
		DataDir:          "data",
		Model:            "gpt-4o-mini",
		MaxContextTokens: 16000,
		OutputReserve:    1000,
		EvalConcurrency:  2,
		ReplyTimeout:     30 * time.Second,
		GoodbyeTimeout:   10 * time.Second,
		Clock:            timers.ClockConfig{MaxDuration: 2400 * time.Second, WarningAt: 2100 * time.Second},
		Crisis:           timers.CrisisConfig{FirstDelay: 180 * time.Second, SecondDelay: 300 * time.Second},
		Pressure:         timers.PressureConfig{Grace: 20 * time.Second, MinInterval: 15 * time.Second, MaxInterval: 40 * time.Second, Chance: 0.5},
		Mole:             timers.MoleConfig{MinDelay: 30 * time.Second, MaxDelay: 60 * time.Second},
	}
}

// Coordinator drives one interview from opening line to persisted report.
type Coordinator struct {
	id        types.SessionID
	cfg       Config
	scen      *scenario.Scenario
	candidate scenario.Candidate
	room      types.Room
	provider  llm.Provider
	renderer  types.Renderer
	notifier  Notifier

	audit    *audit.Log
	convoCtx *convo.Context
	eval     *evaluator.Evaluator
	governor *Governor
	reg      *timers.Registry
	clock    *timers.Clock
	crisis   *timers.Crisis
	pressure *timers.Pressure
	mole     *timers.Mole

	// minimal drops the adversarial personas and runs lead-only.
	minimal bool

	state   atomic.Int32
	endOnce sync.Once
	ended   chan struct{}

	mu   sync.Mutex
	fsir *report.FSIR
}

// New wires a coordinator. room and provider are the only hard
// requirements: a missing scenario degrades to a minimal lead-only
// session instead of failing.
func New(cfg Config, scen *scenario.Scenario, candidate scenario.Candidate, room types.Room, provider llm.Provider, renderer types.Renderer, notifier Notifier) (*Coordinator, error) {
	if room == nil {
		return nil, fmt.Errorf("session: room is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("session: llm provider is required")
	}

	minimal := false
	if scen == nil {
		slog.Warn("no scenario available, running minimal single-agent session")
		minimal = true
		scen = minimalScenario()
	}
	if renderer == nil {
		renderer = report.TextRenderer{}
	}
	if candidate.ID == "" {
		candidate = scenario.Candidate{ID: "unknown_candidate", Name: "Candidate"}
	}

	convoCtx, err := convo.New(cfg.Model, cfg.MaxContextTokens, cfg.OutputReserve)
	if err != nil {
		return nil, fmt.Errorf("session: build conversation context: %w", err)
	}

	id := types.NewSessionID()
	auditLog := audit.New(id, candidate.ID)

	c := &Coordinator{
		id:        id,
		cfg:       cfg,
		scen:      scen,
		candidate: candidate,
		room:      room,
		provider:  provider,
		renderer:  renderer,
		notifier:  notifier,
		audit:     auditLog,
		convoCtx:  convoCtx,
		eval:      evaluator.New(provider, auditLog, scenario.ObserverRubric, cfg.EvalConcurrency),
		governor:  NewGovernor(nil, 0),
		reg:       timers.NewRegistry(context.Background()),
		minimal:   minimal,
		ended:     make(chan struct{}),
	}

	c.clock = timers.NewClock(cfg.Clock, auditLog, c.onTimeWarning, func(context.Context) {
		c.Shutdown("time_expired")
	})
	if !minimal {
		c.crisis = timers.NewCrisis(cfg.Crisis, provider, convoCtx, room, auditLog, scen.Domain, candidate.Name)
		c.pressure = timers.NewPressure(cfg.Pressure, scen.Stakeholder.Name, scenario.PressureInterrupts, convoCtx, room, auditLog)
		c.mole = timers.NewMole(cfg.Mole, scenario.MoleBaitMessages, auditLog)
	}
	return c, nil
}

func minimalScenario() *scenario.Scenario {
	return &scenario.Scenario{
		ID:             "minimal",
		Title:          "Generic Incident",
		Domain:         "devops",
		Context:        "A production incident is in progress.",
		InitialProblem: "A critical service is degraded and the cause is unknown.",
		HiringManager:  scenario.Persona{Name: "Alex Reed", Instructions: "Run a calm, structured incident interview.", Tone: "Professional"},
	}
}

// ID returns the session identifier.
func (c *Coordinator) ID() types.SessionID { return c.id }

// State returns the current lifecycle phase.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Done is closed once the report pipeline has finished.
func (c *Coordinator) Done() <-chan struct{} { return c.ended }

// Report returns the finished report, or nil before the session ends.
func (c *Coordinator) Report() *report.FSIR {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsir
}

// PersonalizeCandidate swaps in late-arriving candidate data, rewriting
// the lead's system message in place.
func (c *Coordinator) PersonalizeCandidate(cand scenario.Candidate) {
	if cand.Name == "" || cand.Name == "Candidate" {
		return
	}
	c.candidate = cand
	c.convoCtx.ReplaceSystem(scenario.LeadSystemPrompt(c.scen, cand))
	slog.Info("candidate profile applied", "session_id", c.id, "candidate", cand.Name)
}

// Run starts the session and blocks until it has fully ended. The
// transcript loop exits on room closure, context cancellation or an
// internal shutdown; the report pipeline always runs exactly once.
func (c *Coordinator) Run(ctx context.Context) error {
	c.start(ctx)

	// Rooms that can observe their transport report disconnects here.
	var disconnected <-chan struct{}
	if d, ok := c.room.(interface{ Done() <-chan struct{} }); ok {
		disconnected = d.Done()
	}

	for {
		select {
		case t, ok := <-c.room.Transcripts():
			if !ok {
				c.Shutdown("disconnected")
				<-c.ended
				return nil
			}
			c.handleTranscript(ctx, t)
		case payload := <-c.room.Data():
			c.handleData(payload)
		case <-disconnected:
			disconnected = nil
			c.Shutdown("disconnected")
		case <-c.ended:
			return nil
		case <-ctx.Done():
			c.Shutdown("cancelled")
			<-c.ended
			return ctx.Err()
		}
	}
}

func (c *Coordinator) start(ctx context.Context) {
	c.audit.LogEvent(systemActor, types.KindSessionStart, "Scenario: "+c.scen.Title,
		map[string]any{
			"scenario_id":  c.scen.ID,
			"candidate_id": c.candidate.ID,
			"candidate":    c.candidate.Name,
			"minimal":      c.minimal,
		})

	c.convoCtx.Append("system", scenario.LeadSystemPrompt(c.scen, c.candidate))

	c.clock.Start(c.reg)
	if !c.minimal {
		c.crisis.Start(c.reg)
		c.pressure.Start(c.reg)
		c.mole.Start(c.reg)
	}

	opening := scenario.OpeningLine(c.scen, c.candidate)
	if err := c.room.Say(ctx, opening); err != nil {
		slog.Error("failed to deliver opening line", "session_id", c.id, "error", err)
	}
	c.convoCtx.Append("assistant", opening)
	c.audit.LogEvent(leadActor, types.KindInterviewStart, opening, nil)

	c.state.Store(int32(Active))
	slog.Info("interview started", "session_id", c.id, "scenario", c.scen.ID, "candidate", c.candidate.Name)
}

func (c *Coordinator) handleTranscript(ctx context.Context, t types.Transcript) {
	if c.State() != Active {
		return
	}
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return
	}

	c.audit.LogEvent("Candidate", types.KindTranscript, text,
		map[string]any{"confidence": t.Confidence})
	c.convoCtx.Append("user", text)
	c.eval.EvaluateTurn(context.WithoutCancel(ctx), t.Speaker, text)

	if DetectEndPhrase(text) {
		slog.Info("end phrase detected", "session_id", c.id)
		c.Shutdown("user_requested")
		return
	}
	if !c.governor.Check(text, t.Confidence) {
		c.audit.LogEvent("Governor", types.KindGovernorTrip, "Session halted: "+text, nil)
		c.Shutdown("governor_trip")
		return
	}

	c.respond(ctx)
}

// handleData processes inbound data-channel frames. Only code snapshots
// from the frontend notepad carry meaning for the interview; they land in
// the shared context so the lead can react to the candidate's code.
func (c *Coordinator) handleData(payload []byte) {
	if c.State() != Active {
		return
	}
	var frame struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil || frame.Type != signal.TypeCodeSnapshot {
		return
	}
	code := strings.TrimSpace(frame.Code)
	if code == "" {
		return
	}
	c.audit.LogEvent("Candidate", types.KindCodeSnapshot, "Code snapshot received",
		map[string]any{"code": code})
	c.convoCtx.Append("system", "[CODE SNAPSHOT] The candidate's editor now contains:\n"+code)
}

// respond generates the incident lead's next turn from the trimmed
// conversation window and speaks it.
func (c *Coordinator) respond(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.ReplyTimeout)
	defer cancel()

	stream, err := c.provider.Stream(callCtx, c.convoCtx.Window())
	if err != nil {
		slog.Error("lead reply failed", "session_id", c.id, "error", err)
		return
	}
	var b strings.Builder
	for delta := range stream {
		b.WriteString(delta.Content)
	}
	reply := strings.TrimSpace(b.String())
	if reply == "" {
		return
	}

	c.convoCtx.Append("assistant", reply)
	c.audit.LogEvent(leadActor, types.KindTranscript, reply, nil)
	if err := c.room.Say(ctx, reply); err != nil {
		slog.Error("failed to speak lead reply", "session_id", c.id, "error", err)
	}
}

func (c *Coordinator) onTimeWarning(ctx context.Context) {
	const warning = "We have about five minutes left, let's start wrapping up."
	c.audit.LogEvent(systemActor, types.KindTimeWarning, warning, nil)
	c.convoCtx.Append("system", "[TIME WARNING] "+warning)
	if err := c.room.Say(ctx, warning); err != nil {
		slog.Error("failed to deliver time warning", "session_id", c.id, "error", err)
	}
}

// Shutdown moves the session to Ending and kicks off the finalization
// pipeline. Safe to call from any goroutine, any number of times: only
// the first call wins.
func (c *Coordinator) Shutdown(reason string) {
	c.endOnce.Do(func() {
		c.state.Store(int32(Ending))
		slog.Info("session ending", "session_id", c.id, "reason", reason)
		go c.finalize(reason)
	})
}

func (c *Coordinator) finalize(reason string) {
	defer close(c.ended)
	defer c.state.Store(int32(Ended))

	// Stop every agent before touching the audit trail: a crisis firing
	// mid-report would corrupt the timeline.
	c.clock.Cancel()
	if !c.minimal {
		c.crisis.Cancel()
		c.mole.Cancel()
	}
	if !c.reg.Shutdown(5 * time.Second) {
		slog.Warn("background agents did not drain in time", "session_id", c.id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.GoodbyeTimeout)
	defer cancel()

	goodbye := scenario.GoodbyeLine(c.candidate.Name)
	if err := c.room.Say(ctx, goodbye); err != nil {
		slog.Error("failed to deliver goodbye", "session_id", c.id, "error", err)
	}
	if err := c.room.SendData(ctx, signal.InterviewEnd(reason)); err != nil {
		slog.Error("failed to signal interview end", "session_id", c.id, "error", err)
	}
	c.audit.LogEvent(systemActor, types.KindInterviewEnd, "Reason: "+reason, map[string]any{"reason": reason})

	if !c.eval.Wait(30 * time.Second) {
		slog.Warn("evaluations still in flight at finalization", "session_id", c.id)
	}
	c.audit.LogEvent(systemActor, types.KindSessionEnd, "Session closed", nil)

	c.buildReport(context.Background())

	if err := c.room.Close(); err != nil {
		slog.Debug("room close", "session_id", c.id, "error", err)
	}
	slog.Info("session ended", "session_id", c.id, "reason", reason)
}

// buildReport aggregates, shapes, renders and persists the report, then
// hands it to the notifier. Persistence failures are logged and skipped;
// the in-memory report is always produced.
func (c *Coordinator) buildReport(ctx context.Context) {
	evals := c.eval.Evaluations()
	events := c.audit.Export()

	composite := report.Aggregate(c.id, c.candidate.ID, evals, events)
	fsir := report.BuildFSIR(composite, evals, events, c.cfg.Role)

	c.mu.Lock()
	c.fsir = fsir
	c.mu.Unlock()

	if c.cfg.DataDir != "" {
		store := report.NewStore(c.cfg.DataDir)
		if err := store.SaveEvaluations(c.id, evals); err != nil {
			slog.Error("failed to persist evaluations", "session_id", c.id, "error", err)
		}
		if err := store.SaveFSIR(fsir, c.id); err != nil {
			slog.Error("failed to persist report", "session_id", c.id, "error", err)
		}
		if rendered, err := c.renderer.Render(ctx, composite); err != nil {
			slog.Error("failed to render report", "session_id", c.id, "error", err)
		} else if err := store.SaveRendered(c.id, rendered, ".txt"); err != nil {
			slog.Error("failed to persist rendered report", "session_id", c.id, "error", err)
		}
		if err := c.audit.WriteJSONL(c.cfg.DataDir); err != nil {
			slog.Error("failed to persist audit log", "session_id", c.id, "error", err)
		}
	}

	if c.notifier != nil {
		if err := c.notifier.NotifyReport(ctx, fsir); err != nil {
			slog.Error("report notification failed", "session_id", c.id, "error", err)
		}
	}
	slog.Info("report complete", "session_id", c.id, "decision", fsir.Decision, "score", fsir.DQIBreakdown.Score)
}

// Package evaluator grades conversational turns in the background.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/aegisforge/internal/audit"
	"github.com/user/aegisforge/internal/types"
	"github.com/user/aegisforge/pkg/llm"
)

const actorName = "ObserverAgent"

// Evaluator runs a detached LLM grading pass per turn. Evaluations may
// overlap and complete out of order; each audit entry carries the turn
// index and evaluated text so attribution survives reordering. Nothing
// here ever blocks the turn loop or propagates an error to the caller.
type Evaluator struct {
	provider llm.Provider
	audit    *audit.Log
	rubric   string
	sem      *semaphore.Weighted
	timeout  time.Duration

	wg    sync.WaitGroup
	turns atomic.Int64

	mu    sync.Mutex
	evals []types.Evaluation
}

// New creates an Evaluator. maxConcurrent bounds in-flight LLM calls.
func New(provider llm.Provider, auditLog *audit.Log, rubric string, maxConcurrent int64) *Evaluator {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Evaluator{
		provider: provider,
		audit:    auditLog,
		rubric:   rubric,
		sem:      semaphore.NewWeighted(maxConcurrent),
		timeout:  30 * time.Second,
	}
}

// EvaluateTurn schedules a detached grading pass for one utterance and
// returns immediately. Empty utterances are ignored.
func (e *Evaluator) EvaluateTurn(ctx context.Context, speaker, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	idx := int(e.turns.Add(1)) - 1

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.evaluate(ctx, idx, speaker, text)
	}()
}

func (e *Evaluator) evaluate(ctx context.Context, idx int, speaker, text string) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.record(failedEvaluation(idx, speaker, text, err))
		e.audit.LogEvent(actorName, types.KindEvaluationFailed, "Evaluation cancelled",
			map[string]any{"turn_index": idx, "text": text, "error": err.Error()})
		return
	}
	defer e.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: e.rubric},
		{Role: "user", Content: fmt.Sprintf("Evaluate this turn: '%s'", text)},
	}

	raw, err := e.collect(callCtx, messages)
	if err != nil {
		slog.Error("observer evaluation failed", "turn_index", idx, "error", err)
		e.record(failedEvaluation(idx, speaker, text, err))
		e.audit.LogEvent(actorName, types.KindEvaluationFailed, "LLM call failed",
			map[string]any{"turn_index": idx, "text": text, "error": err.Error()})
		return
	}

	grade, err := parseGrade(raw)
	if err != nil {
		e.record(types.Evaluation{
			ID:         types.NewEvaluationID(),
			TurnIndex:  idx,
			Speaker:    speaker,
			Reasoning:  "PARSE_ERROR: " + err.Error(),
			ParseError: true,
			Raw:        raw,
		})
		e.audit.LogEvent(actorName, types.KindEvaluationParseError, "Could not parse JSON",
			map[string]any{"turn_index": idx, "text": text, "raw": raw})
		return
	}

	eval := types.Evaluation{
		ID:         types.NewEvaluationID(),
		TurnIndex:  idx,
		Speaker:    speaker,
		Category:   grade.Category,
		Grade:      grade.Grade,
		Score:      grade.score(),
		Confidence: grade.Confidence,
		Reasoning:  grade.reasoning(),
	}
	e.record(eval)
	e.audit.LogEvent(actorName, types.KindEvaluationComplete, "Turn evaluated",
		map[string]any{"turn_index": idx, "text": text, "score": eval.Score, "grade": eval.Grade})
}

// collect streams the completion and accumulates delta text.
func (e *Evaluator) collect(ctx context.Context, messages []llm.Message) (string, error) {
	stream, err := e.provider.Stream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("start stream: %w", err)
	}

	var b strings.Builder
	for delta := range stream {
		b.WriteString(delta.Content)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response")
	}
	return b.String(), nil
}

func failedEvaluation(idx int, speaker, text string, err error) types.Evaluation {
	return types.Evaluation{
		ID:         types.NewEvaluationID(),
		TurnIndex:  idx,
		Speaker:    speaker,
		Reasoning:  "EVALUATION_FAILED: " + err.Error(),
		ParseError: true,
		Raw:        text,
	}
}

func (e *Evaluator) record(eval types.Evaluation) {
	e.mu.Lock()
	e.evals = append(e.evals, eval)
	e.mu.Unlock()
}

// Evaluations returns a copy of all recorded evaluations so far.
func (e *Evaluator) Evaluations() []types.Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Evaluation, len(e.evals))
	copy(out, e.evals)
	return out
}

// Turns returns the number of attempted evaluations.
func (e *Evaluator) Turns() int {
	return int(e.turns.Load())
}

// Wait blocks until all in-flight evaluations finish or the timeout
// expires. Returns true when everything drained.
func (e *Evaluator) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

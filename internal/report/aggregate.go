// Package report turns evaluations and the audit log into the final
// session report.
package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/user/aegisforge/internal/types"
)

// GeneralCategory is the synthetic category used when the rubric provides
// flat scores only.
const GeneralCategory = "General Performance"

// AdvanceThreshold is the decision cutoff on the canonical 0-10 scale.
const AdvanceThreshold = 7.0

const (
	DecisionAdvance = "ADVANCE"
	DecisionReject  = "REJECT"
)

// timelineKinds selects the domain-relevant audit kinds for the report
// timeline.
var timelineKinds = map[string]bool{
	types.KindInterviewStart:     true,
	types.KindInterviewEnd:       true,
	types.KindCrisisTriggered:    true,
	types.KindInterruption:       true,
	types.KindBaitOffered:        true,
	types.KindEvaluationComplete: true,
}

// Aggregate is a pure function from the evaluation list and audit export
// to a CompositeReport. Parse-error evaluations are excluded from the
// mean but counted; scores stay on the 0-10 scale throughout.
func Aggregate(sessionID types.SessionID, candidateID string, evals []types.Evaluation, events []types.AuditEvent) *types.CompositeReport {
	report := &types.CompositeReport{
		SessionID:   sessionID,
		CandidateID: candidateID,
		Timeline:    deriveTimeline(events),
	}

	var total float64
	var counted int
	byCategory := make(map[string][]types.Evaluation)

	for _, eval := range evals {
		if eval.ParseError {
			report.ParseErrors++
			continue
		}
		counted++
		total += eval.Score

		category := eval.Category
		if category == "" {
			category = GeneralCategory
		}
		byCategory[category] = append(byCategory[category], eval)
	}
	report.Evaluated = counted

	if counted == 0 {
		report.OverallScore = 0
		report.Decision = DecisionReject
		report.Summary = "No data collected."
		if report.ParseErrors > 0 {
			report.Summary = fmt.Sprintf("No data collected: all %d evaluations failed to parse.", report.ParseErrors)
		}
		return report
	}

	report.OverallScore = math.Round(total/float64(counted)*100) / 100
	report.Decision = decide(report.OverallScore)
	report.Breakdown = breakdown(byCategory)
	report.Summary = summarize(report)
	return report
}

func decide(overall float64) string {
	if overall > AdvanceThreshold {
		return DecisionAdvance
	}
	return DecisionReject
}

func breakdown(byCategory map[string][]types.Evaluation) []types.CategoryScore {
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	out := make([]types.CategoryScore, 0, len(byCategory))
	for _, category := range categories {
		group := byCategory[category]
		for _, eval := range group {
			out = append(out, types.CategoryScore{
				Category:  category,
				Score:     eval.Score,
				Reasoning: eval.Reasoning,
			})
		}
	}
	return out
}

func summarize(r *types.CompositeReport) string {
	s := fmt.Sprintf("Evaluated %d interaction points. ", r.Evaluated)
	switch {
	case r.OverallScore > 8:
		s += "Candidate showed strong incident management skills."
	case r.OverallScore > 5:
		s += "Candidate was competent but lacked speed or precision."
	default:
		s += "Candidate struggled with diagnosis and resolution."
	}
	if r.ParseErrors > 0 {
		s += fmt.Sprintf(" %d evaluations were unparseable and excluded from the score.", r.ParseErrors)
	}
	return s
}

// deriveTimeline walks the audit export in insertion order, keeping only
// domain-relevant kinds. Relative times are floored to whole seconds from
// session start; ties keep insertion order.
func deriveTimeline(events []types.AuditEvent) []types.TimelineEntry {
	start := sessionStart(events)

	var timeline []types.TimelineEntry
	for _, event := range events {
		if !timelineKinds[event.Kind] {
			continue
		}
		rel := 0
		if start > 0 && event.Timestamp >= start {
			rel = int(math.Floor(event.Timestamp - start))
		}
		timeline = append(timeline, types.TimelineEntry{
			Time:    fmt.Sprintf("%ds", rel),
			Actor:   event.Actor,
			Kind:    event.Kind,
			Details: event.Details,
		})
	}
	return timeline
}

// sessionStart prefers the INTERVIEW_START timestamp, then SESSION_START,
// then the first event.
func sessionStart(events []types.AuditEvent) float64 {
	var sessionStartTS float64
	for _, event := range events {
		if event.Kind == types.KindInterviewStart {
			return event.Timestamp
		}
		if sessionStartTS == 0 && event.Kind == types.KindSessionStart {
			sessionStartTS = event.Timestamp
		}
	}
	if sessionStartTS > 0 {
		return sessionStartTS
	}
	if len(events) > 0 {
		return events[0].Timestamp
	}
	return 0
}

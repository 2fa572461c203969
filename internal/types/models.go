// internal/types/models.go
package types

import "math"

// Audit event kinds recorded during a session. The exported timeline only
// selects a subset of these (see internal/report).
const (
	KindSessionStart   = "SESSION_START"
	KindSessionEnd     = "SESSION_END"
	KindInterviewStart = "INTERVIEW_START"
	KindInterviewEnd   = "INTERVIEW_END"
	KindTranscript     = "TRANSCRIPT"

	KindCodeSnapshot    = "CODE_SNAPSHOT"
	KindCrisisTriggered = "CRISIS_TRIGGERED"
	KindInterruption    = "INTERRUPTION"
	KindBaitOffered     = "BAIT_OFFERED"
	KindTimeWarning     = "TIME_WARNING"
	KindTimerCancelled  = "TIMER_CANCELLED"
	KindGovernorTrip    = "GOVERNOR_TRIP"

	KindEvaluationComplete   = "EVALUATION_COMPLETE"
	KindEvaluationParseError = "EVALUATION_PARSE_ERROR"
	KindEvaluationFailed     = "EVALUATION_FAILED"
)

// AuditEvent is one entry in the session's black-box recording.
// Immutable once appended; timestamp is UTC seconds since the epoch.
type AuditEvent struct {
	Timestamp float64        `json:"timestamp"`
	Actor     string         `json:"actor"`
	Kind      string         `json:"event_type"`
	Details   string         `json:"details"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Evaluation is the parsed (or failed-to-parse) grade for one turn.
// Score is always a clamped 0-10 value; parse failures keep ParseError set
// and carry the raw model output for audit purposes.
type Evaluation struct {
	ID         EvaluationID `json:"id"`
	TurnIndex  int          `json:"turn_index"`
	Speaker    string       `json:"speaker"`
	Category   string       `json:"category,omitempty"`
	Grade      string       `json:"grade,omitempty"`
	Score      float64      `json:"score"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
	ParseError bool         `json:"parse_error,omitempty"`
	Raw        string       `json:"raw,omitempty"`
}

// CategoryScore is one row of the per-category breakdown.
type CategoryScore struct {
	Category  string  `json:"category"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// TimelineEntry is a derived view of one domain-relevant audit event,
// with time relative to session start ("125s").
type TimelineEntry struct {
	Time    string `json:"time"`
	Actor   string `json:"action"`
	Kind    string `json:"state_change"`
	Details string `json:"details"`
}

// CompositeReport aggregates all evaluations for a session. OverallScore is
// on the canonical 0-10 scale everywhere; DisplayScore is the single place
// a 0-100 figure is produced.
type CompositeReport struct {
	SessionID    SessionID       `json:"session_id"`
	CandidateID  string          `json:"candidate_id"`
	OverallScore float64         `json:"overall_score"`
	Decision     string          `json:"decision"`
	Breakdown    []CategoryScore `json:"per_category_breakdown"`
	Summary      string          `json:"summary_text"`
	Timeline     []TimelineEntry `json:"timeline"`
	Evaluated    int             `json:"evaluated_turns"`
	ParseErrors  int             `json:"parse_errors"`
}

// DisplayScore converts the 0-10 overall score to the 0-100 scale used by
// rendered documents. All other code paths stay on 0-10.
func (r *CompositeReport) DisplayScore() int {
	return int(math.Round(r.OverallScore * 10))
}

// Transcript is one finalized utterance delivered by the transport.
type Transcript struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

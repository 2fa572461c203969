package report

import (
	"fmt"

	"github.com/user/aegisforge/internal/types"
)

// FSIR is the final structured interview report document.
type FSIR struct {
	CandidateID       string                 `json:"candidate_id"`
	RoleScreened      string                 `json:"role_screened"`
	Decision          string                 `json:"decision"`
	OverallConfidence string                 `json:"overall_confidence"`
	PrimaryReason     string                 `json:"primary_reason"`
	CrisisTimeline    []types.TimelineEntry  `json:"crisis_timeline"`
	DQIBreakdown      DQIBreakdown           `json:"dqi_breakdown"`
	Communication     CommunicationMetrics   `json:"communication_metrics"`
	SkillsValidated   []string               `json:"skills_validated"`
	IntegritySignals  IntegrityData          `json:"integrity_signals"`
	AgentConsensus    AgentConsensus         `json:"agent_consensus"`
	Report            *types.CompositeReport `json:"report"`
}

// CommunicationMetrics summarizes how clearly the candidate came across.
type CommunicationMetrics struct {
	TurnsEvaluated int     `json:"turns_evaluated"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// DQIBreakdown carries the displayed 0-100 score plus decision counters.
type DQIBreakdown struct {
	Score            int `json:"score"`
	CorrectDecisions int `json:"correct_decisions"`
	CriticalMisses   int `json:"critical_misses"`
}

// IntegrityData summarizes mole-bait interactions found in the audit log.
type IntegrityData struct {
	SignalsObserved []string `json:"signals_observed"`
}

// AgentConsensus records each persona's participation.
type AgentConsensus struct {
	IncidentLead  string `json:"incident_lead"`
	PressureAgent string `json:"pressure_agent"`
	ObserverAgent string `json:"observer_agent"`
	Governor      string `json:"protocol_governor"`
}

// BuildFSIR shapes the high-level document from the composite report, the
// evaluation list and the audit export.
func BuildFSIR(r *types.CompositeReport, evals []types.Evaluation, events []types.AuditEvent, role string) *FSIR {
	if role == "" {
		role = "SRE / Incident Commander"
	}

	confidence := "Medium"
	if r.Evaluated >= 5 && r.ParseErrors == 0 {
		confidence = "High"
	}
	if r.Evaluated == 0 {
		confidence = "Low"
	}

	correct, misses := 0, 0
	confSum, confN := 0.0, 0
	for _, eval := range evals {
		if eval.ParseError {
			continue
		}
		if eval.Score > AdvanceThreshold {
			correct++
		}
		if eval.Score < 3 {
			misses++
		}
		confSum += eval.Confidence
		confN++
	}
	comms := CommunicationMetrics{TurnsEvaluated: confN}
	if confN > 0 {
		comms.AvgConfidence = confSum / float64(confN)
	}

	// A skill is validated when the candidate's mean score in that
	// category clears the advance bar.
	catTotal := map[string]float64{}
	catCount := map[string]int{}
	var catOrder []string
	for _, row := range r.Breakdown {
		if catCount[row.Category] == 0 {
			catOrder = append(catOrder, row.Category)
		}
		catTotal[row.Category] += row.Score
		catCount[row.Category]++
	}
	var skills []string
	for _, category := range catOrder {
		if catTotal[category]/float64(catCount[category]) >= AdvanceThreshold {
			skills = append(skills, category)
		}
	}

	var signals []string
	for _, event := range events {
		if event.Kind == types.KindBaitOffered {
			signals = append(signals, "Mole agent offered bait: "+event.Details)
		}
		if event.Kind == types.KindGovernorTrip {
			signals = append(signals, "Governor tripped: "+event.Details)
		}
	}
	if len(signals) == 0 {
		signals = []string{"No specific integrity flags."}
	}

	return &FSIR{
		CandidateID:       r.CandidateID,
		RoleScreened:      role,
		Decision:          r.Decision,
		OverallConfidence: confidence,
		PrimaryReason:     "Automated assessment based on composite score.",
		CrisisTimeline:    r.Timeline,
		DQIBreakdown: DQIBreakdown{
			Score:            r.DisplayScore(),
			CorrectDecisions: correct,
			CriticalMisses:   misses,
		},
		Communication:    comms,
		SkillsValidated:  skills,
		IntegritySignals: IntegrityData{SignalsObserved: signals},
		AgentConsensus: AgentConsensus{
			IncidentLead:  "Participated",
			PressureAgent: "Participated",
			ObserverAgent: fmt.Sprintf("Score: %.2f", r.OverallScore),
			Governor:      "Monitoring",
		},
		Report: r,
	}
}

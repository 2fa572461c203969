// Package scenario loads interview scenarios, personas and candidate
// profiles.
package scenario

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

//go:embed scenarios.json
var scenarioBank []byte

// Persona is a named role driving one LLM-backed voice. All fields are
// explicit and defaulted; there is no optional-field lookup.
type Persona struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Tone         string `json:"tone"`
}

// withDefaults fills empty persona fields.
func (p Persona) withDefaults(name string) Persona {
	if p.Name == "" {
		p.Name = name
	}
	if p.Instructions == "" {
		p.Instructions = "Stay in character and keep the interview moving."
	}
	if p.Tone == "" {
		p.Tone = "Professional"
	}
	return p
}

// Scenario describes one interview setup.
type Scenario struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Domain          string   `json:"domain"`
	Context         string   `json:"context"`
	InitialProblem  string   `json:"initial_problem"`
	HiringManager   Persona  `json:"hiring_manager_persona"`
	Stakeholder     Persona  `json:"stakeholder_persona"`
	ObserverMetrics []string `json:"observer_metrics"`
}

// Candidate is the profile loaded from a resume-audit file. Missing data
// degrades to generic defaults rather than failing the session.
type Candidate struct {
	ID         string `json:"candidate_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Field      string `json:"field"`
	ScenarioID string `json:"scenario_id"`
}

// DefaultScenarioID is used when no scenario is requested or the requested
// one is unknown.
const DefaultScenarioID = "devops-redis-latency"

// Loader holds the parsed scenario bank.
type Loader struct {
	scenarios map[string]*Scenario
	order     []string
}

// NewLoader parses the embedded scenario bank.
func NewLoader() (*Loader, error) {
	var list []*Scenario
	if err := json.Unmarshal(scenarioBank, &list); err != nil {
		return nil, fmt.Errorf("parse scenario bank: %w", err)
	}

	l := &Loader{scenarios: make(map[string]*Scenario, len(list))}
	for _, s := range list {
		s.HiringManager = s.HiringManager.withDefaults("Alex Reed")
		s.Stakeholder = s.Stakeholder.withDefaults("Jordan Vale")
		l.scenarios[s.ID] = s
		l.order = append(l.order, s.ID)
	}
	return l, nil
}

// Get returns the scenario for id, falling back to the default scenario
// when id is unknown.
func (l *Loader) Get(id string) *Scenario {
	if s, ok := l.scenarios[id]; ok {
		return s
	}
	if id != "" {
		slog.Warn("scenario not found, falling back", "scenario_id", id, "fallback", DefaultScenarioID)
	}
	return l.scenarios[DefaultScenarioID]
}

// List returns all scenarios in bank order.
func (l *Loader) List() []*Scenario {
	out := make([]*Scenario, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.scenarios[id])
	}
	return out
}

// LoadCandidate reads a candidate audit file. Any failure degrades to the
// generic candidate rather than propagating an error.
func LoadCandidate(path string) Candidate {
	fallback := Candidate{ID: "unknown_candidate", Name: "Candidate"}
	if path == "" {
		return fallback
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("candidate audit unavailable, using defaults", "path", path, "error", err)
		return fallback
	}

	var c Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		slog.Warn("candidate audit malformed, using defaults", "path", path, "error", err)
		return fallback
	}
	if c.ID == "" {
		c.ID = "unknown_candidate"
	}
	if c.Name == "" {
		c.Name = "Candidate"
	}
	return c
}

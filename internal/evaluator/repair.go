package evaluator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// turnGrade is the wire shape the observer rubric asks for. Alternate key
// names seen in the wild (rating/notes) are accepted.
type turnGrade struct {
	Summary    string          `json:"candidate_action_summary"`
	Grade      string          `json:"grade"`
	Category   string          `json:"category"`
	Score      json.RawMessage `json:"score"`
	Rating     json.RawMessage `json:"rating"`
	Reasoning  string          `json:"reasoning"`
	Notes      string          `json:"notes"`
	Confidence float64         `json:"confidence"`
}

var firstObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// stripFences removes markdown code fences around a JSON payload.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[3:]
	}
	if i := strings.Index(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// parseGrade runs the repair chain over raw model output: strict parse,
// fence strip, first top-level object, then a permissive repair pass.
// Returns an error only when every attempt fails.
func parseGrade(raw string) (*turnGrade, error) {
	attempts := []string{strings.TrimSpace(raw)}

	if stripped := stripFences(raw); stripped != attempts[0] {
		attempts = append(attempts, stripped)
	}
	if match := firstObjectRe.FindString(strings.ReplaceAll(raw, "\n", " ")); match != "" {
		attempts = append(attempts, match)
	}

	var lastErr error
	for _, attempt := range attempts {
		var grade turnGrade
		if err := json.Unmarshal([]byte(attempt), &grade); err == nil {
			return &grade, nil
		} else {
			lastErr = err
		}

		repaired, err := jsonrepair.JSONRepair(attempt)
		if err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal([]byte(repaired), &grade); err == nil {
			return &grade, nil
		} else {
			lastErr = err
		}
	}

	return nil, fmt.Errorf("all parse attempts failed: %w", lastErr)
}

// score extracts a clamped 0-10 score, preferring "score" over "rating".
// Numbers arriving as JSON strings are tolerated.
func (g *turnGrade) score() float64 {
	for _, raw := range []json.RawMessage{g.Score, g.Rating} {
		if len(raw) == 0 {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return clampScore(f)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f); err == nil {
				return clampScore(f)
			}
		}
	}
	return 0
}

func clampScore(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 10 {
		return 10
	}
	return f
}

// reasoning returns the best available reasoning text.
func (g *turnGrade) reasoning() string {
	if g.Reasoning != "" {
		return g.Reasoning
	}
	if g.Notes != "" {
		return g.Notes
	}
	return "No reasoning provided."
}

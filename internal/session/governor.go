package session

import (
	"log/slog"
	"strings"
	"sync"
)

// defaultRiskKeywords immediately fail the safety check on any match.
var defaultRiskKeywords = []string{"suicide", "bomb", "kill", "illegal"}

// defaultConfidenceThreshold is the floor below which a turn counts
// toward the low-confidence streak.
const defaultConfidenceThreshold = 0.4

// maxLowConfidenceStreak is the streak length that trips the governor.
const maxLowConfidenceStreak = 3

// Governor is the safety valve: it scans each turn for high-risk keywords
// and tracks a rolling streak of consecutive low-confidence turns.
type Governor struct {
	keywords  []string
	threshold float64

	mu     sync.Mutex
	streak int
}

// NewGovernor creates a Governor. Empty keywords or a zero threshold fall
// back to the defaults.
func NewGovernor(keywords []string, threshold float64) *Governor {
	if len(keywords) == 0 {
		keywords = defaultRiskKeywords
	}
	if threshold <= 0 {
		threshold = defaultConfidenceThreshold
	}
	return &Governor{keywords: keywords, threshold: threshold}
}

// Check returns true when the session may continue. Any keyword match
// fails immediately regardless of confidence. A low-confidence turn grows
// the streak; the turn that brings the streak to three itself fails. A
// turn at or above the threshold resets the streak.
func (g *Governor) Check(transcript string, confidence float64) bool {
	lowered := strings.ToLower(transcript)
	for _, word := range g.keywords {
		if strings.Contains(lowered, word) {
			slog.Warn("governor tripped on high-risk keyword", "keyword", word)
			return false
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if confidence < g.threshold {
		g.streak++
		slog.Debug("low confidence turn", "confidence", confidence, "streak", g.streak)
		if g.streak >= maxLowConfidenceStreak {
			slog.Warn("governor tripped on low-confidence streak", "streak", g.streak)
			return false
		}
		return true
	}

	g.streak = 0
	return true
}

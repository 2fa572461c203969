package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoaderGetKnownScenario(t *testing.T) {
	l, err := NewLoader()
	if err != nil {
		t.Fatal(err)
	}

	s := l.Get("backend-db-lock")
	if s == nil || s.ID != "backend-db-lock" {
		t.Fatalf("expected backend-db-lock, got %+v", s)
	}
	if s.HiringManager.Name == "" || s.Stakeholder.Tone == "" {
		t.Error("persona defaults not applied")
	}
}

func TestLoaderFallsBackToDefault(t *testing.T) {
	l, err := NewLoader()
	if err != nil {
		t.Fatal(err)
	}

	s := l.Get("no-such-scenario")
	if s == nil || s.ID != DefaultScenarioID {
		t.Fatalf("expected fallback to %s, got %+v", DefaultScenarioID, s)
	}
}

func TestLoadCandidateMissingFile(t *testing.T) {
	c := LoadCandidate(filepath.Join(t.TempDir(), "nope.json"))
	if c.Name != "Candidate" || c.ID != "unknown_candidate" {
		t.Errorf("expected generic defaults, got %+v", c)
	}
}

func TestLoadCandidateFromAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.json")
	data := `{"candidate_id": "c-42", "name": "Riley", "field": "devops", "scenario_id": "devops-redis-latency"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c := LoadCandidate(path)
	if c.Name != "Riley" || c.ID != "c-42" || c.ScenarioID != "devops-redis-latency" {
		t.Errorf("candidate not loaded: %+v", c)
	}
}

func TestOpeningLinePersonalization(t *testing.T) {
	l, _ := NewLoader()
	s := l.Get(DefaultScenarioID)

	named := OpeningLine(s, Candidate{Name: "Riley"})
	if !strings.Contains(named, "Riley") {
		t.Errorf("expected personalized opening, got %q", named)
	}

	generic := OpeningLine(s, Candidate{Name: "Candidate"})
	if strings.Contains(generic, "Candidate,") {
		t.Errorf("generic opening should not address a placeholder name: %q", generic)
	}
}

func TestCrisisFallbackAlwaysNonEmpty(t *testing.T) {
	for _, domain := range []string{"devops", "backend", "cybersecurity", "unknown"} {
		if CrisisFallback(domain) == "" {
			t.Errorf("empty fallback for domain %s", domain)
		}
	}
}

func TestCrisisPromptAddressesCandidate(t *testing.T) {
	p := CrisisPrompt("devops", "Riley")
	if !strings.Contains(p, "Riley") {
		t.Error("prompt should address the candidate by name")
	}
	if strings.Contains(CrisisPrompt("devops", "Candidate"), "Address the candidate") {
		t.Error("placeholder name must not be used for personalization")
	}
}

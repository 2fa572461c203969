package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/aegisforge/internal/types"
)

// Store persists report artifacts under root/sessions/<sessionID>/.
type Store struct {
	root string
}

// NewStore creates a file-backed report store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) sessionDir(id types.SessionID) string {
	return filepath.Join(s.root, "sessions", string(id))
}

func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveFSIR writes the machine-readable report as fsir_<session>.json.
func (s *Store) SaveFSIR(fsir *FSIR, sessionID types.SessionID) error {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return s.writeJSON(filepath.Join(dir, fmt.Sprintf("fsir_%s.json", sessionID)), fsir)
}

// SaveEvaluations writes the raw evaluation list for later re-rendering.
func (s *Store) SaveEvaluations(sessionID types.SessionID, evals []types.Evaluation) error {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return s.writeJSON(filepath.Join(dir, "evaluations.json"), evals)
}

// LoadEvaluations reads a previously persisted evaluation list.
func (s *Store) LoadEvaluations(sessionID types.SessionID) ([]types.Evaluation, error) {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(sessionID), "evaluations.json"))
	if err != nil {
		return nil, fmt.Errorf("read evaluations: %w", err)
	}
	var evals []types.Evaluation
	if err := json.Unmarshal(data, &evals); err != nil {
		return nil, fmt.Errorf("unmarshal evaluations: %w", err)
	}
	return evals, nil
}

// SaveRendered writes the rendered document bytes next to the JSON report.
func (s *Store) SaveRendered(sessionID types.SessionID, data []byte, ext string) error {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("fsir_%s%s", sessionID, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rendered report: %w", err)
	}
	return nil
}

// TextRenderer is the built-in Renderer. Real deployments swap in a PDF
// collaborator behind the same interface.
type TextRenderer struct{}

// Render produces a plain-text document from the report fields.
func (TextRenderer) Render(_ context.Context, r *types.CompositeReport) ([]byte, error) {
	var b []byte
	add := func(format string, args ...any) {
		b = append(b, fmt.Sprintf(format, args...)...)
	}

	add("FINAL STRUCTURED INTERVIEW REPORT\n")
	add("Session:   %s\n", r.SessionID)
	add("Candidate: %s\n", r.CandidateID)
	add("Decision:  %s\n", r.Decision)
	add("Score:     %d/100\n\n", r.DisplayScore())
	add("%s\n\n", r.Summary)

	if len(r.Breakdown) > 0 {
		add("BREAKDOWN\n")
		for _, row := range r.Breakdown {
			add("  [%s] %.1f  %s\n", row.Category, row.Score, row.Reasoning)
		}
		add("\n")
	}

	if len(r.Timeline) > 0 {
		add("TIMELINE\n")
		for _, entry := range r.Timeline {
			add("  %6s  %-16s %-22s %s\n", entry.Time, entry.Actor, entry.Kind, entry.Details)
		}
	}
	return b, nil
}

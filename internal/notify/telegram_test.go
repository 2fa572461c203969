package notify

import (
	"strings"
	"testing"

	"github.com/user/aegisforge/internal/report"
	"github.com/user/aegisforge/internal/types"
)

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestSummarize(t *testing.T) {
	fsir := report.BuildFSIR(&types.CompositeReport{
		SessionID:    "sess-1",
		CandidateID:  "cand-1",
		OverallScore: 8.2,
		Evaluated:    6,
		Decision:     report.DecisionAdvance,
	}, nil, nil, "")

	got := summarize(fsir)
	for _, want := range []string{"cand-1", report.DecisionAdvance, "82/100"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

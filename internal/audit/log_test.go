package audit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/user/aegisforge/internal/types"
)

func TestExportPreservesInsertionOrder(t *testing.T) {
	log := New("sess-1", "cand-1")

	for i := 0; i < 50; i++ {
		log.LogEvent("System", "TRANSCRIPT", fmt.Sprintf("event-%d", i), nil)
	}

	events := log.Export()
	if len(events) != 50 {
		t.Fatalf("expected 50 events, got %d", len(events))
	}
	for i, event := range events {
		want := fmt.Sprintf("event-%d", i)
		if event.Details != want {
			t.Errorf("event %d: expected details %q, got %q", i, want, event.Details)
		}
	}
}

func TestExportReturnsStableSnapshot(t *testing.T) {
	log := New("sess-1", "cand-1")
	log.LogEvent("System", types.KindInterviewStart, "started", nil)

	snapshot := log.Export()
	log.LogEvent("System", types.KindInterviewEnd, "ended", nil)

	if len(snapshot) != 1 {
		t.Errorf("snapshot grew after later append: len=%d", len(snapshot))
	}
	if len(log.Export()) != 2 {
		t.Errorf("expected 2 events in fresh export, got %d", len(log.Export()))
	}
}

func TestLogEventNilMetadata(t *testing.T) {
	log := New("sess-1", "cand-1")
	log.LogEvent("Candidate", types.KindTranscript, "hello", nil)
	log.LogEvent("Candidate", types.KindTranscript, "world", map[string]any{"confidence": 0.9})

	events := log.Export()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Metadata["confidence"] != 0.9 {
		t.Errorf("metadata not preserved: %v", events[1].Metadata)
	}
}

func TestConcurrentAppends(t *testing.T) {
	log := New("sess-1", "cand-1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				log.LogEvent("Agent", types.KindTranscript, "turn", nil)
			}
		}()
	}
	wg.Wait()

	if got := len(log.Export()); got != 200 {
		t.Errorf("expected 200 events, got %d", got)
	}
}

func TestTimestampsMonotonic(t *testing.T) {
	log := New("sess-1", "cand-1")
	log.LogEvent("System", types.KindInterviewStart, "a", nil)
	time.Sleep(5 * time.Millisecond)
	log.LogEvent("System", types.KindCrisisTriggered, "b", nil)

	events := log.Export()
	if events[1].Timestamp < events[0].Timestamp {
		t.Errorf("timestamps went backwards: %f then %f", events[0].Timestamp, events[1].Timestamp)
	}
}

func TestWriteAndReadJSONL(t *testing.T) {
	dir := t.TempDir()
	log := New("sess-jsonl", "cand-1")
	log.LogEvent("System", types.KindInterviewStart, "started", nil)
	log.LogEvent("MoleAgent", types.KindBaitOffered, "Bait: admin key", map[string]any{"bait": "admin key"})

	if err := log.WriteJSONL(dir); err != nil {
		t.Fatal(err)
	}

	events, err := ReadJSONL(dir, "sess-jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Kind != types.KindBaitOffered {
		t.Errorf("expected BAIT_OFFERED, got %s", events[1].Kind)
	}
	if events[1].Metadata["bait"] != "admin key" {
		t.Errorf("metadata lost in round trip: %v", events[1].Metadata)
	}
}

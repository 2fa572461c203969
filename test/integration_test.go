//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/user/aegisforge/internal/report"
	"github.com/user/aegisforge/internal/scenario"
	"github.com/user/aegisforge/internal/session"
	"github.com/user/aegisforge/internal/signal"
	"github.com/user/aegisforge/internal/timers"
	"github.com/user/aegisforge/pkg/llm"
	"github.com/user/aegisforge/pkg/llm/openai"
)

const gradeJSON = `{"grade":"PASS","score":8,"reasoning":"solid triage","confidence":0.9}`

// fakeOpenAI answers Complete with JSON and Stream with a short SSE body,
// always carrying valid grade JSON so every consumer is satisfied.
func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", gradeJSON)
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": gradeJSON}},
			},
		})
	}))
}

func TestInterviewOverWebsocket(t *testing.T) {
	llmSrv := fakeOpenAI(t)
	defer llmSrv.Close()

	provider := openai.New(&llm.Config{BaseURL: llmSrv.URL, APIKey: "test", Model: "test-model"})

	loader, err := scenario.NewLoader()
	if err != nil {
		t.Fatal(err)
	}

	cfg := session.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.GoodbyeTimeout = 2 * time.Second
	cfg.Clock = timers.ClockConfig{MaxDuration: time.Hour, WarningAt: 30 * time.Minute}
	cfg.Crisis = timers.CrisisConfig{FirstDelay: time.Hour, SecondDelay: time.Hour}
	cfg.Pressure = timers.PressureConfig{Grace: time.Hour, MinInterval: time.Hour, MaxInterval: 2 * time.Hour}
	cfg.Mole = timers.MoleConfig{MinDelay: time.Hour, MaxDelay: 2 * time.Hour}

	coords := make(chan *session.Coordinator, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room, err := signal.AcceptRoom(w, r)
		if err != nil {
			t.Errorf("accept room: %v", err)
			return
		}
		coord, err := session.New(cfg, loader.Get(scenario.DefaultScenarioID),
			scenario.Candidate{ID: "cand-it", Name: "Riley"}, room, provider, report.TextRenderer{}, nil)
		if err != nil {
			t.Errorf("new session: %v", err)
			return
		}
		coords <- coord
		coord.Run(context.Background())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	send := func(text string) {
		frame, _ := json.Marshal(map[string]any{
			"type":       signal.TypeTranscript,
			"text":       text,
			"speaker":    "candidate",
			"confidence": 0.95,
		})
		if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
			t.Fatal(err)
		}
	}

	send("First I'd pull the redis slow log and check for hot keys.")
	send("Okay, can we end the interview now?")

	// Drain outbound frames until the end signal arrives.
	sawEnd := false
	for !sawEnd {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var frame struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(payload, &frame) == nil && frame.Type == signal.TypeInterviewEnd {
			if frame.Reason != "user_requested" {
				t.Errorf("unexpected end reason %q", frame.Reason)
			}
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Fatal("never received the interview end signal")
	}

	coord := <-coords
	select {
	case <-coord.Done():
	case <-ctx.Done():
		t.Fatal("session did not finish")
	}

	fsir := coord.Report()
	if fsir == nil {
		t.Fatal("no report produced")
	}
	if fsir.Decision != report.DecisionAdvance {
		t.Errorf("expected ADVANCE for all-PASS grades, got %s", fsir.Decision)
	}

	dir := filepath.Join(cfg.DataDir, "sessions", string(coord.ID()))
	if _, err := os.Stat(filepath.Join(dir, "events.jsonl")); err != nil {
		t.Errorf("audit log not persisted: %v", err)
	}
}

package timers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/aegisforge/internal/audit"
	"github.com/user/aegisforge/internal/convo"
	"github.com/user/aegisforge/internal/types"
	"github.com/user/aegisforge/pkg/llm"
)

// fakeRoom records outbound payloads and spoken lines.
type fakeRoom struct {
	mu       sync.Mutex
	payloads [][]byte
	spoken   []string
	sendErr  error
}

func (f *fakeRoom) SendData(_ context.Context, payload []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()
	return nil
}

func (f *fakeRoom) Say(_ context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeRoom) Transcripts() <-chan types.Transcript { return nil }
func (f *fakeRoom) Data() <-chan []byte                  { return nil }
func (f *fakeRoom) Close() error                         { return nil }

func (f *fakeRoom) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeCompleter struct {
	content string
	err     error
	calls   atomic.Int32
}

func (f *fakeCompleter) Complete(context.Context, []llm.Message) (*llm.Response, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func newConvo(t *testing.T) *convo.Context {
	t.Helper()
	c, err := convo.New("gpt-4", 8000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func countKind(log *audit.Log, kind string) int {
	n := 0
	for _, event := range log.Export() {
		if event.Kind == kind {
			n++
		}
	}
	return n
}

func TestCrisisTwoStageSchedule(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Shutdown(time.Second)

	log := audit.New("sess-1", "cand-1")
	room := &fakeRoom{}
	provider := &fakeCompleter{content: "ALERT: disk full. Fix this!"}
	crisis := NewCrisis(CrisisConfig{FirstDelay: 10 * time.Millisecond, SecondDelay: 20 * time.Millisecond},
		provider, newConvo(t), room, log, "devops", "Riley")

	crisis.Start(reg)

	waitFor(t, func() bool { return countKind(log, types.KindCrisisTriggered) == 2 })

	// Each firing sends a popup and a broadcast.
	if room.sent() != 4 {
		t.Errorf("expected 4 outbound payloads, got %d", room.sent())
	}
	if provider.calls.Load() != 2 {
		t.Errorf("expected 2 generation calls, got %d", provider.calls.Load())
	}
}

func TestCrisisFallbackOnGenerationFailure(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Shutdown(time.Second)

	log := audit.New("sess-1", "cand-1")
	convoCtx := newConvo(t)
	provider := &fakeCompleter{err: fmt.Errorf("rate limited")}
	crisis := NewCrisis(CrisisConfig{FirstDelay: 5 * time.Millisecond, SecondDelay: time.Hour},
		provider, convoCtx, &fakeRoom{}, log, "devops", "")

	crisis.Start(reg)
	waitFor(t, func() bool { return countKind(log, types.KindCrisisTriggered) == 1 })

	events := log.Export()
	var question string
	for _, event := range events {
		if event.Kind == types.KindCrisisTriggered {
			question, _ = event.Metadata["question"].(string)
		}
	}
	if question == "" {
		t.Fatal("crisis must fall back to the static bank, not go silent")
	}
	// The injected pivot lands in the shared context.
	if convoCtx.Len() != 1 {
		t.Errorf("expected 1 injected message, got %d", convoCtx.Len())
	}
}

func TestCrisisCancelStopsSecondStage(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Shutdown(time.Second)

	log := audit.New("sess-1", "cand-1")
	crisis := NewCrisis(CrisisConfig{FirstDelay: 5 * time.Millisecond, SecondDelay: time.Hour},
		&fakeCompleter{content: "ALERT"}, newConvo(t), &fakeRoom{}, log, "devops", "")

	crisis.Start(reg)
	waitFor(t, func() bool { return countKind(log, types.KindCrisisTriggered) == 1 })

	crisis.Cancel()
	waitFor(t, func() bool { return countKind(log, types.KindTimerCancelled) == 1 })

	if got := countKind(log, types.KindCrisisTriggered); got != 1 {
		t.Errorf("second stage fired after cancel: %d triggers", got)
	}
}

func TestCrisisCancelRacesFirstFiring(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Shutdown(time.Second)

	log := audit.New("sess-1", "cand-1")
	crisis := NewCrisis(CrisisConfig{FirstDelay: time.Millisecond, SecondDelay: time.Hour},
		&fakeCompleter{content: "ALERT"}, newConvo(t), &fakeRoom{}, log, "devops", "")

	// Cancel concurrently with the first firing, which arms the second
	// stage from its own goroutine.
	crisis.Start(reg)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				crisis.Cancel()
				time.Sleep(50 * time.Microsecond)
			}
		}()
	}
	wg.Wait()

	if got := countKind(log, types.KindCrisisTriggered); got > 1 {
		t.Errorf("second stage must never fire once cancelled, got %d triggers", got)
	}
}

func TestClockWarningThenTimeout(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Shutdown(time.Second)

	var warned, timedOut atomic.Int32
	clock := NewClock(ClockConfig{MaxDuration: 40 * time.Millisecond, WarningAt: 10 * time.Millisecond},
		audit.New("sess-1", "cand-1"),
		func(context.Context) { warned.Add(1) },
		func(context.Context) { timedOut.Add(1) },
	)
	clock.Start(reg)

	waitFor(t, func() bool { return timedOut.Load() == 1 })
	if warned.Load() != 1 {
		t.Errorf("expected one warning, got %d", warned.Load())
	}
}

func TestClockCancelledEarly(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Shutdown(time.Second)

	var timedOut atomic.Int32
	log := audit.New("sess-1", "cand-1")
	clock := NewClock(ClockConfig{MaxDuration: time.Hour, WarningAt: 30 * time.Minute},
		log, func(context.Context) {}, func(context.Context) { timedOut.Add(1) })
	clock.Start(reg)

	clock.Cancel()
	waitFor(t, func() bool { return countKind(log, types.KindTimerCancelled) == 2 })

	if timedOut.Load() != 0 {
		t.Error("cancelled clock must not time out")
	}
}

func TestPressureLoopInterjects(t *testing.T) {
	reg := NewRegistry(context.Background())

	log := audit.New("sess-1", "cand-1")
	room := &fakeRoom{}
	convoCtx := newConvo(t)
	pressure := NewPressure(PressureConfig{
		Grace:       time.Millisecond,
		MinInterval: 2 * time.Millisecond,
		MaxInterval: 4 * time.Millisecond,
		Chance:      1.0,
	}, "Jordan Vale", []string{"Fix it now!"}, convoCtx, room, log)

	pressure.Start(reg)
	waitFor(t, func() bool { return countKind(log, types.KindInterruption) >= 3 })

	reg.Shutdown(time.Second)
	after := countKind(log, types.KindInterruption)
	time.Sleep(20 * time.Millisecond)

	if got := countKind(log, types.KindInterruption); got != after {
		t.Error("pressure loop kept running after shutdown")
	}
	if convoCtx.Len() < 3 {
		t.Errorf("interjections must land in the shared context, got %d messages", convoCtx.Len())
	}
}

func TestPressureCancellationLogged(t *testing.T) {
	reg := NewRegistry(context.Background())

	log := audit.New("sess-1", "cand-1")
	pressure := NewPressure(PressureConfig{Grace: time.Hour, MinInterval: time.Hour, MaxInterval: 2 * time.Hour},
		"Jordan Vale", []string{"Fix it now!"}, newConvo(t), &fakeRoom{}, log)

	pressure.Start(reg)
	reg.Shutdown(time.Second)

	if got := countKind(log, types.KindTimerCancelled); got != 1 {
		t.Errorf("cancelled loop must log exactly once, got %d", got)
	}
	if countKind(log, types.KindInterruption) != 0 {
		t.Error("no interjection may fire during the grace period")
	}
}

func TestMoleFiresAtMostOnce(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Shutdown(time.Second)

	log := audit.New("sess-1", "cand-1")
	mole := NewMole(MoleConfig{MinDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond},
		[]string{"want the admin key?"}, log)

	mole.Start(reg)
	waitFor(t, func() bool { return mole.Fired() })
	time.Sleep(30 * time.Millisecond)

	if got := countKind(log, types.KindBaitOffered); got != 1 {
		t.Errorf("mole must offer bait exactly once, got %d", got)
	}
	// Bait is logged, never injected into the conversation.
	for _, event := range log.Export() {
		if event.Kind == types.KindBaitOffered && event.Metadata["bait"] == "" {
			t.Error("bait metadata missing")
		}
	}
}

func TestMoleCancelledBeforeStrike(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Shutdown(time.Second)

	log := audit.New("sess-1", "cand-1")
	mole := NewMole(MoleConfig{MinDelay: time.Hour, MaxDelay: 2 * time.Hour}, []string{"bait"}, log)

	mole.Start(reg)
	mole.Cancel()
	waitFor(t, func() bool { return countKind(log, types.KindTimerCancelled) == 1 })

	if countKind(log, types.KindBaitOffered) != 0 {
		t.Error("cancelled mole must not offer bait")
	}
}

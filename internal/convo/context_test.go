package convo

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c, err := New("gpt-4", 8000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAppendPreservesOrder(t *testing.T) {
	c := newTestContext(t)
	c.Append("system", "rubric")
	c.Append("user", "first")
	c.Append("assistant", "second")

	msgs := c.Snapshot()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Content != "first" || msgs[2].Content != "second" {
		t.Errorf("order not preserved: %v", msgs)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	c := newTestContext(t)
	c.Append("user", "hello")

	snap := c.Snapshot()
	snap[0].Content = "mutated"

	if c.Snapshot()[0].Content != "hello" {
		t.Error("snapshot mutation leaked into context")
	}
}

func TestReplaceSystem(t *testing.T) {
	c := newTestContext(t)
	c.Append("system", "original instructions")
	c.Append("user", "hello")

	before := c.Snapshot()
	c.ReplaceSystem("personalized instructions")

	// The pre-replace snapshot must be untouched.
	if before[0].Content != "original instructions" {
		t.Error("earlier snapshot was mutated by ReplaceSystem")
	}

	after := c.Snapshot()
	if after[0].Content != "personalized instructions" {
		t.Errorf("system message not replaced: %q", after[0].Content)
	}
	if len(after) != 2 || after[1].Content != "hello" {
		t.Errorf("history damaged by replace: %v", after)
	}
}

func TestReplaceSystemPrependsWhenMissing(t *testing.T) {
	c := newTestContext(t)
	c.Append("user", "hello")

	c.ReplaceSystem("late system prompt")

	msgs := c.Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "late system prompt" {
		t.Errorf("system message not prepended: %v", msgs[0])
	}
}

func TestWindowKeepsSystemAndNewest(t *testing.T) {
	c, err := New("gpt-4", 120, 20)
	if err != nil {
		t.Fatal(err)
	}
	c.Append("system", "rubric")
	for i := 0; i < 50; i++ {
		c.Append("user", fmt.Sprintf("turn number %d with some padding words", i))
	}

	window := c.Window()
	if window[0].Role != "system" {
		t.Fatal("window must start with the system message")
	}
	if len(window) >= 51 {
		t.Errorf("window did not trim: %d messages", len(window))
	}
	// The newest message always survives trimming.
	last := window[len(window)-1]
	if !strings.Contains(last.Content, "turn number 49") {
		t.Errorf("newest message missing from window: %q", last.Content)
	}
}

func TestConcurrentAppendAndRead(t *testing.T) {
	c := newTestContext(t)
	c.Append("system", "rubric")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Append("user", "msg")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := c.Len(); got != 251 {
		t.Errorf("expected 251 messages, got %d", got)
	}
}

// Package convo holds the shared conversation context every persona reads
// and some append to.
package convo

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/aegisforge/pkg/llm"
)

// Context is an ordered, append-only sequence of role-tagged messages.
// Appends are serialized by a mutex; readers get copied snapshots. The one
// non-append operation is ReplaceSystem, implemented as copy-then-swap so a
// half-written edit is never visible.
type Context struct {
	mu       sync.RWMutex
	messages []llm.Message

	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// New creates a Context with a token budget for prompt windows. model
// selects the tokenizer; unknown models fall back to cl100k_base.
func New(model string, maxTokens, reserve int) (*Context, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Context{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (c *Context) countTokens(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}

// Append adds a message to the end of the history.
func (c *Context) Append(role, content string) {
	c.mu.Lock()
	c.messages = append(c.messages, llm.Message{Role: role, Content: content})
	c.mu.Unlock()
}

// Snapshot returns a copy of the full history in order.
func (c *Context) Snapshot() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the current message count.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// ReplaceSystem swaps the content of the first system message, used to
// inject late-arriving personalized instructions. The history slice is
// copied, mutated, then swapped under the lock. If no system message
// exists the content is prepended instead.
func (c *Context) ReplaceSystem(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, msg := range c.messages {
		if msg.Role == "system" {
			next := make([]llm.Message, len(c.messages))
			copy(next, c.messages)
			next[i] = llm.Message{Role: "system", Content: content}
			c.messages = next
			return
		}
	}

	next := make([]llm.Message, 0, len(c.messages)+1)
	next = append(next, llm.Message{Role: "system", Content: content})
	next = append(next, c.messages...)
	c.messages = next
}

// Window assembles a token-budgeted prompt: the first system message plus
// as many of the most recent messages as fit in the input budget, in
// chronological order.
func (c *Context) Window() []llm.Message {
	history := c.Snapshot()
	budget := c.maxTokens - c.reserve

	var system *llm.Message
	rest := history
	if len(history) > 0 && history[0].Role == "system" {
		system = &history[0]
		rest = history[1:]
		budget -= c.countTokens(system.Content)
	}

	// Walk newest-first until the budget runs out.
	used := 0
	start := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		tokens := c.countTokens(rest[i].Content)
		if used+tokens > budget {
			break
		}
		used += tokens
		start = i
	}

	window := make([]llm.Message, 0, 1+len(rest)-start)
	if system != nil {
		window = append(window, *system)
	}
	window = append(window, rest[start:]...)
	return window
}

package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/user/aegisforge/pkg/llm"
)

// streamChunk covers every chunk shape observed across OpenAI-compatible
// backends: the standard nested choices[].delta.content, a flat top-level
// content field, and a bare top-level delta object.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Content string `json:"content"`
	Delta   *struct {
		Content string `json:"content"`
	} `json:"delta"`
}

// normalizeChunk maps a raw SSE data payload into a canonical Delta.
// Returns false when the chunk carries no text.
func normalizeChunk(raw []byte) (llm.Delta, bool) {
	var chunk streamChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return llm.Delta{}, false
	}
	if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
		return llm.Delta{Content: chunk.Choices[0].Delta.Content}, true
	}
	if chunk.Content != "" {
		return llm.Delta{Content: chunk.Content}, true
	}
	if chunk.Delta != nil && chunk.Delta.Content != "" {
		return llm.Delta{Content: chunk.Delta.Content}, true
	}
	return llm.Delta{}, false
}

// Stream sends a chat completion request with stream=true and returns a
// channel of normalized deltas. The channel is closed when the server ends
// the stream or the context is cancelled.
func (c *Client) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Delta, error) {
	req, err := c.buildRequest(ctx, messages, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == "[DONE]" {
				if payload == "[DONE]" {
					return
				}
				continue
			}
			delta, ok := normalizeChunk([]byte(payload))
			if !ok {
				continue
			}
			select {
			case ch <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

package llmgateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lecturecast/engine/internal/httputil"
)

// AnthropicClient streams completions from the Anthropic Messages API via
// raw SSE parsing, adapted near-verbatim from the teacher's
// pipeline.AnthropicLLMClient/consumeAnthropicStream: same request shape,
// same "event: "/"data: " line-prefix scanner, same content_block_delta
// discrimination. Kept as a second vendor backend so the Router[T] dispatch
// it feeds has more than one registered name to route between.
type AnthropicClient struct {
	apiKey string
	url    string
	client *http.Client
}

// NewAnthropicClient creates an Anthropic streaming client.
func NewAnthropicClient(apiKey, url string, poolSize int) *AnthropicClient {
	if url == "" {
		url = "https://api.anthropic.com"
	}
	return &AnthropicClient{
		apiKey: apiKey,
		url:    url,
		client: httputil.NewPooledClient(poolSize, 120*time.Second),
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicDeltaEvent struct {
	Delta anthropicDelta `json:"delta"`
}

type anthropicDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (c *AnthropicClient) do(ctx context.Context, req Request, onDelta DeltaFunc) (*Result, error) {
	start := time.Now()

	body, err := json.Marshal(anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Stream:    true,
		System:    req.SystemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: req.UserContent}},
	})
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: create anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("llmgateway: anthropic status %d: %s", resp.StatusCode, errBody)
	}

	text := consumeAnthropicStream(resp.Body, onDelta)
	return &Result{
		Content:   text,
		Model:     req.Model,
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}, nil
}

// Complete performs a streamed request but returns only the final text,
// discarding the per-delta callback.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Result, error) {
	return c.do(ctx, req, nil)
}

// Stream performs a streamed request, forwarding each delta to onDelta.
func (c *AnthropicClient) Stream(ctx context.Context, req Request, onDelta DeltaFunc) (*Result, error) {
	return c.do(ctx, req, onDelta)
}

func consumeAnthropicStream(body io.Reader, onDelta DeltaFunc) string {
	var text strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var eventType string

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if eventType == "message_stop" {
			break
		}
		if eventType != "content_block_delta" {
			continue
		}

		var delta anthropicDeltaEvent
		if json.Unmarshal([]byte(data), &delta) != nil {
			continue
		}
		if delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
			continue
		}
		if onDelta != nil {
			onDelta(delta.Delta.Text)
		}
		text.WriteString(delta.Delta.Text)
	}

	return text.String()
}

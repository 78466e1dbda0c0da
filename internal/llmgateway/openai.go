package llmgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/responses"
)

// OpenAIClient drives the Responses API directly instead of through the
// openai-agents-go Runner the teacher uses in pipeline.AgentLLM. The
// gateway needs per-purpose reasoning effort, which the Runner's
// modelsettings abstraction doesn't expose; the event shape consumed here
// (response.output_text.delta / Delta) is the same one the teacher's
// handleStreamEvent unwraps from agents.RawResponsesStreamEvent, since the
// Runner is itself backed by this same Responses API under the hood.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a client against the given base URL (empty for
// the default OpenAI endpoint, non-empty for an OpenAI-compatible gateway).
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) params(req Request) responses.ResponseNewParams {
	return responses.ResponseNewParams{
		Model: req.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(req.UserContent),
		},
		Instructions:    param.NewOpt(req.SystemPrompt),
		MaxOutputTokens: param.NewOpt(int64(req.MaxTokens)),
		Temperature:     param.NewOpt(req.Temperature),
		Reasoning: responses.ReasoningParam{
			Effort: responses.ReasoningEffort(req.Effort),
		},
	}
}

// Complete performs a non-streaming Responses API call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	resp, err := c.client.Responses.New(ctx, c.params(req))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: openai responses: %w", err)
	}

	var usage *Usage
	if resp.Usage.InputTokens != 0 || resp.Usage.OutputTokens != 0 {
		usage = &Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		}
	}

	return &Result{
		Content:   resp.OutputText(),
		Usage:     usage,
		Model:     req.Model,
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}, nil
}

// Stream performs a streaming Responses API call, forwarding each text
// delta to onDelta as it arrives. The discriminator mirrors the teacher's
// `raw.Data.Type == "response.output_text.delta"` check.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onDelta DeltaFunc) (*Result, error) {
	start := time.Now()
	stream := c.client.Responses.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	var text string
	for stream.Next() {
		event := stream.Current()
		if event.Type != "response.output_text.delta" {
			continue
		}
		delta := event.AsResponseOutputTextDelta().Delta
		if delta == "" {
			continue
		}
		if onDelta != nil {
			onDelta(delta)
		}
		text += delta
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("llmgateway: openai responses stream: %w", err)
	}

	return &Result{
		Content:   text,
		Model:     req.Model,
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}, nil
}

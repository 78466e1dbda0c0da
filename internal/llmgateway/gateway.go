// Package llmgateway provides a uniform request/stream interface to an
// external generative model with per-purpose model selection, grounded
// directly on the teacher's internal/pipeline.AgentLLM (purpose/engine
// resolution, streamed-chunk handling keyed on
// `Data.Type == "response.output_text.delta"`). Where the teacher routes
// by "engine" (an ASR/TTS/LLM vendor interchangeability concept), the
// gateway here routes by Purpose, exposing the same capability set
// `{complete, stream}` plus per-purpose model resolution.
package llmgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/lecturecast/engine/internal/router"
)

// Purpose selects the prompt depth, model, reasoning effort, and timeout
// for one LLM Gateway call.
type Purpose string

const (
	PurposeTranslation      Purpose = "translation"
	PurposeSummary          Purpose = "summary"
	PurposeSummaryTranslate Purpose = "summary_translate"
	PurposeUserTranslate    Purpose = "user_translate"
	PurposeVocabulary       Purpose = "vocabulary"
	PurposeReport           Purpose = "report"
)

// Effort is the per-purpose reasoning effort passed to the provider.
type Effort string

const (
	EffortMinimal Effort = "minimal"
	EffortLow     Effort = "low"
	EffortHigh    Effort = "high"
)

func effortFor(p Purpose) Effort {
	switch p {
	case PurposeSummary, PurposeVocabulary:
		return EffortLow
	case PurposeReport:
		return EffortHigh
	default:
		return EffortMinimal
	}
}

// DefaultMaxTokens returns the per-purpose default maxTokens.
func DefaultMaxTokens() map[Purpose]int {
	return map[Purpose]int{
		PurposeTranslation:      1500,
		PurposeSummary:          1500,
		PurposeSummaryTranslate: 1500,
		PurposeUserTranslate:    1500,
		PurposeVocabulary:       1500,
		PurposeReport:           8192,
	}
}

// DefaultTimeouts returns the per-purpose request timeout.
func DefaultTimeouts() map[Purpose]time.Duration {
	return map[Purpose]time.Duration{
		PurposeTranslation:      7 * time.Second,
		PurposeSummary:          15 * time.Second,
		PurposeSummaryTranslate: 7 * time.Second,
		PurposeUserTranslate:    7 * time.Second,
		PurposeVocabulary:       15 * time.Second,
		PurposeReport:           60 * time.Second,
	}
}

// Request is one LLM Gateway call.
type Request struct {
	Purpose      Purpose
	SystemPrompt string
	UserContent  string
	MaxTokens    int
	Model        string
	Effort       Effort
	Temperature  float64
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result is the outcome of a complete() or stream() call.
type Result struct {
	Content   string
	Usage     *Usage
	Model     string
	LatencyMs float64
}

// DeltaFunc receives each streamed text delta as it arrives.
type DeltaFunc func(delta string)

// Client is the capability set the gateway dispatches to: a uniform
// complete/stream pair "dynamic dispatch" design note.
type Client interface {
	Complete(ctx context.Context, req Request) (*Result, error)
	Stream(ctx context.Context, req Request, onDelta DeltaFunc) (*Result, error)
}

// ModelConfig resolves a purpose to a vendor and a model name.
type ModelConfig struct {
	Vendor string
	Model  string
}

// Gateway is the purpose-routed LLM entry point.
type Gateway struct {
	clients     *router.Router[Client]
	models      map[Purpose]ModelConfig
	maxTokens   map[Purpose]int
	timeouts    map[Purpose]time.Duration
	temperature float64
}

// New creates a Gateway. models must cover every Purpose used at runtime;
// the per-purpose maxTokens and timeouts are always the package defaults
// (DefaultMaxTokens, DefaultTimeouts).
func New(clients *router.Router[Client], models map[Purpose]ModelConfig) *Gateway {
	return &Gateway{
		clients:     clients,
		models:      models,
		maxTokens:   DefaultMaxTokens(),
		timeouts:    DefaultTimeouts(),
		temperature: 1.0, // GPT-5 family requires temperature 1.0
	}
}

func (g *Gateway) resolve(purpose Purpose, maxTokensOverride int) (Client, Request, time.Duration, error) {
	cfg, ok := g.models[purpose]
	if !ok {
		return nil, Request{}, 0, fmt.Errorf("llmgateway: no model configured for purpose %q", purpose)
	}
	client, err := g.clients.Route(cfg.Vendor)
	if err != nil {
		return nil, Request{}, 0, fmt.Errorf("llmgateway: %w", err)
	}

	maxTokens := maxTokensOverride
	if maxTokens <= 0 {
		maxTokens = g.maxTokens[purpose]
	}

	req := Request{
		Purpose:     purpose,
		MaxTokens:   maxTokens,
		Model:       cfg.Model,
		Effort:      effortFor(purpose),
		Temperature: g.temperature,
	}
	return client, req, g.timeouts[purpose], nil
}

// Complete performs a single non-streaming completion for purpose.
func (g *Gateway) Complete(ctx context.Context, purpose Purpose, systemPrompt, userContent string, maxTokensOverride int) (*Result, error) {
	client, req, timeout, err := g.resolve(purpose, maxTokensOverride)
	if err != nil {
		return nil, err
	}
	req.SystemPrompt = systemPrompt
	req.UserContent = userContent

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Content = CleanOutput(res.Content)
	return res, nil
}

// Stream performs a streaming completion for purpose, delivering deltas to
// onDelta as they arrive. Hygiene is applied once to the final accumulated
// text, never to individual deltas, so streamed content is never mutated
// mid-flight.
func (g *Gateway) Stream(ctx context.Context, purpose Purpose, systemPrompt, userContent string, maxTokensOverride int, onDelta DeltaFunc) (*Result, error) {
	client, req, timeout, err := g.resolve(purpose, maxTokensOverride)
	if err != nil {
		return nil, err
	}
	req.SystemPrompt = systemPrompt
	req.UserContent = userContent

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := client.Stream(ctx, req, onDelta)
	if err != nil {
		return nil, err
	}
	res.Content = CleanOutput(res.Content)
	return res, nil
}

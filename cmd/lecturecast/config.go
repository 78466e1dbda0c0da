package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/lecturecast/engine/internal/env"
	"github.com/lecturecast/engine/internal/llmgateway"
)

// tuning holds knobs loaded from lecturecast.json, mirroring the teacher's
// gateway.json split between deployment env vars (URLs, ports, keys) and
// slower-moving product knobs that live in a checked-in file.
type tuning struct {
	OpenAIURL          string `json:"openai_url"`
	OpenAIModel        string `json:"openai_model"`
	AnthropicURL       string `json:"anthropic_url"`
	AnthropicModel     string `json:"anthropic_model"`
	SummaryModel       string `json:"summary_model"`
	VocabularyModel    string `json:"vocabulary_model"`
	ReportModel        string `json:"report_model"`
	SummaryVendor      string `json:"summary_vendor"`
	VocabularyVendor   string `json:"vocabulary_vendor"`
	ReportVendor       string `json:"report_vendor"`
	TranslationVendor  string `json:"translation_vendor"`
}

func defaultTuning() tuning {
	return tuning{
		OpenAIURL:         "https://api.openai.com",
		OpenAIModel:       "gpt-5-mini",
		AnthropicURL:      "https://api.anthropic.com",
		AnthropicModel:    "claude-sonnet-4-5",
		SummaryModel:      "gpt-5-mini",
		VocabularyModel:   "gpt-5-mini",
		ReportModel:       "gpt-5",
		SummaryVendor:     "openai",
		VocabularyVendor:  "openai",
		ReportVendor:      "openai",
		TranslationVendor: "openai",
	}
}

func loadTuning(path string) tuning {
	t := defaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Info("no config file, using defaults", "path", path)
		return t
	}
	if err = json.Unmarshal(data, &t); err != nil {
		slog.Warn("bad config file, using defaults", "path", path, "error", err)
		return defaultTuning()
	}
	slog.Info("loaded config", "path", path)
	return t
}

// deployConfig holds env-var-driven deployment settings: vendor URLs,
// ports, credentials, and the ASR/summary/coalescer timing knobs
// names as environment overrides.
type deployConfig struct {
	port string

	deepgramURL    string
	deepgramAPIKey string
	dgModel        string
	dgEndpointing  int
	dgUtteranceEnd int
	dgInterim      bool

	openaiAPIKey    string
	anthropicAPIKey string

	summaryIntervalMs      int
	coalescerDebounceMs    int
	coalescerForceCommitMs int
}

func loadDeployConfig() deployConfig {
	return deployConfig{
		port:           env.Str("LECTURECAST_PORT", "8000"),
		deepgramURL:    env.Str("DG_URL", "wss://api.deepgram.com/v1/listen"),
		deepgramAPIKey: env.Str("DEEPGRAM_API_KEY", ""),
		dgModel:        env.Str("DG_MODEL", "nova-3"),
		dgEndpointing:  env.Int("DG_ENDPOINTING", 300),
		dgUtteranceEnd: env.Int("DG_UTTERANCE_END_MS", 1000),
		dgInterim:      env.Bool("DG_INTERIM", true),

		openaiAPIKey:    env.Str("OPENAI_API_KEY", ""),
		anthropicAPIKey: env.Str("ANTHROPIC_API_KEY", ""),

		summaryIntervalMs:      env.Int("SUMMARY_INTERVAL_MS", int(10*time.Minute/time.Millisecond)),
		coalescerDebounceMs:    env.Int("STREAM_COALESCER_DEBOUNCE_MS", 160),
		coalescerForceCommitMs: env.Int("STREAM_COALESCER_FORCE_COMMIT_MS", 1100),
	}
}

// purposeModels builds the per-Purpose vendor/model table from tuning,
// routed through whichever vendor the operator configured per purpose.
func purposeModels(t tuning) map[llmgateway.Purpose]llmgateway.ModelConfig {
	modelFor := func(vendor string) string {
		if vendor == "anthropic" {
			return t.AnthropicModel
		}
		return t.OpenAIModel
	}
	return map[llmgateway.Purpose]llmgateway.ModelConfig{
		llmgateway.PurposeTranslation:      {Vendor: t.TranslationVendor, Model: modelFor(t.TranslationVendor)},
		llmgateway.PurposeSummary:          {Vendor: t.SummaryVendor, Model: t.SummaryModel},
		llmgateway.PurposeSummaryTranslate: {Vendor: t.TranslationVendor, Model: modelFor(t.TranslationVendor)},
		llmgateway.PurposeUserTranslate:    {Vendor: t.TranslationVendor, Model: modelFor(t.TranslationVendor)},
		llmgateway.PurposeVocabulary:       {Vendor: t.VocabularyVendor, Model: t.VocabularyModel},
		llmgateway.PurposeReport:           {Vendor: t.ReportVendor, Model: t.ReportModel},
	}
}

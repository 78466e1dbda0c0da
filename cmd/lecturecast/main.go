// Command lecturecast runs the live-lecture speech-to-translation pipeline
// server: one WebSocket endpoint per lecture session, a health endpoint, and
// a Prometheus metrics endpoint. It is grounded on the teacher's
// cmd/gateway/main.go wiring style (env-driven config, a deps struct handed
// to registerRoutes, slog JSON logging, signal-driven graceful shutdown).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lecturecast/engine/internal/asrstream"
	"github.com/lecturecast/engine/internal/events"
	"github.com/lecturecast/engine/internal/httputil"
	"github.com/lecturecast/engine/internal/llmgateway"
	"github.com/lecturecast/engine/internal/orchestrator"
	"github.com/lecturecast/engine/internal/router"
	"github.com/lecturecast/engine/internal/telemetry"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	tune := loadTuning(os.Getenv("LECTURECAST_CONFIG"))
	cfg := loadDeployConfig()

	gw := buildGateway(tune, cfg)
	bus := events.NewBus()
	tel := telemetry.NewCollector(5*time.Second, 24*time.Hour)
	health := buildHealthRegistry(cfg)

	dial := func(cb asrstream.Callbacks) *asrstream.Adapter {
		return asrstream.New(asrstream.Config{
			URL:            cfg.deepgramURL,
			APIKey:         cfg.deepgramAPIKey,
			Model:          cfg.dgModel,
			Interim:        cfg.dgInterim,
			EndpointingMs:  cfg.dgEndpointing,
			UtteranceEndMs: cfg.dgUtteranceEnd,
			SmartFormat:    true,
			SampleRate:     16000,
			Channels:       1,
			Encoding:       "linear16",
		}, cb)
	}

	orcCfg := orchestrator.DefaultConfig()
	orcCfg.SummaryInterval = time.Duration(cfg.summaryIntervalMs) * time.Millisecond
	orcCfg.Coalescer.DebounceMs = time.Duration(cfg.coalescerDebounceMs) * time.Millisecond
	orcCfg.Coalescer.ForceCommitMs = time.Duration(cfg.coalescerForceCommitMs) * time.Millisecond

	orc := orchestrator.New(bus, gw, tel, health, dial, orcCfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus.StartSweep(ctx)
	tel.Start(ctx)

	mux := registerRoutes(orc, bus, tel, health)
	srv := &http.Server{Addr: ":" + cfg.port, Handler: mux}

	go func() {
		slog.Info("lecturecast: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("lecturecast: serve failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("lecturecast: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("lecturecast: shutdown error", "error", err)
	}
}

// buildGateway wires the OpenAI Responses client and the raw Anthropic SSE
// client behind a vendor router
func buildGateway(t tuning, cfg deployConfig) *llmgateway.Gateway {
	clients := map[string]llmgateway.Client{
		"openai":    llmgateway.NewOpenAIClient(cfg.openaiAPIKey, t.OpenAIURL),
		"anthropic": llmgateway.NewAnthropicClient(cfg.anthropicAPIKey, t.AnthropicURL, 8),
	}
	r := router.New[llmgateway.Client](clients, "openai")
	return llmgateway.New(r, purposeModels(t))
}

// buildHealthRegistry registers the checks an operator needs before trusting
// /healthz: outbound connectivity to the configured ASR and LLM vendors.
func buildHealthRegistry(cfg deployConfig) *telemetry.HealthRegistry {
	h := telemetry.NewHealthRegistry()
	client := httputil.NewPooledClient(4, 5*time.Second)

	h.Register("deepgram", func() error {
		if cfg.deepgramAPIKey == "" {
			return nil
		}
		return pingURL(client, "https://api.deepgram.com")
	}, nil, 1)

	h.Register("openai", func() error {
		if cfg.openaiAPIKey == "" {
			return nil
		}
		return pingURL(client, "https://api.openai.com")
	}, nil, 1)

	return h
}

func pingURL(client *http.Client, url string) error {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

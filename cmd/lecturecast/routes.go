package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lecturecast/engine/internal/events"
	"github.com/lecturecast/engine/internal/orchestrator"
	"github.com/lecturecast/engine/internal/telemetry"
	"github.com/lecturecast/engine/internal/ws"
)

// registerRoutes wires the three HTTP surfaces the service exposes, mirroring
// the teacher's registerRoutes(deps) pattern.
func registerRoutes(orc *orchestrator.Orchestrator, bus *events.Bus, tel *telemetry.Collector, health *telemetry.HealthRegistry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/ws/session", ws.NewHandler(orc, bus))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthzHandler(health))

	return mux
}

func healthzHandler(health *telemetry.HealthRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := health.Run()
		status := http.StatusOK
		for _, res := range results {
			if !res.Healthy {
				status = http.StatusServiceUnavailable
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(results)
	}
}

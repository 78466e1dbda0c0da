// Package ws exposes the lecture pipeline's command/event channel transport
// over a single WebSocket connection: inbound text frames
// carry Commands, outbound text frames carry Events. It is grounded on the
// teacher's ServeHTTP/runSession/processMessages read-loop shape and its
// newEventSender mutex-serialized writer, generalized from one call-center
// voice session (binary audio frames, TTS playback events) to one lecture
// session (binary PCM frames in, typed JSON events out).
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lecturecast/engine/internal/events"
	"github.com/lecturecast/engine/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades a single /ws/session connection and bridges it to the
// shared Orchestrator via the typed event bus.
type Handler struct {
	orc *orchestrator.Orchestrator
	bus *events.Bus
}

// NewHandler creates a Handler wired to orc, whose events are delivered via
// bus.Subscribe.
func NewHandler(orc *orchestrator.Orchestrator, bus *events.Bus) *Handler {
	return &Handler{orc: orc, bus: bus}
}

// ServeHTTP upgrades the connection and runs the session until the client
// disconnects or the server shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.runSession(r.Context(), conn)
}

func (h *Handler) runSession(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sendEvent := newEventSender(conn)
	sub := h.bus.Subscribe()
	go relayEvents(ctx, sub, sendEvent)

	slog.Info("ws: session connected", "remote", conn.RemoteAddr())
	h.processMessages(ctx, conn)
	slog.Info("ws: session disconnected", "remote", conn.RemoteAddr())
}

// processMessages reads frames in a loop. Binary frames are raw PCM audio
// forwarded straight to the active ASR adapter; text frames are Commands
// decoded and dispatched through the Orchestrator.
func (h *Handler) processMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := h.orc.SendAudio(data); err != nil {
				slog.Warn("ws: send audio", "error", err)
			}
		case websocket.TextMessage:
			h.orc.HandleCommand(ctx, data)
		}
	}
}

// relayEvents drains sub and writes each event as a JSON text frame until
// ctx is cancelled or the channel closes.
func relayEvents(ctx context.Context, sub <-chan events.Event, sendEvent func(events.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			sendEvent(ev)
		}
	}
}

// newEventSender returns a write function that serializes every frame under
// one mutex, the same no-torn-writes discipline the teacher applies to its
// WebSocket event sender.
func newEventSender(conn *websocket.Conn) func(events.Event) {
	var mu sync.Mutex
	return func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()

		jsonBytes, err := json.Marshal(ev)
		if err != nil {
			slog.Error("ws: marshal event", "error", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, jsonBytes); err != nil {
			slog.Warn("ws: write event", "error", err)
		}
	}
}

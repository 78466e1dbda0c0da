// Package asrstream maintains a streaming ASR session against the
// Deepgram-shaped wire protocol in: keep-alive, reconnect with
// backoff, and frame parsing into typed transcript events. It dials the
// provider client-side with the teacher's own dependency,
// github.com/gorilla/websocket, used server-side for the call-center
// WebSocket in the teacher's internal/ws/handler.go; the URL-building and
// Results-frame shape are grounded on
// MrWong99-glyphoxa/pkg/provider/stt/deepgram/deepgram.go, the pack's own
// Deepgram streaming client (adapted from github.com/coder/websocket to
// gorilla/websocket to keep the teacher's stack, and from a
// partials/finals channel pair to the typed Callbacks this package uses
// elsewhere).
package asrstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config configures one streaming ASR session
type Config struct {
	URL             string // provider base WebSocket URL, e.g. "wss://api.deepgram.com/v1/listen"
	APIKey          string
	Model           string
	Interim         bool
	EndpointingMs   int
	UtteranceEndMs  int
	SmartFormat     bool
	NoDelay         bool
	SampleRate      int
	Channels        int
	Encoding        string
	Language        string
}

// DefaultConfig fills in the defaults names.
func DefaultConfig() Config {
	return Config{
		Model:          "nova-3",
		Interim:        true,
		EndpointingMs:  300,
		UtteranceEndMs: 1000,
		SmartFormat:    true,
		SampleRate:     16000,
		Channels:       1,
		Encoding:       "linear16",
		Language:       "en",
	}
}

// TranscriptSegment is a parsed ASR result
type TranscriptSegment struct {
	ID         string
	Text       string
	Confidence float64
	IsFinal    bool
	StartMs    int64
	EndMs      int64
	Language   string
	Timestamp  time.Time
}

// Error kinds
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrRequestTimeout     = "REQUEST_TIMEOUT"
	ErrInvalidFormat      = "INVALID_FORMAT"
	ErrInvalidAPIKey      = "INVALID_API_KEY"
	ErrParse              = "PARSE_ERROR"
	ErrSend               = "SEND_ERROR"
	ErrUnknown            = "UNKNOWN_ERROR"
	ErrProviderMessage    = "DEEPGRAM_MESSAGE_ERROR"
	ErrReconnectionFailed = "RECONNECTION_FAILED"
)

// nonRecoverable reports whether kind terminates the
// session rather than allowing continued operation.
func nonRecoverable(kind string) bool {
	switch kind {
	case ErrUnauthorized, ErrInvalidAPIKey, ErrReconnectionFailed:
		return true
	default:
		return false
	}
}

// Callbacks are the typed events the adapter emits
type Callbacks struct {
	OnTranscript   func(TranscriptSegment)
	OnUtteranceEnd func()
	OnMetadata     func(raw json.RawMessage)
	OnConnected    func()
	OnDisconnected func(reason string)
	OnError        func(kind string, recoverable bool)
}

// Metrics are the cumulative counters names.
type Metrics struct {
	mu                 sync.Mutex
	BytesSent          int64
	BytesReceived      int64
	MessagesSent       int64
	MessagesReceived   int64
	ConnectionStart    time.Time
	ConnectionEnd      time.Time
	LastActivity       time.Time
	Connected          bool
}

func (m *Metrics) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		BytesSent:        m.BytesSent,
		BytesReceived:    m.BytesReceived,
		MessagesSent:     m.MessagesSent,
		MessagesReceived: m.MessagesReceived,
		ConnectionStart:  m.ConnectionStart,
		ConnectionEnd:    m.ConnectionEnd,
		LastActivity:     m.LastActivity,
		Connected:        m.Connected,
	}
}

const (
	keepAliveInterval = 8 * time.Second
	maxReconnects     = 3
	backoffBase       = 1 * time.Second
	backoffCap        = 30 * time.Second
)

// Adapter maintains one streaming ASR session with keep-alive, reconnect,
// and frame parsing. It is not safe for concurrent Connect calls; SendAudio
// and Disconnect may be called from any goroutine once Connect returns.
type Adapter struct {
	cfg Config
	cb  Callbacks

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	cancel  context.CancelFunc
	metrics Metrics

	dialer *websocket.Dialer
}

// New creates an Adapter with the given config and callback set.
func New(cfg Config, cb Callbacks) *Adapter {
	return &Adapter{cfg: cfg, cb: cb, dialer: websocket.DefaultDialer}
}

// Metrics returns a point-in-time copy of the adapter's cumulative counters.
func (a *Adapter) Metrics() Metrics {
	return a.metrics.snapshot()
}

func (a *Adapter) buildURL() (string, error) {
	u, err := url.Parse(a.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("asrstream: parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", a.cfg.Model)
	q.Set("interim_results", strconv.FormatBool(a.cfg.Interim))
	q.Set("endpointing", strconv.Itoa(a.cfg.EndpointingMs))
	q.Set("utterance_end_ms", strconv.Itoa(a.cfg.UtteranceEndMs))
	q.Set("language", a.cfg.Language)
	q.Set("sample_rate", strconv.Itoa(a.cfg.SampleRate))
	q.Set("channels", strconv.Itoa(a.cfg.Channels))
	q.Set("encoding", a.cfg.Encoding)
	q.Set("punctuate", "true")
	if a.cfg.SmartFormat {
		q.Set("smart_format", "true")
	}
	if a.cfg.NoDelay {
		q.Set("no_delay", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect opens the streaming ASR session and starts the keep-alive timer
// and read loop. It returns once the initial dial succeeds; reconnection on
// later failures happens transparently in the background.
func (a *Adapter) Connect(ctx context.Context) error {
	wsURL, err := a.buildURL()
	if err != nil {
		return err
	}

	conn, err := a.dial(ctx, wsURL)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.conn = conn
	a.cancel = cancel
	a.closed = false
	a.mu.Unlock()

	a.metrics.mu.Lock()
	a.metrics.ConnectionStart = time.Now()
	a.metrics.LastActivity = time.Now()
	a.metrics.Connected = true
	a.metrics.mu.Unlock()

	if a.cb.OnConnected != nil {
		a.cb.OnConnected()
	}

	go a.keepAliveLoop(runCtx)
	go a.readLoop(runCtx, wsURL)

	return nil
}

func (a *Adapter) dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Token "+a.cfg.APIKey)

	conn, resp, err := a.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		kind, recoverable := classifyDialError(resp)
		if a.cb.OnError != nil {
			a.cb.OnError(kind, recoverable)
		}
		return nil, fmt.Errorf("asrstream: dial: %w", err)
	}
	return conn, nil
}

func classifyDialError(resp *http.Response) (string, bool) {
	if resp == nil {
		return ErrUnknown, true
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized, false
	case http.StatusBadRequest:
		return ErrBadRequest, true
	case http.StatusRequestTimeout:
		return ErrRequestTimeout, true
	default:
		return ErrUnknown, true
	}
}

// keepAliveLoop sends a KeepAlive control frame every 8s, independent of
// audio traffic.
func (a *Adapter) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.sendControl(`{"type":"KeepAlive"}`); err != nil {
				slog.Warn("asrstream: keep-alive send failed", "error", err)
			}
		}
	}
}

func (a *Adapter) sendControl(msg string) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("asrstream: no active connection")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return err
	}
	a.metrics.mu.Lock()
	a.metrics.BytesSent += int64(len(msg))
	a.metrics.MessagesSent++
	a.metrics.LastActivity = time.Now()
	a.metrics.mu.Unlock()
	return nil
}

// SendAudio ships one PCM frame as a binary WebSocket message.
func (a *Adapter) SendAudio(frame []byte) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("asrstream: no active connection")
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		if a.cb.OnError != nil {
			a.cb.OnError(ErrSend, true)
		}
		return fmt.Errorf("asrstream: send audio: %w", err)
	}

	a.metrics.mu.Lock()
	a.metrics.BytesSent += int64(len(frame))
	a.metrics.MessagesSent++
	a.metrics.LastActivity = time.Now()
	a.metrics.mu.Unlock()
	return nil
}

// Disconnect sends Finalize then CloseStream and tears the transport down.
// It is idempotent.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	conn := a.conn
	cancel := a.cancel
	a.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Finalize"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	if cancel != nil {
		cancel()
	}

	a.metrics.mu.Lock()
	a.metrics.ConnectionEnd = time.Now()
	a.metrics.Connected = false
	a.metrics.mu.Unlock()

	return nil
}

// providerFrame is the loosely-typed shape of an inbound Deepgram-style
// message
type providerFrame struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Language   string  `json:"language"`
		} `json:"alternatives"`
	} `json:"channel"`
	Start float64         `json:"start"`
	End   float64         `json:"end"`
	Error json.RawMessage `json:"error,omitempty"`
}

func (a *Adapter) parseFrame(data []byte) {
	var frame providerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		if a.cb.OnError != nil {
			a.cb.OnError(ErrParse, true)
		}
		return
	}

	switch frame.Type {
	case "Results":
		a.handleResults(frame)
	case "UtteranceEnd":
		if a.cb.OnUtteranceEnd != nil {
			a.cb.OnUtteranceEnd()
		}
	case "Metadata":
		if a.cb.OnMetadata != nil {
			a.cb.OnMetadata(data)
		}
	case "Error":
		if a.cb.OnError != nil {
			a.cb.OnError(ErrProviderMessage, true)
		}
	}
}

func (a *Adapter) handleResults(frame providerFrame) {
	if len(frame.Channel.Alternatives) == 0 {
		return
	}
	// Open question: only alternatives[0] is consumed; higher
	// alternatives are currently ignored.
	alt := frame.Channel.Alternatives[0]

	lang := alt.Language
	if lang == "" || lang == "multi" {
		lang = a.cfg.Language
	}

	seg := TranscriptSegment{
		ID:         fmt.Sprintf("transcript-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8]),
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		IsFinal:    frame.IsFinal,
		StartMs:    int64(math.Round(frame.Start * 1000)),
		EndMs:      int64(math.Round(frame.End * 1000)),
		Language:   lang,
		Timestamp:  time.Now(),
	}
	if a.cb.OnTranscript != nil {
		a.cb.OnTranscript(seg)
	}
}

// readLoop reads provider frames until the connection closes, then
// attempts reconnection with exponential backoff unless the close was
// normal.
func (a *Adapter) readLoop(ctx context.Context, wsURL string) {
	for {
		a.mu.Lock()
		conn := a.conn
		a.mu.Unlock()
		if conn == nil {
			return
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			a.handleReadError(ctx, wsURL, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		a.metrics.mu.Lock()
		a.metrics.BytesReceived += int64(len(data))
		a.metrics.MessagesReceived++
		a.metrics.LastActivity = time.Now()
		a.metrics.mu.Unlock()

		a.parseFrame(data)
	}
}

func (a *Adapter) handleReadError(ctx context.Context, wsURL string, err error) {
	a.mu.Lock()
	deliberate := a.closed
	a.mu.Unlock()
	if deliberate {
		return
	}

	code := websocket.CloseGoingAway
	if ce, ok := err.(*websocket.CloseError); ok {
		code = ce.Code
	}
	if code == websocket.CloseNormalClosure || code == websocket.CloseGoingAway {
		if a.cb.OnDisconnected != nil {
			a.cb.OnDisconnected("normal")
		}
		return
	}

	if a.cb.OnDisconnected != nil {
		a.cb.OnDisconnected(err.Error())
	}
	a.reconnect(ctx, wsURL)
}

// reconnect retries the dial up to maxReconnects times with exponential
// backoff starting at 1s and capped at 30s. Exhaustion emits
// RECONNECTION_FAILED as non-recoverable.
func (a *Adapter) reconnect(ctx context.Context, wsURL string) {
	backoff := backoffBase
	for attempt := 1; attempt <= maxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := a.dial(ctx, wsURL)
		if err == nil {
			a.mu.Lock()
			a.conn = conn
			a.mu.Unlock()
			if a.cb.OnConnected != nil {
				a.cb.OnConnected()
			}
			go a.readLoop(ctx, wsURL)
			return
		}

		backoff = nextBackoff(backoff)
	}

	if a.cb.OnError != nil {
		a.cb.OnError(ErrReconnectionFailed, false)
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > backoffCap {
		next = backoffCap
	}
	return next
}

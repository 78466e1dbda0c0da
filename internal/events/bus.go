package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	correlationTTL    = 30 * time.Second
	defaultSweepEvery = 10 * time.Second
	subscriberBuffer  = 64
	internalBuffer    = 256
)

// Bus validates commands on intake, validates and fans out events, and
// tracks correlation IDs with a sweepable TTL. The correlation map and
// broadcast discipline mirror the teacher's internal/trace.Tracer
// (buffered-channel, background-drain) pattern, generalized from
// trace-span persistence to in-memory correlation bookkeeping.
type Bus struct {
	mu          sync.Mutex
	subscribers []chan Event
	internal    chan Event

	correlations map[string]time.Time

	clock func() time.Time
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		internal:     make(chan Event, internalBuffer),
		correlations: make(map[string]time.Time),
		clock:        time.Now,
	}
}

// NewCorrelationID mints and tracks a fresh correlation id.
func (b *Bus) NewCorrelationID() string {
	id := fmt.Sprintf("ipc-%d-%s", b.clock().UnixMilli(), uuid.NewString()[:8])
	b.trackCorrelation(id)
	return id
}

func (b *Bus) trackCorrelation(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.correlations[id] = b.clock()
}

// HasCorrelation reports whether id is tracked and not yet expired.
func (b *Bus) HasCorrelation(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.correlations[id]
	if !ok {
		return false
	}
	return b.clock().Sub(ts) < correlationTTL
}

// Sweep removes correlation entries older than the TTL.
func (b *Bus) Sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock()
	for id, ts := range b.correlations {
		if now.Sub(ts) >= correlationTTL {
			delete(b.correlations, id)
		}
	}
}

// StartSweep runs Sweep on a ticker until ctx is cancelled.
func (b *Bus) StartSweep(ctx context.Context) {
	ticker := time.NewTicker(defaultSweepEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.Sweep()
			}
		}
	}()
}

// Subscribe returns a channel the presentation layer can read events from.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// InternalStream returns the internal event stream (e.g. for C11 telemetry
// or C12 session memory to observe published events without competing with
// presentation-layer delivery).
func (b *Bus) InternalStream() <-chan Event {
	return b.internal
}

// DecodeCommand validates raw bytes against the command schema, decodes it,
// and assigns/tracks a correlation id. It returns ErrCommandValidation
// wrapped as an error when the payload fails validation; callers should
// publish a TypeError event with that kind rather than dispatching.
func (b *Bus) DecodeCommand(raw []byte) (*Command, error) {
	vr, err := ValidateCommandJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrCommandValidation, err)
	}
	if !vr.Valid {
		return nil, fmt.Errorf("%s: %v", ErrCommandValidation, vr.Errors)
	}

	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrCommandValidation, err)
	}

	if cmd.CorrelationID == "" {
		cmd.CorrelationID = b.NewCorrelationID()
	} else {
		b.trackCorrelation(cmd.CorrelationID)
	}
	return &cmd, nil
}

// Publish validates ev's envelope, broadcasts it to every subscriber and the
// internal stream, and downgrades invalid events to an EVENT_VALIDATION_ERROR
// error event instead of delivering the malformed payload.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.clock()
	}

	raw, err := json.Marshal(ev)
	if err == nil {
		if vr, vErr := ValidateEventJSON(raw); vErr == nil && !vr.Valid {
			ev = Event{
				Type:          TypeError,
				Timestamp:     b.clock(),
				CorrelationID: ev.CorrelationID,
				Data:          ErrorData{Kind: ErrEventValidation, Message: fmt.Sprintf("%v", vr.Errors)},
			}
		}
	}

	b.mu.Lock()
	subs := append([]chan Event(nil), b.subscribers...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("events: subscriber channel full, dropping event", "type", ev.Type)
		}
	}

	select {
	case b.internal <- ev:
	default:
		slog.Warn("events: internal stream full, dropping event", "type", ev.Type)
	}
}

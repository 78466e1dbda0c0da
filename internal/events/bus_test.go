package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeCommandValid(t *testing.T) {
	b := NewBus()
	raw, _ := json.Marshal(map[string]any{
		"command":        "startListening",
		"sourceLanguage": "en",
		"targetLanguage": "fr",
	})

	cmd, err := b.DecodeCommand(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Command != CommandStartListening {
		t.Errorf("got command %q", cmd.Command)
	}
	if cmd.CorrelationID == "" {
		t.Error("expected a generated correlation id")
	}
	if !b.HasCorrelation(cmd.CorrelationID) {
		t.Error("correlation id should be tracked after decode")
	}
}

func TestDecodeCommandMissingRequiredFieldsRejected(t *testing.T) {
	b := NewBus()
	raw, _ := json.Marshal(map[string]any{"command": "startListening"})

	if _, err := b.DecodeCommand(raw); err == nil {
		t.Error("expected validation error for startListening without languages")
	}
}

func TestDecodeCommandUnknownCommandRejected(t *testing.T) {
	b := NewBus()
	raw, _ := json.Marshal(map[string]any{"command": "doSomethingElse"})
	if _, err := b.DecodeCommand(raw); err == nil {
		t.Error("expected validation error for an unrecognized command")
	}
}

func TestPublishBroadcastsToSubscribers(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()

	b.Publish(Event{Type: TypeStatus, CorrelationID: "ipc-1"})

	select {
	case ev := <-sub:
		if ev.Type != TypeStatus {
			t.Errorf("got type %q, want status", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestCorrelationSweepExpiresOldEntries(t *testing.T) {
	b := NewBus()
	now := time.Unix(0, 0)
	b.clock = func() time.Time { return now }

	id := b.NewCorrelationID()
	if !b.HasCorrelation(id) {
		t.Fatal("expected freshly minted correlation id to be tracked")
	}

	now = now.Add(31 * time.Second)
	b.Sweep()
	if b.HasCorrelation(id) {
		t.Error("expected correlation id to expire after TTL")
	}
}

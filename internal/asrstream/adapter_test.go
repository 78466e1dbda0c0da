package asrstream

import (
	"encoding/json"
	"net/url"
	"testing"
)

func TestBuildURLCarriesQueryParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "wss://api.deepgram.com/v1/listen"
	cfg.Language = "en"
	a := New(cfg, Callbacks{})

	raw, err := a.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse built url: %v", err)
	}
	q := u.Query()

	want := map[string]string{
		"model":             "nova-3",
		"interim_results":   "true",
		"endpointing":       "300",
		"utterance_end_ms":  "1000",
		"language":          "en",
		"sample_rate":       "16000",
		"channels":          "1",
		"encoding":          "linear16",
		"punctuate":         "true",
		"smart_format":      "true",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %q = %q, want %q", k, got, v)
		}
	}
}

func TestBuildURLOmitsNoDelayWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "wss://api.deepgram.com/v1/listen"
	a := New(cfg, Callbacks{})

	raw, _ := a.buildURL()
	u, _ := url.Parse(raw)
	if u.Query().Has("no_delay") {
		t.Error("no_delay should be omitted when NoDelay is false")
	}
}

func TestParseFrameEmitsTranscriptFromFirstAlternative(t *testing.T) {
	cfg := DefaultConfig()
	var got TranscriptSegment
	a := New(cfg, Callbacks{
		OnTranscript: func(seg TranscriptSegment) { got = seg },
	})

	frame := `{
		"type": "Results",
		"is_final": true,
		"start": 1.5,
		"end": 2.25,
		"channel": {"alternatives": [
			{"transcript": "hello world", "confidence": 0.95, "language": "en"},
			{"transcript": "hullo word", "confidence": 0.2}
		]}
	}`
	a.parseFrame([]byte(frame))

	if got.Text != "hello world" {
		t.Errorf("text = %q, want first alternative only", got.Text)
	}
	if !got.IsFinal {
		t.Error("expected IsFinal true")
	}
	if got.StartMs != 1500 || got.EndMs != 2250 {
		t.Errorf("got StartMs=%d EndMs=%d, want 1500/2250 (seconds rounded to ms)", got.StartMs, got.EndMs)
	}
	if got.ID == "" {
		t.Error("expected a generated transcript id")
	}
}

func TestParseFrameOverridesMultiLanguage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Language = "es"
	var got TranscriptSegment
	a := New(cfg, Callbacks{OnTranscript: func(seg TranscriptSegment) { got = seg }})

	frame := `{"type":"Results","channel":{"alternatives":[{"transcript":"hola","language":"multi"}]}}`
	a.parseFrame([]byte(frame))

	if got.Language != "es" {
		t.Errorf("language = %q, want configured source language override for multi", got.Language)
	}
}

func TestParseFrameIgnoresEmptyAlternatives(t *testing.T) {
	cfg := DefaultConfig()
	called := false
	a := New(cfg, Callbacks{OnTranscript: func(TranscriptSegment) { called = true }})

	a.parseFrame([]byte(`{"type":"Results","channel":{"alternatives":[]}}`))
	if called {
		t.Error("must not emit a transcript for an empty alternatives list")
	}
}

func TestParseFrameUtteranceEndAndMetadata(t *testing.T) {
	var utteranceEnded bool
	var meta json.RawMessage
	a := New(DefaultConfig(), Callbacks{
		OnUtteranceEnd: func() { utteranceEnded = true },
		OnMetadata:     func(raw json.RawMessage) { meta = raw },
	})

	a.parseFrame([]byte(`{"type":"UtteranceEnd"}`))
	if !utteranceEnded {
		t.Error("expected OnUtteranceEnd to fire")
	}

	a.parseFrame([]byte(`{"type":"Metadata","request_id":"abc"}`))
	if meta == nil {
		t.Error("expected OnMetadata to fire with raw payload")
	}
}

func TestParseFrameMalformedJSONEmitsParseError(t *testing.T) {
	var kind string
	a := New(DefaultConfig(), Callbacks{
		OnError: func(k string, recoverable bool) {
			kind = k
			if !recoverable {
				t.Error("PARSE_ERROR must be recoverable")
			}
		},
	})
	a.parseFrame([]byte(`{not json`))
	if kind != ErrParse {
		t.Errorf("kind = %q, want %q", kind, ErrParse)
	}
}

func TestNonRecoverableKinds(t *testing.T) {
	recoverableKinds := []string{ErrBadRequest, ErrRequestTimeout, ErrInvalidFormat, ErrParse, ErrSend, ErrUnknown, ErrProviderMessage}
	for _, k := range recoverableKinds {
		if nonRecoverable(k) {
			t.Errorf("%q should be recoverable", k)
		}
	}
	nonRecoverableKinds := []string{ErrUnauthorized, ErrInvalidAPIKey, ErrReconnectionFailed}
	for _, k := range nonRecoverableKinds {
		if !nonRecoverable(k) {
			t.Errorf("%q should be non-recoverable", k)
		}
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	b := backoffBase
	for i := 0; i < 10; i++ {
		b = nextBackoff(b)
		if b > backoffCap {
			t.Fatalf("backoff exceeded cap: %v", b)
		}
	}
	if b != backoffCap {
		t.Errorf("backoff did not settle at cap, got %v", b)
	}
}

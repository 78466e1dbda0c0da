package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lecturecast/engine/internal/asrstream"
	"github.com/lecturecast/engine/internal/combiner"
	"github.com/lecturecast/engine/internal/display"
	"github.com/lecturecast/engine/internal/events"
	"github.com/lecturecast/engine/internal/llmgateway"
	"github.com/lecturecast/engine/internal/paragraph"
	"github.com/lecturecast/engine/internal/router"
	"github.com/lecturecast/engine/internal/session"
	"github.com/lecturecast/engine/internal/telemetry"
	"github.com/lecturecast/engine/internal/translate"
)

type fakeLLMClient struct {
	reply string
	err   error
}

func (f *fakeLLMClient) Complete(ctx context.Context, req llmgateway.Request) (*llmgateway.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	reply := f.reply
	if reply == "" {
		reply = "ok"
	}
	return &llmgateway.Result{Content: reply, Model: req.Model}, nil
}

func (f *fakeLLMClient) Stream(ctx context.Context, req llmgateway.Request, onDelta llmgateway.DeltaFunc) (*llmgateway.Result, error) {
	return f.Complete(ctx, req)
}

func newTestGateway(fc *fakeLLMClient) *llmgateway.Gateway {
	r := router.New[llmgateway.Client](map[string]llmgateway.Client{"openai": fc}, "openai")
	models := map[llmgateway.Purpose]llmgateway.ModelConfig{}
	for _, p := range []llmgateway.Purpose{
		llmgateway.PurposeTranslation, llmgateway.PurposeSummary, llmgateway.PurposeSummaryTranslate,
		llmgateway.PurposeUserTranslate, llmgateway.PurposeVocabulary, llmgateway.PurposeReport,
	} {
		models[p] = llmgateway.ModelConfig{Vendor: "openai", Model: "gpt-test"}
	}
	return llmgateway.New(r, models)
}

func newTestOrchestrator(fc *fakeLLMClient) *Orchestrator {
	bus := events.NewBus()
	gw := newTestGateway(fc)
	tel := telemetry.NewCollector(time.Hour, time.Hour)
	dial := func(cb asrstream.Callbacks) *asrstream.Adapter {
		return asrstream.New(asrstream.DefaultConfig(), cb)
	}
	return New(bus, gw, tel, telemetry.NewHealthRegistry(), dial, DefaultConfig())
}

// newTestSession builds a Session with every collaborator wired exactly as
// StartListening does, but without dialing a real ASR connection, so
// individual fan-out branches can be exercised directly.
func newTestSession(o *Orchestrator, srcLang, tgtLang string) *Session {
	s := &Session{
		id:                  "session-test",
		srcLang:             srcLang,
		tgtLang:             tgtLang,
		startTs:             time.Now(),
		memory:              session.New("session-test", srcLang, tgtLang, time.Now()),
		timeouts:            NewTranslationTimeoutManager(),
		paragraphTranslated: make(map[string]string),
	}
	s.display = display.New(func([]display.Pair) {})
	s.combiner = combiner.New(func(cs combiner.CombinedSentence) { o.onCombined(context.Background(), s, "corr", cs) })
	s.paragraphs = paragraph.New(paragraph.DefaultConfig(), func(p paragraph.Paragraph) { o.onParagraph(context.Background(), s, "corr", p) })
	s.queue = translate.New(translate.DefaultMaxConcurrency, translate.DefaultMaxQueueSize,
		o.translationHandler(s), translate.Events{
			OnCompleted: func(res translate.Result) { o.onTranslationResult(s, "corr", res) },
			OnFailed:    func(job translate.Job, kind string) { o.onTranslationFailed(s, "corr", job, kind) },
		})
	return s
}

func waitUntilIdle(t *testing.T, q *translate.Manager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q.InFlight() == 0 && q.QueueDepth() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("translation queue never drained")
}

func TestStripRoutingPrefix(t *testing.T) {
	cases := []struct{ in, wantBare, wantKind string }{
		{"seg-1", "seg-1", ""},
		{"history_combined-1", "combined-1", "history"},
		{"paragraph_paragraph-1", "paragraph-1", "paragraph"},
	}
	for _, c := range cases {
		bare, kind := stripRoutingPrefix(c.in)
		if bare != c.wantBare || kind != c.wantKind {
			t.Errorf("stripRoutingPrefix(%q) = (%q, %q), want (%q, %q)", c.in, bare, kind, c.wantBare, c.wantKind)
		}
	}
}

func TestClassifyLLMError(t *testing.T) {
	cases := map[string]string{
		"429 rate limited":         translate.ErrRateLimit,
		"context deadline timeout": translate.ErrTimeout,
		"401 unauthorized":         translate.ErrUnauthorized,
		"something else broke":     translate.ErrUnknown,
	}
	for msg, want := range cases {
		err := classifyLLMError(errors.New(msg))
		jerr, ok := err.(*translate.JobError)
		if !ok {
			t.Fatalf("classifyLLMError(%q) did not return a *JobError", msg)
		}
		if jerr.Kind != want {
			t.Errorf("classifyLLMError(%q) kind = %q, want %q", msg, jerr.Kind, want)
		}
	}
}

func TestTranslationHandlerSameLanguageShortcut(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{})
	s := newTestSession(o, "en", "en")

	res, err := o.translationHandler(s)(context.Background(), translate.Job{SegmentID: "seg-1", SourceText: "hello", SrcLang: "en", TgtLang: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TranslatedText != "hello" || res.Confidence != 1.0 {
		t.Errorf("got %+v, want identity shortcut", res)
	}
}

func TestTranslationHandlerUsesHistoryPromptForPrefixedJobs(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{reply: "bonjour le monde"})
	s := newTestSession(o, "en", "fr")

	res, err := o.translationHandler(s)(context.Background(), translate.Job{SegmentID: "history_c-1", SourceText: "hello world", SrcLang: "en", TgtLang: "fr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TranslatedText != "bonjour le monde" {
		t.Errorf("got %q", res.TranslatedText)
	}
}

func TestOnTranscriptFinalFansOutToCombinerParagraphAndQueue(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{reply: "hola"})
	s := newTestSession(o, "en", "es")

	seg := asrstream.TranscriptSegment{ID: "seg-1", Text: "hello there.", IsFinal: true, Confidence: 0.9, Language: "en", Timestamp: time.Now()}
	o.onTranscript(context.Background(), s, "corr", seg)

	waitUntilIdle(t, s.queue)

	snap := s.memory.Snapshot()
	if len(snap.Transcripts) != 1 {
		t.Fatalf("expected 1 recorded transcript, got %d", len(snap.Transcripts))
	}
}

func TestOnTranscriptInterimNeverReachesMemory(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{})
	s := newTestSession(o, "en", "es")

	seg := asrstream.TranscriptSegment{ID: "seg-1", Text: "hello", IsFinal: false}
	o.onTranscript(context.Background(), s, "corr", seg)

	snap := s.memory.Snapshot()
	if len(snap.Transcripts) != 0 {
		t.Errorf("interim segments must not be recorded in session memory")
	}
}

func TestOnTranslationTimeoutMarksDisplayWithoutFiringCallback(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{})
	s := newTestSession(o, "en", "es")
	var last []display.Pair
	s.display = display.New(func(p []display.Pair) { last = p })
	s.display.UpdateOriginal("hola", true, "seg-9")

	fired := make(chan struct{})
	s.timeouts.Arm("seg-9", 5, func() { close(fired) })
	o.onTranslationTimeout(s, "corr", "seg-9")

	if len(last) != 1 || last[0].Translation.Text != "[translation timeout]" || !last[0].Translation.IsComplete {
		t.Errorf("pairs = %+v, want the pair marked complete with the timeout text", last)
	}

	select {
	case <-fired:
		t.Error("onTranslationTimeout should not itself invoke the armed callback")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOnCombinedRegistersAliasAndEnqueuesHistoryTranslation(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{reply: "hola mundo"})
	s := newTestSession(o, "en", "es")

	cs := combiner.CombinedSentence{ID: "c-1", SegmentIDs: []string{"seg-1"}, OriginalText: "hello world", SegmentCount: 1}
	o.onCombined(context.Background(), s, "corr", cs)

	waitUntilIdle(t, s.queue)

	if _, ok := s.memory.HistoryByID("c-1"); !ok {
		t.Error("expected history entry to be recorded")
	}
}

func TestOnParagraphEnqueuesLowPriorityTranslation(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{reply: "traducido"})
	s := newTestSession(o, "en", "es")

	p := paragraph.Paragraph{ID: "p-1", RawText: "the lecture covered topic one", CleanedText: "The lecture covered topic one", WordCount: 5}
	o.onParagraph(context.Background(), s, "corr", p)

	waitUntilIdle(t, s.queue)

	s.mu.Lock()
	got := s.paragraphTranslated["p-1"]
	s.mu.Unlock()
	if got != "traducido" {
		t.Errorf("got paragraph translation %q, want traducido", got)
	}
}

func TestStartListeningRejectsConcurrentSession(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{})
	o.session = newTestSession(o, "en", "es")

	if err := o.StartListening(context.Background(), "en", "es", "corr"); err == nil {
		t.Error("expected error starting a second session while one is active")
	}
}

func TestGetHistoryWithNoActiveSessionPublishesError(t *testing.T) {
	o := newTestOrchestrator(&fakeLLMClient{})
	sub := o.bus.Subscribe()

	o.GetHistory("corr", 0, 0)

	select {
	case ev := <-sub:
		if ev.Type != events.TypeError {
			t.Errorf("got %q, want error event", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an error event")
	}
}

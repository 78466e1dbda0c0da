// Package orchestrator implements the Pipeline Orchestrator:
// it owns the one mutable session's state, wires the ASR adapter, sentence
// combiner, paragraph builder, progressive summarizer, translation queue,
// display manager, and session memory together, and publishes every
// UI-visible state change through the typed event bus. It is grounded on
// the teacher's internal/pipeline.Pipeline (a per-session struct wired with
// routers/clients at construction, exposing ProcessChunk/Flush-style entry
// points) and on cmd/gateway/main.go's initASR/initLLM/initTTS wiring
// style, generalized from "one phone call" to "one lecture session".
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lecturecast/engine/internal/asrstream"
	"github.com/lecturecast/engine/internal/coalescer"
	"github.com/lecturecast/engine/internal/combiner"
	"github.com/lecturecast/engine/internal/display"
	"github.com/lecturecast/engine/internal/events"
	"github.com/lecturecast/engine/internal/llmgateway"
	"github.com/lecturecast/engine/internal/paragraph"
	"github.com/lecturecast/engine/internal/prompts"
	"github.com/lecturecast/engine/internal/session"
	"github.com/lecturecast/engine/internal/summary"
	"github.com/lecturecast/engine/internal/telemetry"
	"github.com/lecturecast/engine/internal/translate"
)

// teardownGrace bounds how long stopListening waits for in-flight
// translation jobs to drain before force-closing
const teardownGrace = 5 * time.Second

// ASRDialer creates an unconnected streaming ASR adapter for one session,
// already carrying the deployment's vendor URL, API key and model; the
// callbacks are supplied by the orchestrator and Connect is called later by
// StartListening.
type ASRDialer func(cb asrstream.Callbacks) *asrstream.Adapter

// Orchestrator owns the process-wide collaborators (event bus, telemetry,
// LLM gateway, ASR dialer) and, at most, one active Session. Creating a
// second session before stopping the first is an error: the spec models
// exactly one live lecture session at a time.
type Orchestrator struct {
	bus       *events.Bus
	gateway   *llmgateway.Gateway
	telemetry *telemetry.Collector
	health    *telemetry.HealthRegistry
	dial      ASRDialer
	cfg       Config

	mu      sync.Mutex
	session *Session
}

// Config holds the deployment-tunable knobs exposes as
// environment overrides for the coalescer and summary tracker.
type Config struct {
	Coalescer       coalescer.Config
	SummaryInterval time.Duration
}

// DefaultConfig returns the package defaults for every tunable knob.
func DefaultConfig() Config {
	return Config{Coalescer: coalescer.DefaultConfig(), SummaryInterval: summary.DefaultPeriodicInterval}
}

// New creates an Orchestrator. dial must return a fresh, unconnected
// *asrstream.Adapter configured with the orchestrator's deployment
// defaults every time it is called.
func New(bus *events.Bus, gateway *llmgateway.Gateway, tel *telemetry.Collector, health *telemetry.HealthRegistry, dial ASRDialer, cfg Config) *Orchestrator {
	return &Orchestrator{bus: bus, gateway: gateway, telemetry: tel, health: health, dial: dial, cfg: cfg}
}

// HandleCommand decodes and dispatches one raw command payload from the
// presentation layer. Invalid payloads are downgraded to a
// COMMAND_VALIDATION_ERROR event rather than dispatched.
func (o *Orchestrator) HandleCommand(ctx context.Context, raw []byte) {
	cmd, err := o.bus.DecodeCommand(raw)
	if err != nil {
		o.bus.Publish(events.Event{
			Type: events.TypeError,
			Data: events.ErrorData{Kind: events.ErrCommandValidation, Message: err.Error()},
		})
		return
	}

	switch cmd.Command {
	case events.CommandStartListening:
		if err := o.StartListening(ctx, cmd.SourceLanguage, cmd.TargetLanguage, cmd.CorrelationID); err != nil {
			o.publishError(cmd.CorrelationID, events.ErrCommandValidation, err.Error())
		}
	case events.CommandStopListening:
		o.StopListening(ctx, cmd.CorrelationID)
	case events.CommandGetHistory:
		o.GetHistory(cmd.CorrelationID, cmd.Limit, cmd.Offset)
	case events.CommandClearHistory:
		o.ClearHistory(cmd.CorrelationID)
	}
}

func (o *Orchestrator) publishError(correlationID, kind, msg string) {
	o.bus.Publish(events.Event{Type: events.TypeError, CorrelationID: correlationID, Data: events.ErrorData{Kind: kind, Message: msg}})
}

// Session holds every per-lecture collaborator. All fields are written only
// by the Orchestrator's command handlers and the callbacks installed at
// construction; nothing outside this package mutates Session state
// directly, matching the data model's ownership rule.
type Session struct {
	id      string
	srcLang string
	tgtLang string
	startTs time.Time

	asr         *asrstream.Adapter
	combiner    *combiner.Combiner
	paragraphs  *paragraph.Builder
	tracker     *summary.Tracker
	display     *display.Manager
	queue       *translate.Manager
	memory      *session.Memory
	coalesce    *coalescer.Coalescer
	timeouts    *TranslationTimeoutManager

	summaryTicker *time.Ticker
	tickerDone    chan struct{}

	mu                  sync.Mutex
	paragraphTranslated map[string]string
	firstPaintRecorded  bool
}

// StartListening creates a new Session, opens the ASR adapter, and starts
// the periodic summary ticker
func (o *Orchestrator) StartListening(ctx context.Context, srcLang, tgtLang, correlationID string) error {
	o.mu.Lock()
	if o.session != nil {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: a session is already active")
	}

	sessID := "session-" + uuid.NewString()[:8]
	s := &Session{
		id:                  sessID,
		srcLang:             srcLang,
		tgtLang:             tgtLang,
		startTs:             time.Now(),
		memory:              session.New(sessID, srcLang, tgtLang, time.Now()),
		timeouts:            NewTranslationTimeoutManager(),
		paragraphTranslated: make(map[string]string),
		tickerDone:          make(chan struct{}),
	}

	s.display = display.New(func(pairs []display.Pair) {
		o.onDisplaySnapshot(s, correlationID, pairs)
	})
	s.coalesce = coalescer.New(o.cfg.Coalescer, func(key string, u coalescer.Update) {
		o.onCoalesced(s, correlationID, key, u)
	})
	s.combiner = combiner.New(func(cs combiner.CombinedSentence) {
		o.onCombined(ctx, s, correlationID, cs)
	})
	s.paragraphs = paragraph.New(paragraph.DefaultConfig(), func(p paragraph.Paragraph) {
		o.onParagraph(ctx, s, correlationID, p)
	})
	s.tracker = summary.New(srcLang, func(tr summary.Trigger) {
		o.onSummaryTrigger(ctx, s, correlationID, tr)
	})
	s.tracker.SetPeriodicInterval(o.cfg.SummaryInterval)
	s.queue = translate.New(translate.DefaultMaxConcurrency, translate.DefaultMaxQueueSize,
		o.translationHandler(s), translate.Events{
			OnCompleted: func(res translate.Result) { o.onTranslationResult(s, correlationID, res) },
			OnFailed:    func(job translate.Job, kind string) { o.onTranslationFailed(s, correlationID, job, kind) },
		})

	s.asr = o.dial(asrstream.Callbacks{
		OnTranscript:   func(seg asrstream.TranscriptSegment) { o.onTranscript(ctx, s, correlationID, seg) },
		OnUtteranceEnd: func() {},
		OnConnected:    func() { slog.Info("asrstream connected", "session", sessID) },
		OnDisconnected: func(reason string) { slog.Info("asrstream disconnected", "session", sessID, "reason", reason) },
		OnError:        func(kind string, recoverable bool) { o.onASRError(correlationID, kind, recoverable) },
	})

	o.session = s
	o.mu.Unlock()

	if err := s.asr.Connect(ctx); err != nil {
		o.mu.Lock()
		o.session = nil
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: connect asr: %w", err)
	}

	s.summaryTicker = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-s.tickerDone:
				return
			case <-s.summaryTicker.C:
				s.tracker.Tick()
				s.display.Sweep()
			}
		}
	}()

	o.bus.Publish(events.Event{Type: events.TypeStatus, CorrelationID: correlationID, Data: map[string]string{"status": "listening"}})
	return nil
}

func (o *Orchestrator) currentSession() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// SendAudio forwards one PCM frame to the active session's ASR adapter.
func (o *Orchestrator) SendAudio(frame []byte) error {
	s := o.currentSession()
	if s == nil {
		return fmt.Errorf("orchestrator: no active session")
	}
	if err := s.asr.SendAudio(frame); err != nil {
		o.publishError("", "SEND_ERROR", err.Error())
		return err
	}
	return nil
}

// onTranscript implements the transcript handling pipeline: interim
// segments fan out to the display (via the coalescer); final segments also
// feed the combiner, paragraph builder, summarizer, and enqueue a
// normal-priority translation job. Each branch is isolated so an error in
// one never cancels the others.
func (o *Orchestrator) onTranscript(ctx context.Context, s *Session, correlationID string, seg asrstream.TranscriptSegment) {
	o.telemetry.RecordSegment()

	s.coalesce.AddSegment(seg.ID, coalescer.Update{Text: seg.Text, Confidence: seg.Confidence, IsFinal: seg.IsFinal})

	o.bus.Publish(events.Event{
		Type:          events.TypeASR,
		CorrelationID: correlationID,
		Data: map[string]any{
			"id": seg.ID, "text": seg.Text, "isFinal": seg.IsFinal,
			"confidence": seg.Confidence, "language": seg.Language,
		},
	})

	if !seg.IsFinal || strings.TrimSpace(seg.Text) == "" {
		return
	}

	func() {
		defer recoverLog("session memory")
		s.memory.AddTranscript(session.Transcript{
			ID: seg.ID, Text: seg.Text, Confidence: seg.Confidence, IsFinal: true,
			StartMs: seg.StartMs, EndMs: seg.EndMs, Language: seg.Language, Timestamp: seg.Timestamp,
		})
	}()

	func() {
		defer recoverLog("combiner")
		s.combiner.AddSegment(combiner.Segment{ID: seg.ID, Text: seg.Text, IsFinal: true})
	}()

	func() {
		defer recoverLog("paragraph builder")
		s.paragraphs.AddSegment(paragraph.Segment{ID: seg.ID, Text: seg.Text, IsFinal: true, Timestamp: seg.Timestamp})
	}()

	func() {
		defer recoverLog("summary tracker")
		s.tracker.AddSourceText(seg.Text)
	}()

	func() {
		defer recoverLog("translate enqueue")
		o.enqueueTranslation(s, correlationID, seg.ID, seg.Text, translate.PriorityNormal)
	}()
}

func recoverLog(stage string) {
	if r := recover(); r != nil {
		slog.Error("orchestrator: recovered panic", "stage", stage, "panic", r)
	}
}

// enqueueTranslation submits a translation job. Same-language sessions
// still flow through the queue/event bus to preserve ordering; the
// translation handler returns the source text immediately with confidence
// 1.0 rather than being special-cased here.
func (o *Orchestrator) enqueueTranslation(s *Session, correlationID, segmentID, text string, priority translate.Priority) {
	if priority == translate.PriorityNormal {
		s.timeouts.Arm(segmentID, len(text), func() { o.onTranslationTimeout(s, correlationID, segmentID) })
	}
	job := translate.Job{SegmentID: segmentID, SourceText: text, SrcLang: s.srcLang, TgtLang: s.tgtLang, Priority: priority}
	if err := s.queue.Enqueue(job); err != nil {
		if priority == translate.PriorityLow {
			slog.Warn("orchestrator: dropped low-priority translation job", "segment", segmentID, "error", err)
			return
		}
		o.publishError(correlationID, events.ErrQueueOverflow, err.Error())
	}
}

func (o *Orchestrator) onTranslationTimeout(s *Session, correlationID, segmentID string) {
	s.display.UpdateTranslation("[translation timeout]", segmentID)
	s.display.CompleteTranslation(segmentID)
	o.telemetry.RecordError("TRANSLATION_TIMEOUT")
	o.bus.Publish(events.Event{
		Type: events.TypeTranslation, CorrelationID: correlationID,
		Data: map[string]any{"keyId": segmentID, "translatedText": "[translation timeout]", "timedOut": true},
	})
}

// translationHandler builds the translate.HandlerFunc the queue invokes for
// every job, dispatching to the LLM Gateway with the prompt appropriate to
// the job's routing prefix, or taking the same-language shortcut.
func (o *Orchestrator) translationHandler(s *Session) translate.HandlerFunc {
	return func(ctx context.Context, job translate.Job) (translate.Result, error) {
		if job.SrcLang == job.TgtLang {
			return translate.Result{TranslatedText: job.SourceText, Model: "identity", Confidence: 1.0}, nil
		}

		systemPrompt := prompts.ForTranslation(job.SrcLang, job.TgtLang)
		if strings.HasPrefix(job.SegmentID, "history_") || strings.HasPrefix(job.SegmentID, "paragraph_") {
			systemPrompt = prompts.ForHistoryTranslation(job.SrcLang, job.TgtLang)
		}

		start := time.Now()
		res, err := o.gateway.Complete(ctx, llmgateway.PurposeTranslation, systemPrompt, job.SourceText, 0)
		if err != nil {
			return translate.Result{}, classifyLLMError(err)
		}
		return translate.Result{
			TranslatedText: res.Content,
			Model:          res.Model,
			Confidence:     0.9,
			LatencyMs:      float64(time.Since(start).Milliseconds()),
		}, nil
	}
}

func classifyLLMError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit"):
		return &translate.JobError{Kind: translate.ErrRateLimit}
	case strings.Contains(strings.ToLower(msg), "timeout") || strings.Contains(strings.ToLower(msg), "deadline"):
		return &translate.JobError{Kind: translate.ErrTimeout}
	case strings.Contains(msg, "401") || strings.Contains(strings.ToLower(msg), "unauthorized"):
		return &translate.JobError{Kind: translate.ErrUnauthorized}
	default:
		return &translate.JobError{Kind: translate.ErrUnknown}
	}
}

// stripRoutingPrefix returns the bare id and the prefix kind ("", "history",
// or "paragraph") encoded in a TranslationJob's SegmentID.
func stripRoutingPrefix(id string) (bare, kind string) {
	if rest, ok := strings.CutPrefix(id, "history_"); ok {
		return rest, "history"
	}
	if rest, ok := strings.CutPrefix(id, "paragraph_"); ok {
		return rest, "paragraph"
	}
	return id, ""
}

func (o *Orchestrator) onTranslationResult(s *Session, correlationID string, res translate.Result) {
	s.timeouts.Cancel(res.KeyID)

	o.telemetry.RecordProcessingTime(res.LatencyMs)

	bare, kind := stripRoutingPrefix(res.KeyID)

	s.display.UpdateTranslation(res.TranslatedText, res.KeyID)
	s.display.CompleteTranslation(res.KeyID)

	o.bus.Publish(events.Event{
		Type: events.TypeTranslation, CorrelationID: correlationID,
		Data: map[string]any{
			"keyId": res.KeyID, "translatedText": res.TranslatedText,
			"model": res.Model, "confidence": res.Confidence, "latencyMs": res.LatencyMs,
		},
	})

	switch kind {
	case "history":
		if err := s.memory.ApplyTranslation(bare, session.Translation{
			KeyID: res.KeyID, Text: res.TranslatedText, Model: res.Model,
			Confidence: res.Confidence, LatencyMs: res.LatencyMs, Timestamp: time.Now(),
		}); err != nil {
			slog.Warn("orchestrator: translation for unknown history entry", "id", bare, "error", err)
		}
	case "paragraph":
		s.mu.Lock()
		s.paragraphTranslated[bare] = res.TranslatedText
		s.mu.Unlock()
	}
}

func (o *Orchestrator) onTranslationFailed(s *Session, correlationID string, job translate.Job, kind string) {
	s.timeouts.Cancel(job.SegmentID)
	o.telemetry.RecordError(kind)

	if kind == translate.ErrUnauthorized {
		o.publishError(correlationID, events.ErrAuth, "translation worker disabled: invalid credentials")
		return
	}
	if kind == translate.ErrQueueOverflow {
		if job.Priority == translate.PriorityLow {
			slog.Warn("orchestrator: low-priority job dropped by queue overflow", "segment", job.SegmentID)
			return
		}
		o.publishError(correlationID, events.ErrQueueOverflow, "translation queue overflow: "+job.SegmentID)
		return
	}
	slog.Warn("orchestrator: translation job failed", "segment", job.SegmentID, "kind", kind)
}

// onCoalesced is C10's commit callback: it drives the display update and
// publishes the at-most-one-per-boundary "segment" event.
func (o *Orchestrator) onCoalesced(s *Session, correlationID, key string, u coalescer.Update) {
	s.display.UpdateOriginal(u.Text, u.IsFinal, key)

	s.mu.Lock()
	firstPaint := !s.firstPaintRecorded
	if firstPaint {
		s.firstPaintRecorded = true
	}
	s.mu.Unlock()
	if firstPaint {
		o.telemetry.RecordFirstPaint(float64(time.Since(s.startTs).Milliseconds()))
	}

	o.telemetry.RecordUIEmitted()
	o.bus.Publish(events.Event{
		Type: events.TypeSegment, CorrelationID: correlationID,
		Data: map[string]any{"segmentId": key, "text": u.Text, "isFinal": u.IsFinal, "confidence": u.Confidence},
	})
}

func (o *Orchestrator) onDisplaySnapshot(s *Session, correlationID string, pairs []display.Pair) {
	// Display snapshots are not published on the bus; the pairs are
	// discarded here, and clients follow the segment and translation events
	// instead.
	_ = pairs
}

// onCombined handles a C2 emission: enqueue the high-quality history
// translation, register the display alias so its eventual result lands on
// the right pair, record it in session memory, and publish the event.
func (o *Orchestrator) onCombined(ctx context.Context, s *Session, correlationID string, cs combiner.CombinedSentence) {
	historyKey := "history_" + cs.ID
	if len(cs.SegmentIDs) > 0 {
		s.display.RegisterAlias(historyKey, cs.SegmentIDs[len(cs.SegmentIDs)-1])
	}

	s.memory.UpsertHistory(session.HistoryEntry{
		ID: cs.ID, SegmentIDs: cs.SegmentIDs, OriginalText: cs.OriginalText,
		StartMs: cs.StartTs.UnixMilli(), EndMs: cs.EndTs.UnixMilli(),
	})

	o.enqueueTranslation(s, correlationID, historyKey, cs.OriginalText, translate.PriorityLow)

	o.bus.Publish(events.Event{
		Type: events.TypeCombinedSentence, CorrelationID: correlationID,
		Data: map[string]any{"id": cs.ID, "originalText": cs.OriginalText, "segmentCount": cs.SegmentCount},
	})
}

// onParagraph handles a C5 emission: enqueue the paragraph translation,
// extract vocabulary best-effort, and publish paragraphComplete.
func (o *Orchestrator) onParagraph(ctx context.Context, s *Session, correlationID string, p paragraph.Paragraph) {
	o.enqueueTranslation(s, correlationID, "paragraph_"+p.ID, p.RawText, translate.PriorityLow)

	o.bus.Publish(events.Event{
		Type: events.TypeParagraphComplete, CorrelationID: correlationID,
		Data: map[string]any{"id": p.ID, "rawText": p.RawText, "cleanedText": p.CleanedText, "wordCount": p.WordCount},
	})

	go o.extractVocabulary(ctx, s, correlationID, p)
}

func (o *Orchestrator) extractVocabulary(ctx context.Context, s *Session, correlationID string, p paragraph.Paragraph) {
	defer recoverLog("vocabulary extraction")
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := o.gateway.Complete(ctx, llmgateway.PurposeVocabulary, prompts.ForVocabulary(), p.RawText, 0)
	if err != nil {
		slog.Warn("orchestrator: vocabulary extraction failed", "paragraph", p.ID, "error", err)
		return
	}

	items := summary.ParseVocabulary(res.Content)
	if len(items) == 0 {
		return
	}
	s.memory.AddVocabulary(items...)
	o.bus.Publish(events.Event{
		Type: events.TypeVocabulary, CorrelationID: correlationID,
		Data: map[string]any{"paragraphId": p.ID, "items": items},
	})
}

// onSummaryTrigger handles a C6 trigger: compose the purpose prompt,
// request a summary, translate it, record it, and publish.
func (o *Orchestrator) onSummaryTrigger(ctx context.Context, s *Session, correlationID string, tr summary.Trigger) {
	go func() {
		defer recoverLog("summary trigger")

		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		snap := s.memory.Snapshot()
		sourceText := joinRecentTranscripts(snap)

		sumRes, err := o.gateway.Complete(ctx, llmgateway.PurposeSummary, prompts.ForSummary(tr.ThresholdWords), sourceText, 0)
		if err != nil {
			slog.Warn("orchestrator: summary generation failed", "error", err)
			return
		}

		var targetText string
		if s.srcLang == s.tgtLang {
			targetText = sumRes.Content
		} else {
			tRes, err := o.gateway.Complete(ctx, llmgateway.PurposeSummaryTranslate,
				prompts.ForSummaryTranslation(s.srcLang, s.tgtLang), sumRes.Content, 0)
			if err != nil {
				slog.Warn("orchestrator: summary translation failed", "error", err)
				targetText = ""
			} else {
				targetText = tRes.Content
			}
		}

		sm := session.Summary{
			ID: "summary-" + uuid.NewString()[:8], SourceText: sumRes.Content, TargetText: targetText,
			ThresholdWords: tr.ThresholdWords, Periodic: tr.Periodic, CreatedAt: time.Now(),
		}
		if err := s.memory.AddSummary(sm); err != nil {
			slog.Warn("orchestrator: duplicate summary threshold suppressed", "threshold", tr.ThresholdWords, "error", err)
			return
		}

		evType := events.TypeProgressiveSummary
		if tr.Periodic {
			evType = events.TypePeriodicSummary
		}
		o.bus.Publish(events.Event{
			Type: evType, CorrelationID: correlationID,
			Data: map[string]any{"id": sm.ID, "sourceText": sm.SourceText, "targetText": sm.TargetText, "thresholdWords": sm.ThresholdWords},
		})
	}()
}

func joinRecentTranscripts(snap session.Record) string {
	var b strings.Builder
	for _, t := range snap.Transcripts {
		b.WriteString(t.Text)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

func (o *Orchestrator) onASRError(correlationID, kind string, recoverable bool) {
	o.telemetry.RecordError(kind)
	o.publishError(correlationID, kind, fmt.Sprintf("recoverable=%v", recoverable))
	if !recoverable {
		o.bus.Publish(events.Event{Type: events.TypeStatus, CorrelationID: correlationID, Data: map[string]string{"status": "error"}})
		o.StopListening(context.Background(), correlationID)
	}
}

// StopListening flushes the combiner and paragraph builder, drains the
// translation queue up to teardownGrace, closes the ASR adapter, stops the
// summary ticker, generates a best-effort final report and vocabulary, and
// publishes status(stopped).
func (o *Orchestrator) StopListening(ctx context.Context, correlationID string) {
	o.mu.Lock()
	s := o.session
	o.session = nil
	o.mu.Unlock()
	if s == nil {
		return
	}

	s.combiner.ForceEmit()
	s.paragraphs.Flush()

	deadline := time.Now().Add(teardownGrace)
	for s.queue.InFlight() > 0 || s.queue.QueueDepth() > 0 {
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	_ = s.asr.Disconnect()

	s.summaryTicker.Stop()
	close(s.tickerDone)

	report, err := o.generateFinalReport(ctx, s)
	if err != nil {
		slog.Warn("orchestrator: final report generation failed", "error", err)
	} else {
		o.bus.Publish(events.Event{
			Type: events.TypeFinalReport, CorrelationID: correlationID,
			Data: map[string]any{"sessionId": s.id, "text": report},
		})
	}

	s.memory.End(time.Now())
	o.bus.Publish(events.Event{Type: events.TypeStatus, CorrelationID: correlationID, Data: map[string]string{"status": "stopped"}})
}

// generateFinalReport composes the session's full history into the report
// purpose, a feature recovered from the original implementation that the
// distilled requirements had dropped.
func (o *Orchestrator) generateFinalReport(ctx context.Context, s *Session) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	snap := s.memory.Snapshot()
	res, err := o.gateway.Complete(ctx, llmgateway.PurposeReport, prompts.ForReport(), joinRecentTranscripts(snap), 0)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// GetHistory publishes the session's history window as a status event; the
// presentation layer reads session.Record fields from its Data payload.
func (o *Orchestrator) GetHistory(correlationID string, limit, offset int) {
	s := o.currentSession()
	if s == nil {
		o.publishError(correlationID, events.ErrCommandValidation, "no active session")
		return
	}
	snap := s.memory.Snapshot()
	history := snap.History
	if offset > 0 && offset < len(history) {
		history = history[offset:]
	} else if offset >= len(history) {
		history = nil
	}
	if limit > 0 && limit < len(history) {
		history = history[:limit]
	}
	o.bus.Publish(events.Event{Type: events.TypeStatus, CorrelationID: correlationID, Data: map[string]any{"history": history}})
}

// ClearHistory resets the active session's display without tearing down the
// ASR connection. The combiner buffer and session memory are left as they
// are.
func (o *Orchestrator) ClearHistory(correlationID string) {
	s := o.currentSession()
	if s == nil {
		o.publishError(correlationID, events.ErrCommandValidation, "no active session")
		return
	}
	s.display.Reset()
	o.bus.Publish(events.Event{Type: events.TypeStatus, CorrelationID: correlationID, Data: map[string]string{"status": "history_cleared"}})
}

// SessionSnapshot returns the active session's JSON-serializable record, or
// false if no session is active.
func (o *Orchestrator) SessionSnapshot() (session.Record, bool) {
	s := o.currentSession()
	if s == nil {
		return session.Record{}, false
	}
	return s.memory.Snapshot(), true
}

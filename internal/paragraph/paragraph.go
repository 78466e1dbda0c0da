// Package paragraph accumulates finalized transcript segments into
// multi-sentence paragraphs bounded by duration, silence, or a leading
// transition phrase. Its closure state machine generalizes the
// duration/silence-threshold discipline of the teacher's
// internal/audio.VAD (speech/silence timers with a minimum and a
// calibrated threshold) from the audio-energy domain to the text domain.
package paragraph

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config holds the closure thresholds. Production defaults are 20s/60s/2s;
// this package's tests use 150ms/400ms/200ms.
type Config struct {
	MinDuration      time.Duration
	MaxDuration      time.Duration
	SilenceThreshold time.Duration
}

// DefaultConfig returns the production closure thresholds.
func DefaultConfig() Config {
	return Config{
		MinDuration:      20 * time.Second,
		MaxDuration:      60 * time.Second,
		SilenceThreshold: 2 * time.Second,
	}
}

// Segment is the subset of a transcript segment the builder cares about.
type Segment struct {
	ID        string
	Text      string
	IsFinal   bool
	Timestamp time.Time
}

// Paragraph is the unit emitted when the builder closes a span.
type Paragraph struct {
	ID          string
	Segments    []Segment
	RawText     string
	CleanedText string
	StartMs     int64
	EndMs       int64
	WordCount   int
}

// EmitFunc receives a completed paragraph exactly once per closure.
type EmitFunc func(Paragraph)

var transitionPrefixes = []string{
	"so,", "now,", "next,", "okay,", "alright,", "well,",
	"let me", "i want to", "moving on", "in conclusion", "to summarize",
}

func hasLeadingTransition(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, p := range transitionPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// Builder accumulates finalized segments into paragraphs.
type Builder struct {
	mu  sync.Mutex
	cfg Config

	segments []Segment
	startAt  time.Time
	lastAt   time.Time

	maxTimer *time.Timer
	emit     EmitFunc
	clock    func() time.Time
}

// New creates a Builder with cfg and an emit callback invoked on closure.
func New(cfg Config, emit EmitFunc) *Builder {
	return &Builder{cfg: cfg, emit: emit, clock: time.Now}
}

// AddSegment feeds a finalized transcript segment. Non-final segments are
// ignored.
func (b *Builder) AddSegment(seg Segment) {
	if !seg.IsFinal {
		return
	}
	if seg.Timestamp.IsZero() {
		seg.Timestamp = b.clock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.segments) == 0 {
		b.startParagraphLocked(seg)
		return
	}

	silence := seg.Timestamp.Sub(b.lastAt)
	if silence >= b.cfg.SilenceThreshold {
		b.closeLocked()
		b.startParagraphLocked(seg)
		return
	}

	elapsed := seg.Timestamp.Sub(b.startAt)
	if elapsed >= b.cfg.MinDuration && hasLeadingTransition(seg.Text) {
		b.closeLocked()
		b.startParagraphLocked(seg)
		return
	}

	b.segments = append(b.segments, seg)
	b.lastAt = seg.Timestamp

	if seg.Timestamp.Sub(b.startAt) >= b.cfg.MaxDuration {
		b.closeLocked()
	}
}

func (b *Builder) startParagraphLocked(seg Segment) {
	b.segments = []Segment{seg}
	b.startAt = seg.Timestamp
	b.lastAt = seg.Timestamp
	b.armMaxTimerLocked()
}

func (b *Builder) armMaxTimerLocked() {
	if b.maxTimer != nil {
		b.maxTimer.Stop()
	}
	b.maxTimer = time.AfterFunc(b.cfg.MaxDuration, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if len(b.segments) == 0 {
			return
		}
		b.closeLocked()
	})
}

// Flush force-closes the current paragraph regardless of closure rules. It
// is a no-op when no segments are buffered.
func (b *Builder) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.segments) == 0 {
		return
	}
	b.closeLocked()
}

// closeLocked must be called with b.mu held.
func (b *Builder) closeLocked() {
	if b.maxTimer != nil {
		b.maxTimer.Stop()
		b.maxTimer = nil
	}

	segs := b.segments
	b.segments = nil

	raw := joinSegments(segs)
	p := Paragraph{
		ID:          fmt.Sprintf("paragraph-%d-%s", b.clock().UnixMilli(), uuid.NewString()[:8]),
		Segments:    segs,
		RawText:     raw,
		CleanedText: CleanText(raw),
		StartMs:     segs[0].Timestamp.UnixMilli(),
		EndMs:       segs[len(segs)-1].Timestamp.UnixMilli(),
		WordCount:   len(strings.Fields(raw)),
	}

	if b.emit != nil {
		b.emit(p)
	}
}

func joinSegments(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

var (
	disfluencyRe   = regexp.MustCompile(`(?i)\b(um+|uh+|you know)\b,?`)
	repeatedWordRe = regexp.MustCompile(`(?i)\b(\w+)(\s+\1\b)+`)
	extraSpaceRe   = regexp.MustCompile(`\s{2,}`)
	sentenceStopRe = regexp.MustCompile(`([.!?]\s+)([a-z])`)
)

// CleanText is a pure post-process: it strips disfluencies, dedupes
// immediate word repeats, and capitalizes sentence starts. It never mutates
// the raw text in place; callers keep RawText alongside CleanedText.
func CleanText(raw string) string {
	s := disfluencyRe.ReplaceAllString(raw, "")
	s = repeatedWordRe.ReplaceAllString(s, "$1")
	s = extraSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	s = sentenceStopRe.ReplaceAllStringFunc(s, func(m string) string {
		groups := sentenceStopRe.FindStringSubmatch(m)
		return groups[1] + strings.ToUpper(groups[2])
	})
	return s
}

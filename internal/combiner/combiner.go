// Package combiner groups finalized ASR segments into natural 2-3 sentence
// units. It is the idiomatic generalization of the teacher's token-level
// sentenceBuffer (internal/pipeline/sentence.go in the teacher repo) from
// "TTS-ready chunk of streamed tokens" to "history-ready chunk of finalized
// transcript segments."
package combiner

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Segment is the subset of a transcript segment the combiner cares about.
type Segment struct {
	ID      string
	Text    string
	IsFinal bool
}

// CombinedSentence is the unit emitted once 2-3 finals form a complete
// thought.
type CombinedSentence struct {
	ID           string
	SegmentIDs   []string
	OriginalText string
	StartTs      time.Time
	EndTs        time.Time
	SegmentCount int
}

// EmitFunc receives a completed combined sentence exactly once per emission.
type EmitFunc func(CombinedSentence)

const (
	minSegments = 2
	maxSegments = 10
	timeoutMs   = 2000
)

var terminalPunct = regexp.MustCompile(`[。．！？.!?]["'）)]?$`)

var incompleteSuffixWord = regexp.MustCompile(`(?i)\b(and|or|but)$`)

// japaneseIncompleteParticles are trailing particles that mark a sentence as
// grammatically unfinished. hasIncompleteSuffix looks for them after trimming
// only closing quotes, brackets and spaces, so a text that still ends in
// terminal punctuation never matches a particle.
var japaneseIncompleteParticles = []string{"で", "に", "を", "は", "が", "と", "も", "から", "けど", "て"}

func isDefiniteTerminator(text string) bool {
	if text == "" {
		return false
	}
	r := []rune(text)
	last := r[len(r)-1]
	switch last {
	case '？', '！', '?', '!', '。':
		return true
	}
	return false
}

func hasIncompleteSuffix(text string) bool {
	trimmed := strings.TrimRight(text, "\"'）) ")
	if strings.HasSuffix(trimmed, ",") || strings.HasSuffix(trimmed, "、") {
		return true
	}
	if incompleteSuffixWord.MatchString(trimmed) {
		return true
	}
	for _, p := range japaneseIncompleteParticles {
		if strings.HasSuffix(trimmed, p) {
			return true
		}
	}
	return false
}

func isComplete(text string) bool {
	if text == "" {
		return false
	}
	return terminalPunct.MatchString(text) && !hasIncompleteSuffix(text)
}

// Combiner accumulates finalized segments and emits CombinedSentence units.
type Combiner struct {
	mu sync.Mutex

	segmentIDs []string
	texts      []string
	startTs    time.Time
	lastTs     time.Time

	timer *time.Timer
	emit  EmitFunc

	clock func() time.Time
}

// New creates a Combiner that calls emit exactly once per combined sentence.
func New(emit EmitFunc) *Combiner {
	return &Combiner{emit: emit, clock: time.Now}
}

// AddSegment feeds a transcript segment. Non-final segments are ignored.
func (c *Combiner) AddSegment(seg Segment) {
	if !seg.IsFinal {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.texts) == 0 {
		c.startTs = c.clock()
	}
	c.segmentIDs = append(c.segmentIDs, seg.ID)
	c.texts = append(c.texts, seg.Text)
	c.lastTs = c.clock()

	text := c.joinedLocked()

	if isComplete(text) {
		if isDefiniteTerminator(text) || len(c.texts) >= minSegments {
			c.emitLocked()
			return
		}
	}
	if len(c.texts) >= maxSegments {
		c.emitLocked()
		return
	}

	c.armTimerLocked()
}

// ForceEmit flushes the current buffer regardless of completeness or size.
// It is a no-op on an empty buffer.
func (c *Combiner) ForceEmit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.texts) == 0 {
		return
	}
	c.emitLocked()
}

func (c *Combiner) joinedLocked() string {
	parts := make([]string, 0, len(c.texts))
	for _, t := range c.texts {
		t = strings.TrimSpace(t)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (c *Combiner) armTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(timeoutMs*time.Millisecond, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(c.texts) == 0 {
			return
		}
		c.emitLocked()
	})
}

// emitLocked must be called with c.mu held. It clears the buffer and timer
// and invokes the callback exactly once.
func (c *Combiner) emitLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	cs := CombinedSentence{
		ID:           fmt.Sprintf("combined-%d-%s", c.clock().UnixMilli(), uuid.NewString()[:8]),
		SegmentIDs:   c.segmentIDs,
		OriginalText: c.joinedLocked(),
		StartTs:      c.startTs,
		EndTs:        c.lastTs,
		SegmentCount: len(c.texts),
	}

	c.segmentIDs = nil
	c.texts = nil

	if c.emit != nil {
		c.emit(cs)
	}
}

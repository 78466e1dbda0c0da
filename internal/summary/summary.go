// Package summary tracks cumulative transcript word count and triggers
// progressive (threshold) and periodic summaries; no summary is triggered
// at session end. It is grounded
// on the teacher's internal/audio.VAD for its
// threshold/timer state-machine shape (a monotonically tracked counter
// compared against fixed boundaries, plus an independent wall-clock
// timer), generalized from silence-duration tracking to word-count
// tracking.
package summary

import (
	"sync"
	"time"
	"unicode"
)

// DefaultThresholds are the cumulative source-word-count points a
// progressive summary fires at.
func DefaultThresholds() []int {
	return []int{400, 800, 1600, 2400}
}

// DefaultPeriodicInterval is the wall-clock interval periodic summaries
// fire on, independent of the threshold track.
const DefaultPeriodicInterval = 10 * time.Minute

// charBasedMultiplier maps a character-based source language to the word
// multiplier applied (default 4x) so that a character count is comparable
// to a whitespace-language word count.
var charBasedMultiplier = map[string]float64{
	"ja": 4.0,
	"zh": 4.0,
	"ko": 2.5,
	"th": 3.0,
}

// CountWords returns the word count of text for srcLang, applying the
// character-based multiplier when srcLang is a character-based language.
func CountWords(text, srcLang string) int {
	mult, ok := charBasedMultiplier[srcLang]
	if !ok {
		return countWhitespaceWords(text)
	}
	return int(float64(countRunes(text)) / mult)
}

func countWhitespaceWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

func countRunes(text string) int {
	n := 0
	for range text {
		n++
	}
	return n
}

// Trigger is one summary obligation raised by AddSourceText or Tick.
type Trigger struct {
	ThresholdWords int  // 0 when Periodic is true
	Periodic       bool
	CumulativeWords int
}

// TriggerFunc is invoked synchronously for each newly raised Trigger.
type TriggerFunc func(Trigger)

// Tracker accumulates cumulative source word count and raises Trigger
// callbacks for threshold crossings and a periodic wall-clock interval; it
// raises no Trigger at session end. It does not itself call the LLM Gateway; the orchestrator
// composes the prompt and invokes the LLM Gateway in response to each
// Trigger.
type Tracker struct {
	mu sync.Mutex

	thresholds    []int
	crossed       map[int]bool
	cumulative    int
	srcLang       string
	periodicEvery time.Duration
	lastPeriodic  time.Time

	onTrigger TriggerFunc
	clock     func() time.Time
}

// New creates a Tracker for srcLang using the default thresholds and
// periodic interval.
func New(srcLang string, onTrigger TriggerFunc) *Tracker {
	t := &Tracker{
		thresholds:    DefaultThresholds(),
		crossed:       make(map[int]bool),
		srcLang:       srcLang,
		periodicEvery: DefaultPeriodicInterval,
		onTrigger:     onTrigger,
		clock:         time.Now,
	}
	t.lastPeriodic = t.clock()
	return t
}

// SetPeriodicInterval overrides the wall-clock periodic summary interval.
// Callers should set this before the first Tick if they want a non-default
// cadence; it does not itself re-arm lastPeriodic.
func (t *Tracker) SetPeriodicInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.periodicEvery = d
}

// Reset clears accumulated state for a new session
// "On startListening: reset all children".
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cumulative = 0
	t.crossed = make(map[int]bool)
	t.lastPeriodic = t.clock()
}

// CumulativeWords returns the current running total (P5: monotonically
// non-decreasing).
func (t *Tracker) CumulativeWords() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cumulative
}

// AddSourceText adds text's word count to the running total and raises a
// Trigger for each threshold newly crossed. At most one Trigger fires per
// threshold between Resets (P4); Reset clears the crossed set.
func (t *Tracker) AddSourceText(text string) {
	t.mu.Lock()
	t.cumulative += CountWords(text, t.srcLang)
	var fire []Trigger
	for _, th := range t.thresholds {
		if t.cumulative >= th && !t.crossed[th] {
			t.crossed[th] = true
			fire = append(fire, Trigger{ThresholdWords: th, CumulativeWords: t.cumulative})
		}
	}
	cb := t.onTrigger
	t.mu.Unlock()

	if cb == nil {
		return
	}
	for _, tr := range fire {
		cb(tr)
	}
}

// Tick checks the periodic wall-clock interval and raises a periodic
// Trigger if it has elapsed since the last one (or since Reset).
func (t *Tracker) Tick() {
	t.mu.Lock()
	now := t.clock()
	due := now.Sub(t.lastPeriodic) >= t.periodicEvery
	var cumulative int
	if due {
		t.lastPeriodic = now
		cumulative = t.cumulative
	}
	cb := t.onTrigger
	t.mu.Unlock()

	if due && cb != nil {
		cb(Trigger{Periodic: true, CumulativeWords: cumulative})
	}
}

// Package display maintains the rolling set of ≤3 original/translation
// pairs shown in the live view. Every mutation publishes a full, consistent
// snapshot to a subscriber under a single mutex, the same no-torn-reads
// discipline the teacher applies to its WebSocket event sender
// (internal/ws/handler.go's newEventSender serializes every write under one
// mutex).
package display

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	maxDisplayPairs  = 3
	minDisplayTime   = 1500 * time.Millisecond
)

// Position is a pair's slot in the rolling view.
type Position string

const (
	PositionRecent Position = "recent"
	PositionOlder  Position = "older"
	PositionOldest Position = "oldest"
)

// OriginalSide is the left half of a pair.
type OriginalSide struct {
	Text    string
	IsFinal bool
	Ts      time.Time
}

// TranslationSide is the right half of a pair.
type TranslationSide struct {
	Text       string
	IsComplete bool
	Ts         time.Time
}

// Pair is one rolling original/translation row.
type Pair struct {
	PairID      string
	SegmentID   string
	Original    OriginalSide
	Translation TranslationSide
	Position    Position
	Opacity     float64
	Height      int
	StartTime   time.Time
	CompleteTime *time.Time
}

// SubscribeFunc is invoked with the full, ordered pair list after every
// mutation.
type SubscribeFunc func([]Pair)

// Manager maintains the rolling display state.
type Manager struct {
	mu    sync.Mutex
	pairs []*Pair
	sub   SubscribeFunc
	clock func() time.Time

	// alias maps a stripped translation key (history_/paragraph_ prefix
	// removed) to the underlying pair's SegmentID, so a high-quality
	// translation result for a combined sentence or paragraph can still
	// locate the realtime pair it originated from.
	alias map[string]string
}

// New creates an empty Manager publishing snapshots to sub.
func New(sub SubscribeFunc) *Manager {
	return &Manager{sub: sub, clock: time.Now, alias: make(map[string]string)}
}

// RegisterAlias links a prefixed key (e.g. "history_combined-123") to the
// SegmentID of the realtime pair it should update once its translation
// resolves.
func (m *Manager) RegisterAlias(key, baseSegmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alias[stripPrefix(key)] = baseSegmentID
}

func stripPrefix(id string) string {
	if s, ok := strings.CutPrefix(id, "history_"); ok {
		return s
	}
	if s, ok := strings.CutPrefix(id, "paragraph_"); ok {
		return s
	}
	return id
}

func heightOf(text string) int {
	n := len([]rune(text))
	h := (n + 39) / 40
	if h < 1 {
		return 1
	}
	return h
}

// UpdateOriginal applies an interim or final original-text update keyed by
// segmentID, creating a new recent pair if none exists yet.
func (m *Manager) UpdateOriginal(text string, isFinal bool, segmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if p := m.findLocked(segmentID); p != nil {
		p.Original = OriginalSide{Text: text, IsFinal: isFinal, Ts: now}
		if isFinal {
			p.Height = max(heightOf(p.Original.Text), heightOf(p.Translation.Text))
		}
		m.publishLocked()
		return
	}

	p := &Pair{
		PairID:    "pair-" + uuid.NewString()[:8],
		SegmentID: segmentID,
		Original:  OriginalSide{Text: text, IsFinal: isFinal, Ts: now},
		StartTime: now,
	}
	p.Height = heightOf(text)
	m.insertFrontLocked(p)
	m.publishLocked()
}

// UpdateTranslation attaches translated text to the pair resolved from
// segmentID (after stripping known prefixes). A translation arriving after
// CompleteTranslation for the same id is a no-op duplicate.
func (m *Manager) UpdateTranslation(text string, segmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.resolveLocked(segmentID)
	if p == nil || p.Translation.IsComplete {
		return
	}
	p.Translation.Text = text
	p.Translation.Ts = m.clock()
	p.Height = max(heightOf(p.Original.Text), heightOf(p.Translation.Text))
	m.publishLocked()
}

// CompleteTranslation marks the pair's translation final and fixes height.
func (m *Manager) CompleteTranslation(segmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.resolveLocked(segmentID)
	if p == nil || p.Translation.IsComplete {
		return
	}
	now := m.clock()
	p.Translation.IsComplete = true
	p.Translation.Ts = now
	p.CompleteTime = &now
	p.Height = max(heightOf(p.Original.Text), heightOf(p.Translation.Text))
	m.publishLocked()
}

// Reset clears all pairs.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs = nil
	m.alias = make(map[string]string)
	m.publishLocked()
}

func (m *Manager) findLocked(segmentID string) *Pair {
	for _, p := range m.pairs {
		if p.SegmentID == segmentID {
			return p
		}
	}
	return nil
}

func (m *Manager) resolveLocked(segmentID string) *Pair {
	if p := m.findLocked(segmentID); p != nil {
		return p
	}
	stripped := stripPrefix(segmentID)
	if base, ok := m.alias[stripped]; ok {
		return m.findLocked(base)
	}
	return m.findLocked(stripped)
}

// insertFrontLocked adds p as the most recent pair, shifting older pairs
// back. It evicts from the tail while the eviction is eligible
// (translation-complete and on-screen past minDisplayTime), draining any
// backlog in one call rather than dropping at most one pair; the first
// ineligible candidate stops the drain and the list is briefly allowed to
// exceed maxDisplayPairs so an in-progress translation is never yanked
// off-screen mid-read. Sweep clears the remainder once it becomes eligible.
func (m *Manager) insertFrontLocked(p *Pair) {
	m.pairs = append([]*Pair{p}, m.pairs...)

	for len(m.pairs) > maxDisplayPairs {
		cand := m.pairs[len(m.pairs)-1]
		if !m.evictableLocked(cand) {
			break
		}
		m.pairs = m.pairs[:len(m.pairs)-1]
	}
	m.recomputePositionsLocked()
}

func (m *Manager) evictableLocked(p *Pair) bool {
	if !p.Translation.IsComplete || p.CompleteTime == nil {
		return false
	}
	return m.clock().Sub(*p.CompleteTime) >= minDisplayTime
}

// Sweep re-attempts deferred evictions; callers should invoke it
// periodically (e.g. from the orchestrator's tick loop) so an overflow
// pair deferred above eventually clears once its minDisplayTime elapses.
func (m *Manager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.pairs) > maxDisplayPairs {
		cand := m.pairs[len(m.pairs)-1]
		if !m.evictableLocked(cand) {
			break
		}
		m.pairs = m.pairs[:len(m.pairs)-1]
	}
	m.recomputePositionsLocked()
	m.publishLocked()
}

func (m *Manager) recomputePositionsLocked() {
	for i, p := range m.pairs {
		switch i {
		case 0:
			p.Position = PositionRecent
			p.Opacity = 1.0
		case 1:
			p.Position = PositionOlder
			p.Opacity = 0.6
		default:
			p.Position = PositionOldest
			p.Opacity = 0.3
		}
	}
}

func (m *Manager) publishLocked() {
	if m.sub == nil {
		return
	}
	snapshot := make([]Pair, len(m.pairs))
	for i, p := range m.pairs {
		snapshot[i] = *p
	}
	m.sub(snapshot)
}

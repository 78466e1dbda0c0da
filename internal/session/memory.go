package session

import (
	"fmt"
	"sync"
	"time"
)

// Memory is the mutable, mutex-guarded session store. All mutation methods
// are safe for concurrent use; Snapshot never returns the live record.
type Memory struct {
	mu sync.Mutex
	rec Record

	transcriptIdx map[string]int
	historyIdx    map[string]int
	thresholdSeen map[int]bool
}

// New creates an empty session record for sessionID.
func New(sessionID, srcLang, tgtLang string, startTs time.Time) *Memory {
	return &Memory{
		rec: Record{
			SessionID: sessionID,
			StartTs:   startTs,
			SrcLang:   srcLang,
			TgtLang:   tgtLang,
		},
		transcriptIdx: make(map[string]int),
		historyIdx:    make(map[string]int),
		thresholdSeen: make(map[int]bool),
	}
}

// AddTranscript records a transcript segment. Re-delivery of the same id is
// idempotent: a later arrival with the same id replaces the earlier one in
// place rather than appending a duplicate (R1; also models "final
// supersedes prior non-final with the same identity").
func (m *Memory) AddTranscript(t Transcript) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.transcriptIdx[t.ID]; ok {
		m.rec.Transcripts[idx] = t
		return
	}
	m.transcriptIdx[t.ID] = len(m.rec.Transcripts)
	m.rec.Transcripts = append(m.rec.Transcripts, t)
}

// UpsertHistory appends a new combined-sentence entry, or replaces the
// existing one sharing its id (defensive re-delivery guard; CombinedSentence
// values are otherwise immutable once emitted).
func (m *Memory) UpsertHistory(entry HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.historyIdx[entry.ID]; ok {
		m.rec.History[idx] = entry
		return
	}
	m.historyIdx[entry.ID] = len(m.rec.History)
	m.rec.History = append(m.rec.History, entry)
}

// ApplyTranslation attaches or upgrades the translation on the history entry
// identified by id. A second translation carrying the same text as the
// existing one is a no-op, so two identical-content deliveries collapse to
// one history entry (R2).
func (m *Memory) ApplyTranslation(id string, tr Translation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.historyIdx[id]
	if !ok {
		return fmt.Errorf("session: no history entry for id %q", id)
	}
	existing := m.rec.History[idx].Translation
	if existing != nil && existing.Text == tr.Text {
		return nil
	}
	m.rec.History[idx].Translation = &tr
	return nil
}

// AddSummary records a summary. It rejects a second summary sharing a
// non-zero threshold with an existing one (P4); periodic summaries are never
// rejected on that basis.
func (m *Memory) AddSummary(s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !s.Periodic && s.ThresholdWords > 0 {
		if m.thresholdSeen[s.ThresholdWords] {
			return fmt.Errorf("session: threshold %d already summarized", s.ThresholdWords)
		}
		m.thresholdSeen[s.ThresholdWords] = true
	}
	m.rec.Summaries = append(m.rec.Summaries, s)
	return nil
}

// AddVocabulary appends extracted vocabulary items.
func (m *Memory) AddVocabulary(items ...VocabularyItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.Vocabulary = append(m.rec.Vocabulary, items...)
}

// End marks the session closed at t.
func (m *Memory) End(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := t
	m.rec.EndTs = &end
}

// Snapshot returns a deep copy of the current record, safe to serialize or
// hand to a caller without risking a later mutation racing the read.
func (m *Memory) Snapshot() Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Record{
		SessionID: m.rec.SessionID,
		StartTs:   m.rec.StartTs,
		SrcLang:   m.rec.SrcLang,
		TgtLang:   m.rec.TgtLang,
	}
	if m.rec.EndTs != nil {
		end := *m.rec.EndTs
		out.EndTs = &end
	}
	out.Transcripts = append(out.Transcripts, m.rec.Transcripts...)
	out.History = make([]HistoryEntry, len(m.rec.History))
	for i, h := range m.rec.History {
		out.History[i] = h
		out.History[i].SegmentIDs = append([]string(nil), h.SegmentIDs...)
		if h.Translation != nil {
			tr := *h.Translation
			out.History[i].Translation = &tr
		}
	}
	out.Summaries = append(out.Summaries, m.rec.Summaries...)
	out.Vocabulary = append(out.Vocabulary, m.rec.Vocabulary...)
	return out
}

// HistoryByID returns the history entry for id, for callers (the
// orchestrator) that need to locate an entry to upgrade without taking a
// full snapshot.
func (m *Memory) HistoryByID(id string) (HistoryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.historyIdx[id]
	if !ok {
		return HistoryEntry{}, false
	}
	return m.rec.History[idx], true
}

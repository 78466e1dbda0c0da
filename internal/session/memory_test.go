package session

import (
	"testing"
	"time"
)

func TestAddTranscriptDedupByID(t *testing.T) {
	m := New("sess-1", "en", "fr", time.Unix(0, 0))
	m.AddTranscript(Transcript{ID: "t1", Text: "hel", IsFinal: false})
	m.AddTranscript(Transcript{ID: "t1", Text: "hello.", IsFinal: true})

	snap := m.Snapshot()
	if len(snap.Transcripts) != 1 {
		t.Fatalf("got %d transcripts, want 1 (dedup by id)", len(snap.Transcripts))
	}
	if snap.Transcripts[0].Text != "hello." || !snap.Transcripts[0].IsFinal {
		t.Errorf("final delivery did not supersede interim: %+v", snap.Transcripts[0])
	}
}

func TestApplyTranslationUpgrade(t *testing.T) {
	m := New("sess-1", "en", "fr", time.Unix(0, 0))
	m.UpsertHistory(HistoryEntry{ID: "combined-1", OriginalText: "Hello world."})

	if err := m.ApplyTranslation("combined-1", Translation{KeyID: "combined-1", Text: "Bonjour le monde."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, ok := m.HistoryByID("combined-1")
	if !ok {
		t.Fatal("expected history entry to exist")
	}
	if entry.Translation == nil || entry.Translation.Text != "Bonjour le monde." {
		t.Errorf("translation not applied: %+v", entry.Translation)
	}
}

func TestApplyTranslationSameTextIsNoop(t *testing.T) {
	m := New("sess-1", "en", "fr", time.Unix(0, 0))
	m.UpsertHistory(HistoryEntry{ID: "combined-1", OriginalText: "Hello world."})
	m.ApplyTranslation("combined-1", Translation{Text: "Bonjour."})
	m.ApplyTranslation("combined-1", Translation{Text: "Bonjour."})

	snap := m.Snapshot()
	if len(snap.History) != 1 {
		t.Fatalf("got %d history entries, want 1", len(snap.History))
	}
}

func TestAddSummaryRejectsDuplicateThreshold(t *testing.T) {
	m := New("sess-1", "en", "fr", time.Unix(0, 0))
	if err := m.AddSummary(Summary{ID: "s1", ThresholdWords: 400}); err != nil {
		t.Fatalf("unexpected error on first summary: %v", err)
	}
	if err := m.AddSummary(Summary{ID: "s2", ThresholdWords: 400}); err == nil {
		t.Error("expected error on duplicate threshold (P4)")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := New("sess-1", "en", "fr", time.Unix(0, 0))
	m.UpsertHistory(HistoryEntry{ID: "h1", SegmentIDs: []string{"a"}})

	snap := m.Snapshot()
	snap.History[0].SegmentIDs[0] = "mutated"

	fresh := m.Snapshot()
	if fresh.History[0].SegmentIDs[0] != "a" {
		t.Error("mutating a snapshot leaked into the live record")
	}
}

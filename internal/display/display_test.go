package display

import (
	"testing"
	"time"
)

func TestUpdateOriginalCreatesRecentPair(t *testing.T) {
	var snaps [][]Pair
	m := New(func(p []Pair) { snaps = append(snaps, p) })

	m.UpdateOriginal("Hello", false, "seg-1")

	last := snaps[len(snaps)-1]
	if len(last) != 1 {
		t.Fatalf("got %d pairs, want 1", len(last))
	}
	if last[0].Position != PositionRecent || last[0].Opacity != 1.0 {
		t.Errorf("got position=%v opacity=%v, want recent/1.0", last[0].Position, last[0].Opacity)
	}
}

func TestAtMostThreePairsInSteadyState(t *testing.T) {
	var last []Pair
	m := New(func(p []Pair) { last = p })

	now := time.Unix(0, 0)
	m.clock = func() time.Time { return now }

	for i := 1; i <= 4; i++ {
		id := segID(i)
		m.UpdateOriginal("text", true, id)
		m.UpdateTranslation("translated", id)
		m.CompleteTranslation(id)
		now = now.Add(2 * time.Second)
	}
	m.Sweep()

	if len(last) > maxDisplayPairs {
		t.Fatalf("got %d pairs, want <= %d (P1) once oldest completed pairs are evictable", len(last), maxDisplayPairs)
	}
}

func TestPositionsFormOnePermutation(t *testing.T) {
	var last []Pair
	m := New(func(p []Pair) { last = p })

	m.UpdateOriginal("a", false, "seg-1")
	m.UpdateOriginal("b", false, "seg-2")
	m.UpdateOriginal("c", false, "seg-3")

	seen := map[Position]bool{}
	for _, p := range last {
		if seen[p.Position] {
			t.Fatalf("duplicate position %v in %+v (P2)", p.Position, last)
		}
		seen[p.Position] = true
	}
}

func TestTranslationIgnoredAfterComplete(t *testing.T) {
	var last []Pair
	m := New(func(p []Pair) { last = p })

	m.UpdateOriginal("Hello", true, "seg-1")
	m.UpdateTranslation("Bonjour", "seg-1")
	m.CompleteTranslation("seg-1")
	m.UpdateTranslation("Bonjour tout le monde", "seg-1")

	if last[0].Translation.Text != "Bonjour" {
		t.Errorf("late translation was applied after completion (P6): got %q", last[0].Translation.Text)
	}
}

func TestAliasResolvesHistoryPrefixedTranslation(t *testing.T) {
	var last []Pair
	m := New(func(p []Pair) { last = p })

	m.UpdateOriginal("Hello world.", true, "seg-1")
	m.RegisterAlias("history_combined-1", "seg-1")
	m.UpdateTranslation("Bonjour le monde.", "history_combined-1")

	if last[0].Translation.Text != "Bonjour le monde." {
		t.Errorf("alias-routed translation not applied: %+v", last[0])
	}
}

func TestResetClearsPairs(t *testing.T) {
	var last []Pair
	m := New(func(p []Pair) { last = p })
	m.UpdateOriginal("Hello", false, "seg-1")
	m.Reset()
	if len(last) != 0 {
		t.Errorf("got %d pairs after reset, want 0", len(last))
	}
}

func TestOverflowDeferredUntilMinDisplayTimeElapses(t *testing.T) {
	var last []Pair
	m := New(func(p []Pair) { last = p })
	m.clock = func() time.Time { return time.Unix(0, 0) }

	for i := 1; i <= 3; i++ {
		id := segID(i)
		m.UpdateOriginal("text", true, id)
		m.UpdateTranslation("t", id)
		m.CompleteTranslation(id)
	}
	// oldest just completed at t=0; a new pair should not evict it yet.
	m.UpdateOriginal("newest", true, segID(4))
	if len(last) != 4 {
		t.Fatalf("got %d pairs, want 4 (eviction deferred, not yet readable long enough)", len(last))
	}

	m.clock = func() time.Time { return time.Unix(0, 0).Add(2 * time.Second) }
	m.Sweep()
	if len(last) > maxDisplayPairs {
		t.Errorf("got %d pairs after sweep, want <= %d once minDisplayTime elapsed", len(last), maxDisplayPairs)
	}
}

func segID(i int) string {
	return "seg-" + string(rune('0'+i))
}

package summary

import "testing"

func TestParseVocabularyExtractsTermDefinitionContext(t *testing.T) {
	text := "Eigenvalue: a scalar such that Av = λv (mentioned during the matrix decomposition example)\n" +
		"Homomorphism: a structure-preserving map between algebraic objects"

	items := ParseVocabulary(text)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Term != "Eigenvalue" {
		t.Errorf("got term %q", items[0].Term)
	}
	if items[0].Context == "" {
		t.Error("expected context to be extracted from trailing parens")
	}
	if items[1].Context != "" {
		t.Error("expected no context when no trailing parens present")
	}
}

func TestParseVocabularyIgnoresBlankAndMalformedLines(t *testing.T) {
	items := ParseVocabulary("\n- Just a bullet with no colon\n\nTerm: def\n")
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}

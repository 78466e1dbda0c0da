package llmgateway

import "testing"

func TestCleanOutputStripsLabelPrefix(t *testing.T) {
	got := CleanOutput("Translation: Bonjour le monde")
	if got != "Bonjour le monde" {
		t.Errorf("got %q", got)
	}
}

func TestCleanOutputStripsThinkBlock(t *testing.T) {
	got := CleanOutput("<think>reasoning about the sentence</think>\nHola mundo")
	if got != "Hola mundo" {
		t.Errorf("got %q", got)
	}
}

func TestCleanOutputUnwrapsCodeFence(t *testing.T) {
	got := CleanOutput("```\nHello there\n```")
	if got != "Hello there" {
		t.Errorf("got %q", got)
	}
}

func TestCleanOutputLeavesPlainTextAlone(t *testing.T) {
	got := CleanOutput("  Just a normal sentence.  ")
	if got != "Just a normal sentence." {
		t.Errorf("got %q", got)
	}
}

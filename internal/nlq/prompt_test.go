package nlq

import (
	"strings"
	"testing"

	"github.com/bauquery/bauquery/internal/schema"
	"github.com/bauquery/bauquery/internal/session"
)

func TestBuildPromptIncludesSchemaAndQuestion(t *testing.T) {
	systemMsg, userMsg, err := BuildPrompt(schema.Construction(), "Wie viele Brandmelder gibt es?", nil)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{"TABLE stories", "TABLE elements", "VIEW element_totals_view", `{"sql"`} {
		if !strings.Contains(systemMsg, want) {
			t.Errorf("system message missing %q", want)
		}
	}
	if !strings.Contains(userMsg, "Wie viele Brandmelder gibt es?") {
		t.Fatalf("user message = %q", userMsg)
	}
	if strings.Contains(userMsg, "Previous turns") {
		t.Fatal("user message mentions prior turns without any")
	}
}

func TestBuildPromptCarriesPriorTurns(t *testing.T) {
	prior := []session.Turn{
		{Utterance: "Wie viele Brandmelder gibt es?", SQL: "SELECT total_quantity FROM element_totals_view WHERE element_name = 'Brandmelder'"},
	}
	_, userMsg, err := BuildPrompt(schema.Construction(), "Und im Erdgeschoss?", prior)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(userMsg, "Q: Wie viele Brandmelder gibt es?") {
		t.Fatalf("user message missing prior question: %q", userMsg)
	}
	if !strings.Contains(userMsg, "SQL: SELECT total_quantity") {
		t.Fatalf("user message missing prior SQL: %q", userMsg)
	}
}

func TestBuildPromptRejectsEmptyUtterance(t *testing.T) {
	_, _, err := BuildPrompt(schema.Construction(), "   ", nil)
	if KindOf(err) != KindInvalidInput {
		t.Fatalf("kind = %v, want %v", KindOf(err), KindInvalidInput)
	}
}

func TestBuildPromptRejectsOversizedUtterance(t *testing.T) {
	_, _, err := BuildPrompt(schema.Construction(), strings.Repeat("ä", maxUtteranceRunes+1), nil)
	if KindOf(err) != KindInvalidInput {
		t.Fatalf("kind = %v, want %v", KindOf(err), KindInvalidInput)
	}
}

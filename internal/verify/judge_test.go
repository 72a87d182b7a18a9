package verify

import (
	"context"
	"testing"

	"github.com/ppiankov/veridica/internal/model"
)

func TestLexicalJudge_Entailment(t *testing.T) {
	judge := NewLexicalJudge()
	chunk := model.Chunk{ID: "pdf-1-000",
		Text: "The FM-200 flow meter delivers a maximum flow rate of 300 l/min with accuracy of 0.5 percent."}

	j, _, err := judge.Judge(context.Background(), "maximum flow rate of 300 l/min with accuracy", chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != JudgmentEntailed {
		t.Errorf("expected entailed, got %s", j)
	}
}

func TestLexicalJudge_NegationMismatch(t *testing.T) {
	judge := NewLexicalJudge()
	chunk := model.Chunk{ID: "pdf-1-000",
		Text: "The device is not certified for hazardous area installation."}

	j, _, err := judge.Judge(context.Background(), "The device is certified for hazardous area installation", chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != JudgmentContradicted {
		t.Errorf("expected contradicted on polarity flip, got %s", j)
	}
}

func TestLexicalJudge_UnrelatedNeutral(t *testing.T) {
	judge := NewLexicalJudge()
	chunk := model.Chunk{ID: "pdf-1-000", Text: "Warranty covers two years from date of purchase."}

	j, _, err := judge.Judge(context.Background(), "maximum operating pressure reaches sixteen bar nominal", chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != JudgmentNeutral {
		t.Errorf("expected neutral for unrelated text, got %s", j)
	}
}

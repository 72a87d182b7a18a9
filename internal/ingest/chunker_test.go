package ingest

import (
	"strings"
	"testing"

	"github.com/ppiankov/veridica/internal/model"
)

func TestChunkPDF_StableIDs(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "First page text."},
		{Number: 3, Text: "Third page text (second page was empty)."},
	}
	c := NewChunker(1200, 150)

	first := c.ChunkPDF("doc", "spec.pdf", pages)
	second := c.ChunkPDF("doc", "spec.pdf", pages)

	if len(first) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(first))
	}
	if first[0].ID != "pdf-1-000" || first[1].ID != "pdf-3-000" {
		t.Errorf("ids must encode page and position, got %s, %s", first[0].ID, first[1].ID)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("re-chunking the same document must yield the same ids: %s vs %s", first[i].ID, second[i].ID)
		}
	}
	if first[0].Source.Kind != model.SourcePDF || first[0].Source.Page != 1 {
		t.Errorf("chunk must carry its source location: %+v", first[0].Source)
	}
}

func TestChunkPDF_SplitsLongPages(t *testing.T) {
	paras := make([]string, 12)
	for i := range paras {
		paras[i] = strings.Repeat("specification detail ", 20)
	}
	pages := []Page{{Number: 1, Text: strings.Join(paras, "\n\n")}}

	chunks := NewChunker(800, 100).ChunkPDF("doc", "spec.pdf", pages)
	if len(chunks) < 2 {
		t.Fatalf("long page should split into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 800 {
			t.Errorf("chunk %s exceeds max chars: %d", c.ID, len(c.Text))
		}
	}
	for i, c := range chunks {
		if c.Seq != i {
			t.Errorf("seq must be contiguous, chunk %d has seq %d", i, c.Seq)
		}
	}
}

func TestChunkPDF_WindowOverlap(t *testing.T) {
	// One giant paragraph with no breaks forces the sliding window.
	text := strings.Repeat("x", 3000)
	chunks := NewChunker(1000, 200).ChunkPDF("doc", "spec.pdf", []Page{{Number: 1, Text: text}})

	if len(chunks) < 3 {
		t.Fatalf("expected windowed chunks, got %d", len(chunks))
	}
	// Consecutive windows share their overlap region.
	tail := chunks[0].Text[len(chunks[0].Text)-200:]
	if !strings.HasPrefix(chunks[1].Text, tail) {
		t.Error("expected window overlap between consecutive chunks")
	}
}

func TestChunkURL_IDs(t *testing.T) {
	text := "Product overview.\n\nTechnical details."
	chunks := NewChunker(1200, 150).ChunkURL("doc", "https://example.com/p", text)

	if len(chunks) != 1 {
		t.Fatalf("short text should stay one chunk, got %d", len(chunks))
	}
	if chunks[0].ID != "url-000" {
		t.Errorf("expected url-000, got %s", chunks[0].ID)
	}
	if chunks[0].Source.Kind != model.SourceURL || chunks[0].Source.URL != "https://example.com/p" {
		t.Errorf("chunk must carry its source url: %+v", chunks[0].Source)
	}
}

func TestChunker_EmptyTextProducesNothing(t *testing.T) {
	chunks := NewChunker(1200, 150).ChunkURL("doc", "https://example.com", "   \n\n  ")
	if len(chunks) != 0 {
		t.Errorf("whitespace-only input must produce no chunks, got %d", len(chunks))
	}
}

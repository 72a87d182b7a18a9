package ingest

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veridica/internal/model"
)

// Chunker splits extracted text into chunks with stable ids. Ids encode
// the source and position ("pdf-3-002", "url-007") so they stay stable
// across re-ingestion of the same document.
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker creates a chunker. maxChars <= 0 falls back to 1200.
func NewChunker(maxChars, overlap int) *Chunker {
	if maxChars <= 0 {
		maxChars = 1200
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = 0
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// ChunkPDF turns parsed PDF pages into chunks for one document.
func (c *Chunker) ChunkPDF(docID, filename string, pages []Page) []model.Chunk {
	var chunks []model.Chunk
	seq := 0
	for _, page := range pages {
		for i, part := range c.split(page.Text) {
			chunks = append(chunks, model.Chunk{
				ID:    fmt.Sprintf("pdf-%d-%03d", page.Number, i),
				DocID: docID,
				Seq:   seq,
				Text:  part,
				Source: model.ChunkSource{
					Kind: model.SourcePDF,
					File: filename,
					Page: page.Number,
				},
			})
			seq++
		}
	}
	return chunks
}

// ChunkURL turns scraped page text into chunks for one document.
func (c *Chunker) ChunkURL(docID, url, text string) []model.Chunk {
	var chunks []model.Chunk
	for i, part := range c.split(text) {
		chunks = append(chunks, model.Chunk{
			ID:    fmt.Sprintf("url-%03d", i),
			DocID: docID,
			Seq:   i,
			Text:  part,
			Source: model.ChunkSource{
				Kind: model.SourceURL,
				URL:  url,
			},
		})
	}
	return chunks
}

// split packs paragraphs into chunks up to maxChars, falling back to a
// sliding window over runs of text with no paragraph breaks.
func (c *Chunker) split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.maxChars {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	flush := func() {
		part := strings.TrimSpace(buf.String())
		if part != "" {
			out = append(out, part)
		}
		buf.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > c.maxChars {
			flush()
			out = append(out, c.window(para)...)
			continue
		}
		if buf.Len()+len(para)+2 > c.maxChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()
	return out
}

// window slides over text in maxChars steps with the configured overlap.
func (c *Chunker) window(text string) []string {
	runes := []rune(text)
	step := c.maxChars - c.overlap
	if step <= 0 {
		step = c.maxChars
	}
	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + c.maxChars
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[i:end]))
		if part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

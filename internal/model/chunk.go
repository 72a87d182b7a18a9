package model

// Chunk is an immutable, addressable excerpt of source text.
// Ids are stable for the lifetime of a project; everything downstream
// (provenance, citations, verification) depends on that.
type Chunk struct {
	ID     string       `json:"id"`         // e.g. "pdf-3-002", "url-007"
	DocID  string       `json:"doc_id"`     // source document within the project
	Seq    int          `json:"seq"`        // ordering within the document
	Text   string       `json:"text"`
	Source ChunkSource  `json:"source"`
}

// ChunkSource locates a chunk in its original document.
type ChunkSource struct {
	Kind    SourceKind `json:"kind"`
	File    string     `json:"file,omitempty"`    // PDF filename
	Page    int        `json:"page,omitempty"`    // 1-based PDF page
	URL     string     `json:"url,omitempty"`     // web source
	Section string     `json:"section,omitempty"` // heading path when known
}

// SourceKind classifies where a chunk came from.
type SourceKind string

const (
	SourcePDF SourceKind = "pdf"
	SourceURL SourceKind = "url"
)

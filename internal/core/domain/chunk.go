package domain

// Position locates text inside the source file.
// PDFs and DOCX files set Page; spreadsheets set Sheet.
type Position struct {
	// Page is the 1-based page number, zero when not applicable.
	Page int

	// Sheet is the worksheet name, empty when not applicable.
	Sheet string
}

// IsZero reports whether no positional information is attached.
func (p Position) IsZero() bool {
	return p.Page == 0 && p.Sheet == ""
}

// Segment is one ordered piece of extracted text.
type Segment struct {
	Text     string
	Position Position
}

// Chunk is a token window of a document, the unit of embedding and retrieval.
type Chunk struct {
	// ID is deterministic for a (document, ordinal) pair so re-indexing replaces it.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Ordinal is the 0-based position within the document.
	Ordinal int

	// Content is the decoded text of the window.
	Content string

	// TokenStart is the offset of the first token in the document token stream.
	TokenStart int

	// TokenCount is the number of tokens in the window.
	TokenCount int

	// Position is where the window starts.
	Position Position

	// EndPage is the last page the window spans, zero when not paged.
	EndPage int

	// Embedding is the vector representation, filled in before indexing.
	Embedding []float32
}

// ChunkPayload is the document metadata stored alongside each indexed vector.
type ChunkPayload struct {
	Filename string
	Format   Format
}

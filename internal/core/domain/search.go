package domain

import (
	"sort"
	"strings"
)

// DefaultTopK is the number of chunks retrieved when a query does not say.
const DefaultTopK = 5

// MaxTopK bounds the number of chunks a single query may retrieve.
const MaxTopK = 50

// VectorHit is one nearest-neighbour match returned by a vector index.
type VectorHit struct {
	// Chunk carries the stored payload; Embedding is not populated.
	Chunk Chunk

	// Filename is the owning document name stored with the vector.
	Filename string

	// Score is the cosine similarity, higher is closer.
	Score float64
}

// QueryRequest is a question against the indexed documents.
type QueryRequest struct {
	// Question is the natural-language question.
	Question string

	// DocumentIDs restricts retrieval when non-empty.
	DocumentIDs []string

	// TopK is the number of chunks to retrieve, DefaultTopK when zero.
	TopK int
}

// Citation is a retrieved chunk surfaced with an answer.
type Citation struct {
	DocumentID   string
	DocumentName string
	ChunkID      string
	Position     Position
	Score        float64
	Text         string
}

// Answer is the response to a QueryRequest.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Sources are in the order they were presented to the model.
	Sources []Citation

	// Model is the generation model used, empty when generation was skipped.
	Model string
}

// NoRelevantContentAnswer is returned when retrieval finds nothing.
const NoRelevantContentAnswer = "I couldn't find any relevant information in the documents to answer your question."

// SortHits orders hits by descending score, ties by ascending chunk ID.
func SortHits(hits []VectorHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return strings.Compare(hits[i].Chunk.ID, hits[j].Chunk.ID) < 0
	})
}

// PreviewLen is the number of characters of citation text shown to clients.
const PreviewLen = 300

// Preview returns the citation text cut to PreviewLen characters.
func (c Citation) Preview() string {
	runes := []rune(c.Text)
	if len(runes) <= PreviewLen {
		return c.Text
	}
	return string(runes[:PreviewLen]) + "..."
}

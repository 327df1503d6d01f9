// Package chunker splits extracted document text into overlapping token windows.
package chunker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of tokens shared by neighbouring chunks.
const DefaultChunkOverlap = 100

// SegmentSeparator is placed between consecutive segments in the token stream.
const SegmentSeparator = "\n\n"

// chunkNamespace scopes deterministic chunk ids.
var chunkNamespace = uuid.MustParse("6f1f4c6e-2b7a-4c1e-9a55-3d0f8c0a7e21")

// Chunker produces fixed-size token windows over a document.
type Chunker struct {
	size      int
	overlap   int
	tokenizer Tokenizer
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithOverlap sets the number of tokens repeated from the previous window.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// WithTokenizer replaces the default cl100k_base tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) {
		c.tokenizer = t
	}
}

// New creates a chunker. Size must be positive and overlap in [0, size).
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.size <= 0 {
		return nil, domain.NewValidationError("chunk_size", "must be positive")
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return nil, domain.NewValidationError("chunk_overlap", fmt.Sprintf("must be in [0, %d)", c.size))
	}

	if c.tokenizer == nil {
		t, err := NewTiktoken(DefaultEncoding)
		if err != nil {
			return nil, err
		}
		c.tokenizer = t
	}
	return c, nil
}

// Size returns the window size in tokens.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in tokens.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk tokenizes the segments as one stream and cuts it into windows
// starting every size-overlap tokens. The final window may be short.
//
// BPE tokens may carry part of a multi-byte character, so each window is
// widened to the nearest token boundaries that fall between characters:
// the start moves back and the end moves forward. Window count and nominal
// starts are unaffected.
func (c *Chunker) Chunk(ctx context.Context, documentID string, segments []domain.Segment) ([]domain.Chunk, error) {
	tokens, starts := c.tokenize(segments)
	total := len(tokens)
	if total == 0 {
		return nil, nil
	}

	text, offsets := c.byteOffsets(tokens)
	step := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, Count(total, c.size, c.overlap))

	for nominal := 0; ; nominal += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nominalEnd := min(nominal+c.size, total)
		start := nominal
		for start > 0 && !runeBoundary(text, offsets[start]) {
			start--
		}
		end := nominalEnd
		for end < total && !runeBoundary(text, offsets[end]) {
			end++
		}

		ordinal := len(chunks)
		first := segmentAt(starts, start)
		last := segmentAt(starts, end-1)

		chunks = append(chunks, domain.Chunk{
			ID:         ChunkID(documentID, ordinal),
			DocumentID: documentID,
			Ordinal:    ordinal,
			Content:    text[offsets[start]:offsets[end]],
			TokenStart: start,
			TokenCount: end - start,
			Position:   segments[first].Position,
			EndPage:    segments[last].Position.Page,
		})

		if nominalEnd >= total {
			break
		}
	}

	return chunks, nil
}

// byteOffsets decodes tokens one at a time and returns the decoded text with
// the byte offset at which every token begins; offsets[len(tokens)] is len(text).
func (c *Chunker) byteOffsets(tokens []int) (string, []int) {
	offsets := make([]int, len(tokens)+1)
	var b []byte
	for i, tok := range tokens {
		offsets[i] = len(b)
		b = append(b, c.tokenizer.Decode([]int{tok})...)
	}
	offsets[len(tokens)] = len(b)
	return string(b), offsets
}

// runeBoundary reports whether offset does not split a UTF-8 sequence.
func runeBoundary(text string, offset int) bool {
	return offset >= len(text) || utf8.RuneStart(text[offset])
}

// tokenize returns the document token stream and the offset where each
// segment's tokens begin.
func (c *Chunker) tokenize(segments []domain.Segment) ([]int, []int) {
	var tokens []int
	starts := make([]int, len(segments))
	for i, seg := range segments {
		starts[i] = len(tokens)
		text := seg.Text
		if i < len(segments)-1 {
			text += SegmentSeparator
		}
		tokens = append(tokens, c.tokenizer.Encode(text)...)
	}
	return tokens, starts
}

// segmentAt returns the index of the segment owning token offset.
func segmentAt(starts []int, offset int) int {
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
	if i == 0 {
		return 0
	}
	return i - 1
}

// Count returns the number of windows for total tokens:
// ceil((total-overlap)/(size-overlap)), one when total <= size, zero when empty.
func Count(total, size, overlap int) int {
	if total <= 0 {
		return 0
	}
	if total <= size {
		return 1
	}
	step := size - overlap
	return (total - overlap + step - 1) / step
}

// ChunkID returns the stable id of the chunk at ordinal within documentID.
func ChunkID(documentID string, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"/"+strconv.Itoa(ordinal))).String()
}

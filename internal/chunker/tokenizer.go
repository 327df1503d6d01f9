package chunker

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Tokenizer converts between text and token ids.
// Decode(Encode(s)) must return s.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

var loaderOnce sync.Once

// Tiktoken is a Tokenizer backed by a tiktoken BPE encoding.
// Ranks are loaded from the embedded offline tables, so no network is needed.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, e.g. "cl100k_base".
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode tokenizes text; special token markers are treated as plain text.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.EncodeOrdinary(text)
}

// Decode returns the text of tokens.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

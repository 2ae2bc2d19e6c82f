// Package chunker splits extracted document text into overlapping chunks.
//
// The splitter is recursive: text is cut on the coarsest separator first
// (paragraph break), and any piece still longer than the chunk size is cut
// again with the next separator (line break, space, and finally a hard cut
// between characters). Separators stay attached to the start of the piece
// that follows them, so "alpha beta" splits into "alpha" and " beta". Pieces
// are then merged greedily into chunks, carrying the tail of the previous
// chunk forward as overlap. All lengths are counted in runes.
package chunker

import (
	"errors"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 50
)

var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

var ErrInvalidOverlap = errors.New("chunk overlap must be smaller than chunk size")

type Splitter struct {
	size    int
	overlap int
	rc      textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, ErrInvalidOverlap
	}
	return &Splitter{
		size:    size,
		overlap: overlap,
		rc: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(DefaultSeparators),
			textsplitter.WithKeepSeparator(true),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Default returns a splitter with the default size and overlap.
func Default() *Splitter {
	s, _ := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	return s
}

// Split returns the chunks of text. Empty input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	// the recursive character splitter has no failing path
	chunks, err := s.rc.SplitText(text)
	if err != nil || len(chunks) == 0 {
		return nil
	}
	return chunks
}

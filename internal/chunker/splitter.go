// Package chunker provides a recursive character text splitter.
//
// Text is split on the coarsest separator present (blank line, line break,
// sentence end, space, then single characters) and the pieces are merged back
// into chunks of at most ChunkSize characters. Each chunk after the first
// starts with the trailing pieces of its predecessor, up to Overlap characters,
// so overlaps always begin on a separator boundary.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure Splitter implements the interface.
var _ driven.TextSplitter = (*Splitter)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// DefaultSeparators are tried in order, coarsest first. The empty separator
// splits into single characters and always terminates the recursion.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

// Splitter splits text into overlapping chunks.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		s.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		s.overlap = overlap
	}
}

// WithSeparators replaces the separator hierarchy.
// A trailing "" is added if missing.
func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		seps := append([]string(nil), separators...)
		if len(seps) == 0 || seps[len(seps)-1] != "" {
			seps = append(seps, "")
		}
		s.separators = seps
	}
}

// New creates a splitter. It fails with a *domain.ConfigurationError unless
// 0 <= overlap < chunkSize.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.chunkSize <= 0 {
		return nil, &domain.ConfigurationError{
			Field:  "chunking.size",
			Reason: fmt.Sprintf("chunk size must be positive, got %d", s.chunkSize),
		}
	}
	if s.overlap < 0 || s.overlap >= s.chunkSize {
		return nil, &domain.ConfigurationError{
			Field:  "chunking.overlap",
			Reason: fmt.Sprintf("overlap %d must be at least 0 and less than chunk size %d", s.overlap, s.chunkSize),
		}
	}
	return s, nil
}

// ChunkSize returns the maximum chunk length in characters.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the number of characters shared by adjacent chunks.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split returns the chunks of text in order. Blank input yields no chunks and
// text shorter than the chunk size yields exactly one.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if length(text) <= s.chunkSize {
		return []string{strings.TrimSpace(text)}
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator, rest := pickSeparator(text, separators)
	pieces := splitKeep(text, separator)

	var chunks []string
	var fitting []string
	for _, piece := range pieces {
		if length(piece) < s.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting)...)
			fitting = nil
		}
		if len(rest) == 0 {
			if piece = strings.TrimSpace(piece); piece != "" {
				chunks = append(chunks, piece)
			}
			continue
		}
		chunks = append(chunks, s.split(piece, rest)...)
	}
	if len(fitting) > 0 {
		chunks = append(chunks, s.merge(fitting)...)
	}
	return chunks
}

// merge packs pieces into chunks no longer than chunkSize, carrying trailing
// pieces of up to overlap characters into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		n := length(piece)
		if total+n > s.chunkSize && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(window) > 0 && (total > s.overlap || total+n > s.chunkSize) {
				total -= length(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// pickSeparator returns the first separator present in text and the finer
// separators after it.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeep splits text after each separator, keeping the separator at the end
// of the preceding piece so joining the pieces restores the text.
func splitKeep(text, separator string) []string {
	if separator == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	return strings.SplitAfter(text, separator)
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

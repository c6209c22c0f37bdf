package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func mustNew(t *testing.T, opts ...Option) *Splitter {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

// sharedOverlap returns the length of the longest prefix of next that is a suffix of prev.
func sharedOverlap(prev, next string) int {
	for k := min(len(prev), len(next)); k > 0; k-- {
		if strings.HasSuffix(prev, next[:k]) {
			return k
		}
	}
	return 0
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%03d", i)
	}
	return strings.Join(parts, " ")
}

func TestNew_Defaults(t *testing.T) {
	s := mustNew(t)

	assert.Equal(t, 1000, s.ChunkSize())
	assert.Equal(t, 200, s.Overlap())
}

func TestNew_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		field string
	}{
		{"overlap equals size", []Option{WithChunkSize(100), WithOverlap(100)}, "chunking.overlap"},
		{"overlap exceeds size", []Option{WithChunkSize(100), WithOverlap(150)}, "chunking.overlap"},
		{"negative overlap", []Option{WithOverlap(-1)}, "chunking.overlap"},
		{"zero size", []Option{WithChunkSize(0)}, "chunking.size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.opts...)

			require.Error(t, err)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	s := mustNew(t)

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("  \n\n \t"))
}

func TestSplit_ShortDocumentIsOneChunk(t *testing.T) {
	s := mustNew(t, WithChunkSize(1000))
	text := "The quick brown fox jumps over the lazy dog."

	chunks := s.Split(text + "\n")

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	s := mustNew(t, WithChunkSize(40), WithOverlap(0))
	text := "First paragraph is here.\n\nSecond paragraph is here.\n\nThird paragraph is here."

	chunks := s.Split(text)

	assert.Equal(t, []string{
		"First paragraph is here.",
		"Second paragraph is here.",
		"Third paragraph is here.",
	}, chunks)
}

func TestSplit_FallsBackToSentences(t *testing.T) {
	s := mustNew(t, WithChunkSize(30), WithOverlap(0))
	text := "One short sentence. Another short one. A third sentence here."

	chunks := s.Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "One short sentence.", chunks[0])
	assert.Equal(t, "Another short one.", chunks[1])
	assert.Equal(t, "A third sentence here.", chunks[2])
}

func TestSplit_TinyChunksSkipWhitespace(t *testing.T) {
	s := mustNew(t, WithChunkSize(1), WithOverlap(0))

	assert.Equal(t, []string{"a", "b"}, s.Split("a b"))

	for _, size := range []int{1, 2, 3} {
		s := mustNew(t, WithChunkSize(size), WithOverlap(0))
		for _, chunk := range s.Split("one two.  three\n\nfour \t five") {
			assert.NotEmpty(t, chunk, "size %d", size)
		}
	}
}

func TestSplit_CharacterLevelOverlapIsExact(t *testing.T) {
	s := mustNew(t, WithChunkSize(10), WithOverlap(3))
	text := "abcdefghijklmnopqrstuvwxyz"

	chunks := s.Split(text)

	assert.Equal(t, []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}, chunks)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1][len(chunks[i-1])-3:], chunks[i][:3])
	}
}

func TestSplit_ChunkLengthAndOverlapInvariants(t *testing.T) {
	text := words(400)

	for _, tc := range []struct{ size, overlap int }{
		{50, 0},
		{50, 10},
		{100, 30},
		{200, 50},
		{1000, 200},
	} {
		t.Run(fmt.Sprintf("size=%d overlap=%d", tc.size, tc.overlap), func(t *testing.T) {
			s := mustNew(t, WithChunkSize(tc.size), WithOverlap(tc.overlap))

			chunks := s.Split(text)

			require.NotEmpty(t, chunks)
			for i, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), tc.size, "chunk %d too long", i)
			}
			for i := 1; i < len(chunks); i++ {
				shared := sharedOverlap(chunks[i-1], chunks[i])
				assert.LessOrEqual(t, shared, tc.overlap, "chunks %d/%d overlap too much", i-1, i)
				if tc.overlap >= 8 {
					assert.Positive(t, shared, "chunks %d/%d should overlap", i-1, i)
				}
			}
		})
	}
}

func TestSplit_CoversWholeText(t *testing.T) {
	s := mustNew(t, WithChunkSize(60), WithOverlap(0))
	text := words(100)

	chunks := s.Split(text)

	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	s := mustNew(t, WithChunkSize(5), WithOverlap(0))

	chunks := s.Split("ééééééééé")

	assert.Equal(t, []string{"ééééé", "éééé"}, chunks)
}

func TestWithSeparators(t *testing.T) {
	s := mustNew(t, WithChunkSize(6), WithOverlap(0), WithSeparators("|"))

	chunks := s.Split("ab|cd|ef|gh")

	assert.Equal(t, []string{"ab|cd|", "ef|gh"}, chunks)
}

package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

const testDimensions = 1024

// bagEmbedder embeds text as a bag of hashed lower-cased words, so texts
// sharing words score close under cosine similarity.
type bagEmbedder struct {
	mu         sync.Mutex
	dimensions int
	batches    int
	queries    int
	err        error
	errCount   int
}

func newBagEmbedder() *bagEmbedder {
	return &bagEmbedder{dimensions: testDimensions}
}

func (e *bagEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32())%e.dimensions]++
	}
	return v
}

func (e *bagEmbedder) failure() error {
	if e.err == nil {
		return nil
	}
	if e.errCount == 0 {
		return e.err
	}
	e.errCount--
	err := e.err
	if e.errCount == 0 {
		e.err = nil
	}
	return err
}

func (e *bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries++
	if err := e.failure(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *bagEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches++
	if err := e.failure(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *bagEmbedder) Dimensions() int { return e.dimensions }
func (e *bagEmbedder) ModelName() string { return "bag-of-words" }
func (e *bagEmbedder) Ping(_ context.Context) error { return nil }
func (e *bagEmbedder) Close() error { return nil }

// scriptedLLM records every request and replies from a script.
type scriptedLLM struct {
	mu       sync.Mutex
	requests [][]driven.ChatMessage
	opts     []driven.ChatOptions
	reply    func(messages []driven.ChatMessage) (string, error)
}

func (l *scriptedLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, append([]driven.ChatMessage(nil), messages...))
	l.opts = append(l.opts, opts)
	if l.reply == nil {
		return "ok", nil
	}
	return l.reply(messages)
}

func (l *scriptedLLM) lastRequest() []driven.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.requests) == 0 {
		return nil
	}
	return l.requests[len(l.requests)-1]
}

func (l *scriptedLLM) ModelName() string { return "scripted" }
func (l *scriptedLLM) Ping(_ context.Context) error { return nil }
func (l *scriptedLLM) Close() error { return nil }

// stubBackend is a driven.VectorBackend whose methods are overridable per test.
type stubBackend struct {
	mu          sync.Mutex
	indexes     map[string]domain.IndexDescription
	created     int
	listErr     error
	upsertErrs  []error
	queryErrs   []error
	upserts     int
	queryResult []domain.Match
}

func newStubBackend() *stubBackend {
	return &stubBackend{indexes: make(map[string]domain.IndexDescription)}
}

func (b *stubBackend) CreateIndex(_ context.Context, name string, dimension int, metric domain.Metric) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created++
	b.indexes[name] = domain.IndexDescription{Name: name, Dimension: dimension, Metric: metric}
	return nil
}

func (b *stubBackend) ListIndexes(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	names := make([]string, 0, len(b.indexes))
	for n := range b.indexes {
		names = append(names, n)
	}
	return names, nil
}

func (b *stubBackend) DescribeIndex(_ context.Context, name string) (domain.IndexDescription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.indexes[name]
	if !ok {
		return domain.IndexDescription{}, domain.ErrIndexNotFound
	}
	return d, nil
}

func (b *stubBackend) Upsert(_ context.Context, _, _ string, _ []domain.IndexRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upserts++
	if len(b.upsertErrs) > 0 {
		err := b.upsertErrs[0]
		b.upsertErrs = b.upsertErrs[1:]
		return err
	}
	return nil
}

func (b *stubBackend) Query(_ context.Context, _, _ string, _ []float32, _ int) ([]domain.Match, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queryErrs) > 0 {
		err := b.queryErrs[0]
		b.queryErrs = b.queryErrs[1:]
		return nil, err
	}
	return b.queryResult, nil
}

func (b *stubBackend) Namespaces(_ context.Context, _ string) ([]domain.NamespaceStats, error) {
	return nil, nil
}

func (b *stubBackend) Close() error { return nil }

// testSettings returns settings sized for the test embedder with instant retries.
func testSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.Embedding.Dimensions = testDimensions
	s.Vector.Backend = domain.VectorBackendMemory
	s.Vector.Index = "test"
	s.Retry.InitialBackoff = time.Millisecond
	s.Retry.MaxBackoff = time.Millisecond
	s.Retry.Timeout = time.Second
	return s
}

func chunk(source string, seq int, text string) domain.Chunk {
	return domain.Chunk{Text: text, SourceID: source, SequenceIndex: seq, Format: domain.FormatText}
}

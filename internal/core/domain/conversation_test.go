package domain

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchange(q, a string) []Turn {
	return []Turn{
		{Role: RoleUser, Content: q},
		{Role: RoleAssistant, Content: a},
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession("s1", "")

	assert.Equal(t, "s1", s.ID())
	assert.Equal(t, DefaultNamespace, s.Namespace())
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.Len())
}

func TestSession_SetNamespaceKeepsHistory(t *testing.T) {
	s := NewSession("s1", "a")
	s.Append(exchange("hi", "hello")...)

	s.SetNamespace("b")

	assert.Equal(t, "b", s.Namespace())
	assert.Equal(t, 2, s.Len())
}

func TestSession_TurnsReturnsCopy(t *testing.T) {
	s := NewSession("s1", "")
	s.Append(exchange("q", "a")...)

	turns := s.Turns()
	turns[0].Content = "mutated"

	assert.Equal(t, "q", s.Turns()[0].Content)
}

func TestSession_Reset(t *testing.T) {
	s := NewSession("s1", "docs")
	s.Append(exchange("q", "a")...)
	s.SetState(StateAwaitingQuery)

	s.Reset()

	assert.Zero(t, s.Len())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, "docs", s.Namespace())
}

func TestSession_DropLast(t *testing.T) {
	s := NewSession("s1", "")
	s.DropLast()
	s.Append(Turn{Role: RoleUser, Content: "q"})
	s.DropLast()

	assert.Zero(t, s.Len())
}

func TestSession_Truncate(t *testing.T) {
	tests := []struct {
		name      string
		turns     []Turn
		max       int
		wantFirst string
		wantLen   int
	}{
		{
			name:    "unbounded",
			turns:   append(exchange("q1", "a1"), exchange("q2", "a2")...),
			max:     0,
			wantLen: 4, wantFirst: "q1",
		},
		{
			name:    "within bound",
			turns:   exchange("q1", "a1"),
			max:     4,
			wantLen: 2, wantFirst: "q1",
		},
		{
			name:    "drops oldest pair",
			turns:   append(append(exchange("q1", "a1"), exchange("q2", "a2")...), exchange("q3", "a3")...),
			max:     4,
			wantLen: 4, wantFirst: "q2",
		},
		{
			name:    "odd bound keeps pairs aligned",
			turns:   append(append(exchange("q1", "a1"), exchange("q2", "a2")...), Turn{Role: RoleUser, Content: "q3"}),
			max:     2,
			wantLen: 1, wantFirst: "q3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s", "")
			s.Append(tt.turns...)

			s.Truncate(tt.max)

			turns := s.Turns()
			require.Len(t, turns, tt.wantLen)
			assert.Equal(t, tt.wantFirst, turns[0].Content)
			assert.Equal(t, RoleUser, turns[0].Role)
		})
	}
}

func TestSession_ConcurrentAppend(t *testing.T) {
	s := NewSession("s", "")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(Turn{Role: RoleUser, Content: "x"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

func TestSession_BeginTurnSerializes(t *testing.T) {
	s := NewSession("s", "")
	end := s.BeginTurn()

	acquired := make(chan struct{})
	go func() {
		defer s.BeginTurn()()
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("second turn started while the first was open")
	case <-time.After(20 * time.Millisecond):
	}

	s.Append(Turn{Role: RoleUser, Content: "still usable"})
	end()
	<-acquired
	assert.Equal(t, 1, s.Len())
}

func TestChatResult_OK(t *testing.T) {
	assert.True(t, ChatResult{Answer: "fine"}.OK())
	assert.False(t, ChatResult{Answer: "Error", Err: errors.New("boom")}.OK())
}

func TestFormat(t *testing.T) {
	assert.True(t, FormatPDF.IsValid())
	assert.True(t, FormatMarkdown.IsValid())
	assert.False(t, Format("docx").IsValid())
	assert.Equal(t, ".md", Extension("notes/README.MD"))
	assert.Equal(t, "", Extension("Makefile"))
}

func TestMetric_IsValid(t *testing.T) {
	assert.True(t, MetricCosine.IsValid())
	assert.True(t, MetricDotProduct.IsValid())
	assert.True(t, MetricEuclidean.IsValid())
	assert.False(t, Metric("hamming").IsValid())
}

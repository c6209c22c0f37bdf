package domain

import "sync"

// Role is the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role
	Content string

	// Sources are the matches the answer was generated from (assistant turns only).
	Sources []Match
}

// SessionState is the position of a session in the chat state machine.
type SessionState string

// Session states.
//
//	Idle -> AwaitingQuery <-> Retrieving -> Generating -> AwaitingQuery
//
// Reset returns a session to Idle from any state.
const (
	StateIdle          SessionState = "idle"
	StateAwaitingQuery SessionState = "awaiting_query"
	StateRetrieving    SessionState = "retrieving"
	StateGenerating    SessionState = "generating"
)

// Session is the conversation state of one caller.
// The caller owns it and passes it to every chat call; the chat service keeps
// no sessions of its own. A Session is safe for concurrent use.
type Session struct {
	turn      sync.Mutex
	mu        sync.Mutex
	id        string
	namespace string
	state     SessionState
	turns     []Turn
}

// NewSession creates an idle session scoped to namespace.
func NewSession(id, namespace string) *Session {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Session{
		id:        id,
		namespace: namespace,
		state:     StateIdle,
	}
}

// BeginTurn holds the session for one exchange and returns the function
// that releases it. Exchanges on the same session run one at a time.
func (s *Session) BeginTurn() (end func()) {
	s.turn.Lock()
	return s.turn.Unlock
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Namespace returns the namespace retrieval is scoped to.
func (s *Session) Namespace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namespace
}

// SetNamespace changes the retrieval scope of later turns.
// History is kept across the switch.
func (s *Session) SetNamespace(namespace string) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespace = namespace
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState moves the session to state.
func (s *Session) SetState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Turns returns a copy of the history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns in the history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Append adds turns to the end of the history.
func (s *Session) Append(turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
}

// DropLast removes the most recent turn, if any.
func (s *Session) DropLast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) > 0 {
		s.turns = s.turns[:len(s.turns)-1]
	}
}

// Truncate keeps at most maxTurns of the most recent turns.
// Turns are dropped oldest first and in user/assistant pairs so the history
// never starts with an orphaned answer. maxTurns <= 0 keeps everything.
func (s *Session) Truncate(maxTurns int) int {
	if maxTurns <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := len(s.turns) - maxTurns
	if drop <= 0 {
		return 0
	}
	if drop%2 == 1 && drop < len(s.turns) {
		drop++
	}
	for drop < len(s.turns) && s.turns[drop].Role != RoleUser {
		drop++
	}
	s.turns = append([]Turn(nil), s.turns[drop:]...)
	return drop
}

// Reset discards the history and returns the session to Idle.
// The namespace is left unchanged.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.state = StateIdle
}

// ChatResult is the outcome of one chat call.
// Failures are carried in Err while Answer holds a readable message, so
// callers always receive a response.
type ChatResult struct {
	Answer  string
	Sources []Match
	Err     error
}

// OK returns true if the answer was generated successfully.
func (r ChatResult) OK() bool {
	return r.Err == nil
}

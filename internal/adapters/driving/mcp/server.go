package mcp

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Session retention limits.
const (
	defaultMaxSessions = 256
	defaultSessionIdle = time.Hour
)

// Server is the MCP server for ragchat.
// Conversations are held per session ID. Sessions unused for sessionIdle are
// dropped, and past maxSessions the least recently used one is evicted.
type Server struct {
	ports  *Ports
	server *mcp.Server

	mu          sync.Mutex
	sessions    map[string]*heldSession
	maxSessions int
	sessionIdle time.Duration
	now         func() time.Time
}

type heldSession struct {
	session  *domain.Session
	lastUsed time.Time
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "ragchat",
		Version: Version,
	}

	s := &Server{
		ports:       ports,
		server:      mcp.NewServer(impl, nil),
		sessions:    make(map[string]*heldSession),
		maxSessions: defaultMaxSessions,
		sessionIdle: defaultSessionIdle,
		now:         time.Now,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over streamable HTTP on addr.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// session returns the session for id, creating it if absent. A namespace
// given for an existing session switches it. An empty id starts a new
// session under a generated ID.
func (s *Server) session(id, namespace string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)

	if held, ok := s.sessions[id]; ok && id != "" {
		if namespace != "" {
			held.session.SetNamespace(namespace)
		}
		held.lastUsed = now
		return held.session
	}

	sess := s.ports.Chat.NewSession(namespace)
	if id != "" {
		sess = domain.NewSession(id, sess.Namespace())
	}
	for s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}
	s.sessions[sess.ID()] = &heldSession{session: sess, lastUsed: now}
	return sess
}

// expireLocked drops sessions idle for longer than sessionIdle.
func (s *Server) expireLocked(now time.Time) {
	if s.sessionIdle <= 0 {
		return
	}
	for id, held := range s.sessions {
		if now.Sub(held.lastUsed) > s.sessionIdle {
			delete(s.sessions, id)
			logger.Debug("MCP session %s expired", id)
		}
	}
}

func (s *Server) evictOldestLocked() {
	var oldest string
	var oldestUsed time.Time
	for id, held := range s.sessions {
		if oldest == "" || held.lastUsed.Before(oldestUsed) {
			oldest, oldestUsed = id, held.lastUsed
		}
	}
	delete(s.sessions, oldest)
	logger.Debug("MCP session %s evicted", oldest)
}

// lookupSession returns an existing session.
func (s *Server) lookupSession(id string) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now())
	held, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return held.session, true
}

// sessionIDs returns the IDs of all held sessions, sorted.
func (s *Server) sessionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now())
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

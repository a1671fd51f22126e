package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/dictato/internal/observe"
)

// writeTimeout bounds a single WebSocket write, including broadcasts.
const writeTimeout = 5 * time.Second

// SessionInfo holds metadata about an open dictation session.
type SessionInfo struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`

	// RemoteAddr is the client address as seen by the server.
	RemoteAddr string `json:"remote_addr"`

	// StartedAt is when the WebSocket was accepted.
	StartedAt time.Time `json:"started_at"`

	// Segments is the number of segments received so far.
	Segments int64 `json:"segments"`
}

// Session is one connected dictation client.
type Session struct {
	info     SessionInfo
	conn     *websocket.Conn
	segments atomic.Int64
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.info.ID }

// Send marshals msg and writes it as a text frame.
func (s *Session) Send(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("session %s: marshal: %w", s.info.ID, err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("session %s: write: %w", s.info.ID, err)
	}
	return nil
}

// SessionManager tracks open dictation sessions so glossary changes can be
// pushed to all of them. All exported methods are safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	nextID   atomic.Uint64
	metrics  *observe.Metrics
}

// NewSessionManager creates an empty SessionManager recording to m.
func NewSessionManager(m *observe.Metrics) *SessionManager {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		metrics:  m,
	}
}

// Open registers conn as a new session.
func (sm *SessionManager) Open(conn *websocket.Conn, remoteAddr string) *Session {
	now := time.Now().UTC()
	s := &Session{
		conn: conn,
		info: SessionInfo{
			ID:         fmt.Sprintf("dictation-%s-%d", now.Format("20060102T150405Z"), sm.nextID.Add(1)),
			RemoteAddr: remoteAddr,
			StartedAt:  now,
		},
	}

	sm.mu.Lock()
	sm.sessions[s.info.ID] = s
	sm.mu.Unlock()

	sm.metrics.ActiveSessions.Add(context.Background(), 1)
	slog.Info("dictation session opened", "session_id", s.info.ID, "remote", remoteAddr)
	return s
}

// Close unregisters s and closes its connection with status and reason.
// Closing an already removed session is a no-op.
func (sm *SessionManager) Close(s *Session, status websocket.StatusCode, reason string) {
	sm.mu.Lock()
	_, ok := sm.sessions[s.info.ID]
	delete(sm.sessions, s.info.ID)
	sm.mu.Unlock()
	if !ok {
		return
	}

	s.conn.Close(status, reason)
	sm.metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("dictation session closed",
		"session_id", s.info.ID,
		"segments", s.segments.Load(),
		"duration", time.Since(s.info.StartedAt).Round(time.Millisecond),
	)
}

// CloseAll closes every open session with [websocket.StatusGoingAway].
func (sm *SessionManager) CloseAll(reason string) {
	for _, s := range sm.snapshot() {
		sm.Close(s, websocket.StatusGoingAway, reason)
	}
}

// RecordSegment counts one received segment for s.
func (sm *SessionManager) RecordSegment(ctx context.Context, s *Session, final bool) {
	s.segments.Add(1)
	sm.metrics.RecordSegment(ctx, final)
}

// Broadcast sends msg to every open session. A session whose write fails is
// closed; the remaining sessions still receive msg.
func (sm *SessionManager) Broadcast(ctx context.Context, msg any) {
	for _, s := range sm.snapshot() {
		if err := s.Send(ctx, msg); err != nil {
			slog.Warn("broadcast failed, dropping session", "session_id", s.info.ID, "err", err)
			sm.Close(s, websocket.StatusInternalError, "write failed")
		}
	}
}

// Count returns the number of open sessions.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// List returns info for every open session, oldest first.
func (sm *SessionManager) List() []SessionInfo {
	sessions := sm.snapshot()
	out := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		out[i] = s.info
		out[i].Segments = s.segments.Load()
	}
	return out
}

// snapshot returns the open sessions ordered by start time, then ID.
func (sm *SessionManager) snapshot() []*Session {
	sm.mu.Lock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	sm.mu.Unlock()

	slices.SortFunc(out, func(a, b *Session) int {
		if c := a.info.StartedAt.Compare(b.info.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.info.ID, b.info.ID)
	})
	return out
}

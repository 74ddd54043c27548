package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
)

type key struct {
	app, user, id string
}

type entry struct {
	session *session.Session
	events  []*session.Event
}

// Store is a thread-safe in-memory session store.
type Store struct {
	mu   sync.RWMutex
	data map[key]*entry
}

func New() *Store {
	return &Store{data: make(map[key]*entry)}
}

func makeKey(s *session.Session) (key, error) {
	if s == nil || s.AppName == "" || s.UserID == "" || s.ID == "" {
		return key{}, fmt.Errorf("session: app_name, user_id and session_id are required")
	}
	return key{app: s.AppName, user: s.UserID, id: s.ID}, nil
}

func (s *Store) GetOrCreate(ctx context.Context, req *session.Session) (*session.Session, error) {
	_ = ctx
	k, err := makeKey(req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data[k]; ok {
		cp := *e.session
		return &cp, nil
	}
	cp := *req
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now()
	}
	s.data[k] = &entry{session: &cp}
	out := cp
	return &out, nil
}

func (s *Store) AppendEvent(ctx context.Context, req *session.Session, ev *session.Event) error {
	_ = ctx
	if ev == nil {
		return fmt.Errorf("session: event is nil")
	}
	k, err := makeKey(req)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[k]
	if !ok {
		return session.ErrSessionNotFound
	}
	copyEv := *ev
	e.events = append(e.events, &copyEv)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, req *session.Session) ([]*session.Event, error) {
	_ = ctx
	k, err := makeKey(req)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[k]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	out := make([]*session.Event, 0, len(e.events))
	for _, ev := range e.events {
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

// SnapshotState reports the same counters the file-backed store derives from
// its conversation document.
func (s *Store) SnapshotState(ctx context.Context, req *session.Session) (map[string]any, error) {
	_ = ctx
	k, err := makeKey(req)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[k]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	messageCount := 0
	toolCount := 0
	initialRequestID := ""
	for _, ev := range e.events {
		// System-role lifecycle markers are not conversation turns.
		if ev.Message.Role != model.RoleSystem {
			messageCount++
		}
		if ev.Message.ToolResponse != nil {
			toolCount++
		}
		if initialRequestID == "" && ev.RequestID != "" {
			initialRequestID = ev.RequestID
		}
	}
	out := map[string]any{
		"message_count":        messageCount,
		"tool_execution_count": toolCount,
		"started_at":           e.session.StartedAt.Format(time.RFC3339),
	}
	if initialRequestID != "" {
		out["initial_request_id"] = initialRequestID
	}
	return out, nil
}

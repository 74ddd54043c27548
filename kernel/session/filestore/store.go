package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
)

// Store persists one JSON conversation document per session on local disk.
// The document carries the ordered message log plus a parallel record of
// every tool execution.
type Store struct {
	root string
	mu   sync.Mutex
}

// document is the on-disk conversation shape.
type document struct {
	ConversationID   string          `json:"conversation_id"`
	AppName          string          `json:"app_name"`
	UserID           string          `json:"user_id"`
	StartedAt        time.Time       `json:"started_at"`
	InitialRequestID string          `json:"initial_request_id,omitempty"`
	Messages         []messageRecord `json:"messages"`
	ToolExecutions   []toolRecord    `json:"tool_executions"`
}

type messageRecord struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ImagePath string    `json:"image_path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

type toolRecord struct {
	ToolName  string         `json:"tool_name"`
	Params    map[string]any `json:"params,omitempty"`
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
}

func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("filestore: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) GetOrCreate(ctx context.Context, req *session.Session) (*session.Session, error) {
	_ = ctx
	if err := validateSession(req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadDocument(req.ID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		startedAt := req.StartedAt
		if startedAt.IsZero() {
			startedAt = time.Now()
		}
		doc = &document{
			ConversationID: req.ID,
			AppName:        req.AppName,
			UserID:         req.UserID,
			StartedAt:      startedAt,
			Messages:       []messageRecord{},
			ToolExecutions: []toolRecord{},
		}
		if err := s.writeDocument(doc); err != nil {
			return nil, err
		}
	}
	cp := *req
	cp.StartedAt = doc.StartedAt
	return &cp, nil
}

func (s *Store) AppendEvent(ctx context.Context, req *session.Session, ev *session.Event) error {
	_ = ctx
	if ev == nil {
		return fmt.Errorf("filestore: event is nil")
	}
	if err := validateSession(req); err != nil {
		return err
	}
	// Runtime lifecycle markers ride as system-role events with no
	// conversation content; the document records conversation turns only.
	if ev.Message.Role == model.RoleSystem {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadDocument(req.ID)
	if err != nil {
		return err
	}
	if doc == nil {
		startedAt := req.StartedAt
		if startedAt.IsZero() {
			startedAt = time.Now()
		}
		doc = &document{
			ConversationID: req.ID,
			AppName:        req.AppName,
			UserID:         req.UserID,
			StartedAt:      startedAt,
			Messages:       []messageRecord{},
			ToolExecutions: []toolRecord{},
		}
	}
	when := ev.Time
	if when.IsZero() {
		when = time.Now()
	}
	if doc.InitialRequestID == "" && ev.RequestID != "" {
		doc.InitialRequestID = ev.RequestID
	}
	doc.Messages = append(doc.Messages, messageRecord{
		Role:      string(ev.Message.Role),
		Content:   ev.Message.Text,
		ImagePath: ev.Message.ImagePath,
		Timestamp: when,
		RequestID: ev.RequestID,
	})
	if tr := ev.Message.ToolResponse; tr != nil {
		doc.ToolExecutions = append(doc.ToolExecutions, toolRecord{
			ToolName:  tr.Name,
			Params:    tr.Params,
			Success:   tr.Success,
			Result:    tr.Result,
			Error:     tr.Error,
			Timestamp: when,
			RequestID: ev.RequestID,
		})
	}
	return s.writeDocument(doc)
}

func (s *Store) ListEvents(ctx context.Context, req *session.Session) ([]*session.Event, error) {
	_ = ctx
	if err := validateSession(req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadDocument(req.ID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	out := make([]*session.Event, 0, len(doc.Messages))
	toolIdx := 0
	for _, rec := range doc.Messages {
		msg := model.Message{
			Role:      model.Role(rec.Role),
			Text:      rec.Content,
			ImagePath: rec.ImagePath,
		}
		if msg.Role == model.RoleTool && toolIdx < len(doc.ToolExecutions) {
			exec := doc.ToolExecutions[toolIdx]
			toolIdx++
			msg.ToolResponse = &model.ToolResponse{
				Name:    exec.ToolName,
				Params:  exec.Params,
				Success: exec.Success,
				Result:  exec.Result,
				Error:   exec.Error,
			}
		}
		out = append(out, &session.Event{
			ID:        fmt.Sprintf("ev_%d", rec.Timestamp.UnixNano()),
			SessionID: doc.ConversationID,
			RequestID: rec.RequestID,
			Time:      rec.Timestamp,
			Message:   msg,
		})
	}
	return out, nil
}

func (s *Store) SnapshotState(ctx context.Context, req *session.Session) (map[string]any, error) {
	_ = ctx
	if err := validateSession(req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadDocument(req.ID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	out := map[string]any{
		"message_count":        len(doc.Messages),
		"tool_execution_count": len(doc.ToolExecutions),
		"started_at":           doc.StartedAt.Format(time.RFC3339),
	}
	if doc.InitialRequestID != "" {
		out["initial_request_id"] = doc.InitialRequestID
	}
	return out, nil
}

func (s *Store) documentPath(id string) string {
	return filepath.Join(s.root, id+".json")
}

func (s *Store) loadDocument(id string) (*document, error) {
	raw, err := os.ReadFile(s.documentPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc := &document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("filestore: decode conversation %q: %w", id, err)
	}
	return doc, nil
}

// writeDocument rewrites the conversation file atomically.
func (s *Store) writeDocument(doc *document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	path := s.documentPath(doc.ConversationID)
	tmp, err := os.CreateTemp(s.root, doc.ConversationID+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func validateSession(req *session.Session) error {
	if req == nil {
		return fmt.Errorf("filestore: invalid session")
	}
	if err := validateSessionPathComponent("app_name", req.AppName); err != nil {
		return err
	}
	if err := validateSessionPathComponent("user_id", req.UserID); err != nil {
		return err
	}
	if err := validateSessionPathComponent("session_id", req.ID); err != nil {
		return err
	}
	return nil
}

func validateSessionPathComponent(name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("filestore: invalid %s", name)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("filestore: invalid %s", name)
	}
	if strings.Contains(value, "/") || strings.Contains(value, "\\") {
		return fmt.Errorf("filestore: invalid %s", name)
	}
	if filepath.Clean(value) != value {
		return fmt.Errorf("filestore: invalid %s", name)
	}
	return nil
}

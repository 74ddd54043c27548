package session

import (
	"context"
	"errors"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

var ErrSessionNotFound = errors.New("session: not found")

// Meta keys and values recorded on lifecycle-bearing events.
const (
	MetaOutcome      = "outcome"
	OutcomeAnswered  = "answered"
	OutcomeTruncated = "truncated"
	OutcomeFailed    = "failed"
)

// Session identifies a conversation thread.
type Session struct {
	AppName   string
	UserID    string
	ID        string
	StartedAt time.Time
}

// Event is the persisted unit of runtime history used to rebuild invocation
// context and state.
type Event struct {
	ID        string
	SessionID string
	RequestID string
	Time      time.Time
	Message   model.Message
	Meta      map[string]any
}

// Store provides session and event persistence.
type Store interface {
	GetOrCreate(context.Context, *Session) (*Session, error)
	AppendEvent(context.Context, *Session, *Event) error
	ListEvents(context.Context, *Session) ([]*Event, error)
	SnapshotState(context.Context, *Session) (map[string]any, error)
}

package main

import (
	"context"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
)

// indexedSessionStore mirrors appended events into the sqlite index. Index
// failures never fail the append; the document store is the source of truth.
type indexedSessionStore struct {
	inner     session.Store
	index     *sessionIndex
	workspace workspaceContext
}

func newIndexedSessionStore(inner session.Store, index *sessionIndex, workspace workspaceContext) session.Store {
	if inner == nil || index == nil {
		return inner
	}
	return &indexedSessionStore{
		inner:     inner,
		index:     index,
		workspace: workspace,
	}
}

func (s *indexedSessionStore) GetOrCreate(ctx context.Context, req *session.Session) (*session.Session, error) {
	sess, err := s.inner.GetOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		_ = s.index.UpsertSession(s.workspace, sess.AppName, sess.UserID, sess.ID, time.Now())
	}
	return sess, nil
}

func (s *indexedSessionStore) AppendEvent(ctx context.Context, req *session.Session, ev *session.Event) error {
	if err := s.inner.AppendEvent(ctx, req, ev); err != nil {
		return err
	}
	// System-role lifecycle markers are not conversation turns; counting
	// them would drift the index from the stored document.
	if req != nil && ev != nil && ev.Message.Role != model.RoleSystem {
		_ = s.index.TouchEvent(s.workspace, req.AppName, req.UserID, req.ID, ev.Message, ev.Time)
	}
	return nil
}

func (s *indexedSessionStore) ListEvents(ctx context.Context, req *session.Session) ([]*session.Event, error) {
	return s.inner.ListEvents(ctx, req)
}

func (s *indexedSessionStore) SnapshotState(ctx context.Context, req *session.Session) (map[string]any, error) {
	return s.inner.SnapshotState(ctx, req)
}

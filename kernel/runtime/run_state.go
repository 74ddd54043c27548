package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
)

// RunStateRequest defines one run-state query.
type RunStateRequest struct {
	AppName   string
	UserID    string
	SessionID string
}

// RunState is the latest lifecycle status snapshot for one session. Stores
// that do not retain event meta report no lifecycle.
type RunState struct {
	HasLifecycle bool
	Status       RunLifecycleStatus
	Phase        string
	Outcome      string
	Error        string
	EventID      string
	UpdatedAt    time.Time
}

// RunState returns latest lifecycle state from persisted session events.
func (r *Runtime) RunState(ctx context.Context, req RunStateRequest) (RunState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.AppName) == "" || strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.SessionID) == "" {
		return RunState{}, fmt.Errorf("runtime: app_name, user_id and session_id are required")
	}
	sess := &session.Session{
		AppName: req.AppName,
		UserID:  req.UserID,
		ID:      req.SessionID,
	}
	events, err := r.store.ListEvents(ctx, sess)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return RunState{}, nil
		}
		return RunState{}, err
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		info, ok := LifecycleFromEvent(ev)
		if !ok {
			continue
		}
		return RunState{
			HasLifecycle: true,
			Status:       info.Status,
			Phase:        info.Phase,
			Outcome:      info.Outcome,
			Error:        info.Error,
			EventID:      ev.ID,
			UpdatedAt:    ev.Time,
		}, nil
	}
	return RunState{}, nil
}

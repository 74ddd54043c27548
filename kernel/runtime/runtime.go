package runtime

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrewrchen05/bounding-box-agent/kernel/agent"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/policy"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool"
)

// Config configures Runtime.
type Config struct {
	Store session.Store
}

// Runtime owns session lifecycle around agent execution: it leases the
// session, replays persisted history into the invocation context, persists
// every event the agent yields, and closes the run with a lifecycle event.
type Runtime struct {
	store      session.Store
	runMu      sync.Mutex
	activeRuns map[string]struct{}
}

func New(cfg Config) (*Runtime, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("runtime: store is nil")
	}
	return &Runtime{
		store:      cfg.Store,
		activeRuns: map[string]struct{}{},
	}, nil
}

// RunRequest defines one invocation input.
type RunRequest struct {
	AppName   string
	UserID    string
	SessionID string
	Input     string
	// ImagePath optionally attaches a local image to the user turn.
	ImagePath string

	Agent    agent.Agent
	Model    model.LLM
	Tools    []tool.Tool
	Policies []policy.Hook
}

// Run executes one agent invocation against the session named in req. Events
// stream out in order: a running lifecycle marker, recovery feedback for any
// decision the previous run left unanswered, the user event, every agent
// event, and a closing lifecycle marker carrying the run outcome. All events
// of one run share a UUID request id.
//
// A second Run against a session with an in-flight run fails immediately
// with SessionBusyError.
func (r *Runtime) Run(ctx context.Context, req RunRequest) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		if ctx == nil {
			ctx = context.Background()
		}
		if req.Agent == nil {
			yield(nil, fmt.Errorf("runtime: agent is nil"))
			return
		}
		if req.Model == nil {
			yield(nil, fmt.Errorf("runtime: model is nil"))
			return
		}
		if req.AppName == "" || req.UserID == "" || req.SessionID == "" {
			yield(nil, fmt.Errorf("runtime: app_name, user_id and session_id are required"))
			return
		}
		leaseKey := runLeaseKey(req.AppName, req.UserID, req.SessionID)
		if !r.acquireRunLease(leaseKey) {
			yield(nil, &SessionBusyError{AppName: req.AppName, UserID: req.UserID, SessionID: req.SessionID})
			return
		}
		defer r.releaseRunLease(leaseKey)

		requestID := uuid.NewString()
		sess, err := r.store.GetOrCreate(ctx, &session.Session{AppName: req.AppName, UserID: req.UserID, ID: req.SessionID})
		if err != nil {
			yield(nil, err)
			return
		}
		if !r.appendAndYieldLifecycle(ctx, sess, requestID, RunLifecycleStatusRunning, "run", "", nil, yield) {
			return
		}

		existing, err := r.store.ListEvents(ctx, sess)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, recoveryEvent := range buildRecoveryEvents(agentHistoryEvents(existing)) {
			recoveryEvent.SessionID = sess.ID
			recoveryEvent.RequestID = requestID
			if err := r.store.AppendEvent(ctx, sess, recoveryEvent); err != nil {
				yield(nil, err)
				return
			}
			if !yield(recoveryEvent, nil) {
				return
			}
		}

		userEvent := &session.Event{
			ID:        eventID(),
			SessionID: sess.ID,
			RequestID: requestID,
			Time:      time.Now(),
			Message:   model.Message{Role: model.RoleUser, Text: req.Input, ImagePath: req.ImagePath},
		}
		if err := r.store.AppendEvent(ctx, sess, userEvent); err != nil {
			yield(nil, err)
			return
		}
		if !yield(userEvent, nil) {
			return
		}

		allEvents, err := r.store.ListEvents(ctx, sess)
		if err != nil {
			yield(nil, err)
			return
		}
		toolMap, err := tool.BuildMap(req.Tools)
		if err != nil {
			yield(nil, err)
			return
		}
		inv := &invocationContext{
			Context:  ctx,
			session:  sess,
			history:  agentHistoryEvents(allEvents),
			model:    req.Model,
			tools:    append([]tool.Tool(nil), req.Tools...),
			toolMap:  toolMap,
			policies: append([]policy.Hook(nil), req.Policies...),
		}

		outcome := ""
		for ev, runErr := range req.Agent.Run(inv) {
			if runErr != nil {
				status := lifecycleStatusForError(runErr)
				if !r.appendAndYieldLifecycle(ctx, sess, requestID, status, "run", session.OutcomeFailed, runErr, yield) {
					return
				}
				yield(nil, runErr)
				return
			}
			if ev == nil {
				continue
			}
			if ev.ID == "" {
				ev.ID = eventID()
			}
			if ev.Time.IsZero() {
				ev.Time = time.Now()
			}
			ev.SessionID = sess.ID
			ev.RequestID = requestID
			if err := r.store.AppendEvent(ctx, sess, ev); err != nil {
				yield(nil, err)
				return
			}
			cp := *ev
			inv.history = append(inv.history, &cp)
			if value, ok := ev.Meta[session.MetaOutcome].(string); ok && value != "" {
				outcome = value
			}
			if !yield(ev, nil) {
				return
			}
		}
		if outcome == "" {
			outcome = session.OutcomeAnswered
		}
		r.appendAndYieldLifecycle(ctx, sess, requestID, RunLifecycleStatusCompleted, "run", outcome, nil, yield)
	}
}

func runLeaseKey(appName, userID, sessionID string) string {
	return strings.TrimSpace(appName) + "\x00" + strings.TrimSpace(userID) + "\x00" + strings.TrimSpace(sessionID)
}

func (r *Runtime) acquireRunLease(key string) bool {
	if r == nil || strings.TrimSpace(key) == "" {
		return false
	}
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.activeRuns == nil {
		r.activeRuns = map[string]struct{}{}
	}
	if _, exists := r.activeRuns[key]; exists {
		return false
	}
	r.activeRuns[key] = struct{}{}
	return true
}

func (r *Runtime) releaseRunLease(key string) {
	if r == nil || strings.TrimSpace(key) == "" {
		return
	}
	r.runMu.Lock()
	defer r.runMu.Unlock()
	delete(r.activeRuns, key)
}

func eventID() string {
	return fmt.Sprintf("ev_%d", time.Now().UnixNano())
}

func (r *Runtime) appendAndYieldLifecycle(
	ctx context.Context,
	sess *session.Session,
	requestID string,
	status RunLifecycleStatus,
	phase string,
	outcome string,
	cause error,
	yield func(*session.Event, error) bool,
) bool {
	if r == nil || sess == nil {
		return true
	}
	ev := lifecycleEvent(sess, requestID, status, phase, outcome, cause)
	if err := r.store.AppendEvent(ctx, sess, ev); err != nil {
		yield(nil, err)
		return false
	}
	return yield(ev, nil)
}

package runtime

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"

	"github.com/andrewrchen05/bounding-box-agent/kernel/agent"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session/inmemory"
)

type fixedAgent struct{}

func (a fixedAgent) Name() string { return "fixed" }
func (a fixedAgent) Run(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		yield(&session.Event{
			Message: model.Message{Role: model.RoleAssistant, Text: "ok"},
			Meta:    map[string]any{session.MetaOutcome: session.OutcomeAnswered},
		}, nil)
	}
}

type failingAgent struct {
	err error
}

func (a failingAgent) Name() string { return "failing" }
func (a failingAgent) Run(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		yield(nil, a.err)
	}
}

type historyAgent struct {
	t    *testing.T
	want []string
}

func (a historyAgent) Name() string { return "history" }
func (a historyAgent) Run(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		history := ctx.History()
		if len(history) != len(a.want) {
			a.t.Errorf("expected %d history events, got %d", len(a.want), len(history))
		} else {
			for i, text := range a.want {
				if history[i].Message.Text != text {
					a.t.Errorf("history[%d]: expected %q, got %q", i, text, history[i].Message.Text)
				}
			}
		}
		yield(&session.Event{Message: model.Message{Role: model.RoleAssistant, Text: "done"}}, nil)
	}
}

type gateAgent struct {
	started chan struct{}
	release chan struct{}
}

func (a gateAgent) Name() string { return "gate" }
func (a gateAgent) Run(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		close(a.started)
		<-a.release
		yield(&session.Event{Message: model.Message{Role: model.RoleAssistant, Text: "ok"}}, nil)
	}
}

func TestRuntime_Run(t *testing.T) {
	store := inmemory.New()
	rt, err := New(Config{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	var events []*session.Event
	for ev, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s",
		Input:     "hello",
		Agent:     fixedAgent{},
		Model:     newRuntimeTestLLM("fake"),
	}) {
		if runErr != nil {
			t.Fatal(runErr)
		}
		events = append(events, ev)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	opening, ok := LifecycleFromEvent(events[0])
	if !ok || opening.Status != RunLifecycleStatusRunning {
		t.Fatalf("expected opening running lifecycle, got %+v", opening)
	}
	if events[1].Message.Role != model.RoleUser || events[1].Message.Text != "hello" {
		t.Fatalf("expected user event second, got %+v", events[1].Message)
	}
	if events[2].Message.Role != model.RoleAssistant || events[2].Message.Text != "ok" {
		t.Fatalf("expected assistant event third, got %+v", events[2].Message)
	}
	closing, ok := LifecycleFromEvent(events[3])
	if !ok || closing.Status != RunLifecycleStatusCompleted {
		t.Fatalf("expected closing completed lifecycle, got %+v", closing)
	}
	if closing.Outcome != session.OutcomeAnswered {
		t.Fatalf("expected answered outcome, got %q", closing.Outcome)
	}
	requestID := events[0].RequestID
	if requestID == "" {
		t.Fatal("expected request id on lifecycle event")
	}
	for i, ev := range events {
		if ev.RequestID != requestID {
			t.Fatalf("event %d request id %q, expected %q", i, ev.RequestID, requestID)
		}
		if ev.ID == "" || ev.SessionID != "s" {
			t.Fatalf("event %d missing identity: %+v", i, ev)
		}
	}
	listed, err := store.ListEvents(context.Background(), &session.Session{AppName: "boxagent", UserID: "u", ID: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 4 {
		t.Fatalf("expected 4 persisted events, got %d", len(listed))
	}
}

func TestRuntime_RunRequiresSessionKeys(t *testing.T) {
	rt, err := New(Config{Store: inmemory.New()})
	if err != nil {
		t.Fatal(err)
	}
	var gotErr error
	for _, runErr := range rt.Run(context.Background(), RunRequest{
		AppName: "boxagent",
		Input:   "hello",
		Agent:   fixedAgent{},
		Model:   newRuntimeTestLLM(""),
	}) {
		if runErr != nil {
			gotErr = runErr
			break
		}
	}
	if gotErr == nil {
		t.Fatal("expected error for missing session keys")
	}
}

func TestRuntime_SecondRunReplaysHistory(t *testing.T) {
	store := inmemory.New()
	rt, err := New(Config{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	llm := newRuntimeTestLLM("fake")
	for _, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-resume",
		Input:     "hello",
		Agent:     fixedAgent{},
		Model:     llm,
	}) {
		if runErr != nil {
			t.Fatal(runErr)
		}
	}
	// Resumed history carries both prior turns plus the new user event and
	// no lifecycle markers.
	for _, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-resume",
		Input:     "again",
		Agent:     historyAgent{t: t, want: []string{"hello", "ok", "again"}},
		Model:     llm,
	}) {
		if runErr != nil {
			t.Fatal(runErr)
		}
	}
}

func TestRuntime_SessionBusy(t *testing.T) {
	store := inmemory.New()
	rt, err := New(Config{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	gate := gateAgent{started: make(chan struct{}), release: make(chan struct{})}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, runErr := range rt.Run(context.Background(), RunRequest{
			AppName:   "boxagent",
			UserID:    "u",
			SessionID: "s-busy",
			Input:     "first",
			Agent:     gate,
			Model:     newRuntimeTestLLM(""),
		}) {
			if runErr != nil {
				t.Errorf("first run failed: %v", runErr)
				return
			}
		}
	}()
	<-gate.started

	var busyErr error
	for _, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-busy",
		Input:     "second",
		Agent:     fixedAgent{},
		Model:     newRuntimeTestLLM(""),
	}) {
		if runErr != nil {
			busyErr = runErr
			break
		}
	}
	close(gate.release)
	wg.Wait()
	if !IsSessionBusy(busyErr) {
		t.Fatalf("expected session busy error, got %v", busyErr)
	}

	// The lease is released once the first run finishes.
	for _, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-busy",
		Input:     "third",
		Agent:     fixedAgent{},
		Model:     newRuntimeTestLLM(""),
	}) {
		if runErr != nil {
			t.Fatalf("expected lease released after first run, got %v", runErr)
		}
	}
}

func TestRuntime_AgentErrorClosesWithFailedLifecycle(t *testing.T) {
	store := inmemory.New()
	rt, err := New(Config{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	cause := errors.New("model request failed")
	var events []*session.Event
	var gotErr error
	for ev, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-fail",
		Input:     "hello",
		Agent:     failingAgent{err: cause},
		Model:     newRuntimeTestLLM(""),
	}) {
		if runErr != nil {
			gotErr = runErr
			break
		}
		events = append(events, ev)
	}
	if !errors.Is(gotErr, cause) {
		t.Fatalf("expected run error %v, got %v", cause, gotErr)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events before the error, got %d", len(events))
	}
	closing, ok := LifecycleFromEvent(events[2])
	if !ok {
		t.Fatalf("expected failed lifecycle event, got %+v", events[2])
	}
	if closing.Status != RunLifecycleStatusFailed {
		t.Fatalf("expected failed status, got %q", closing.Status)
	}
	if closing.Outcome != session.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %q", closing.Outcome)
	}
	if closing.Error != cause.Error() {
		t.Fatalf("expected lifecycle error %q, got %q", cause.Error(), closing.Error)
	}
}

func TestRuntime_CanceledRunInterrupted(t *testing.T) {
	store := inmemory.New()
	rt, err := New(Config{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	var last LifecycleInfo
	for ev, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-cancel",
		Input:     "hello",
		Agent:     failingAgent{err: context.Canceled},
		Model:     newRuntimeTestLLM(""),
	}) {
		if runErr != nil {
			break
		}
		if info, ok := LifecycleFromEvent(ev); ok {
			last = info
		}
	}
	if last.Status != RunLifecycleStatusInterrupted {
		t.Fatalf("expected interrupted status, got %q", last.Status)
	}
}

func TestRuntime_ContextUsage(t *testing.T) {
	store := inmemory.New()
	rt, err := New(Config{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	llm := newRuntimeTestLLM("fake")
	for _, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-usage",
		Input:     "hello",
		Agent:     fixedAgent{},
		Model:     llm,
	}) {
		if runErr != nil {
			t.Fatal(runErr)
		}
	}
	usage, err := rt.ContextUsage(context.Background(), UsageRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-usage",
		Model:     llm,
	})
	if err != nil {
		t.Fatal(err)
	}
	if usage.WindowTokens != 64000 {
		t.Fatalf("expected window from model, got %d", usage.WindowTokens)
	}
	if usage.CurrentTokens <= 0 {
		t.Fatalf("expected positive current tokens, got %d", usage.CurrentTokens)
	}
	if usage.Ratio <= 0 {
		t.Fatalf("expected positive ratio, got %f", usage.Ratio)
	}
	if usage.EventCount != 2 {
		t.Fatalf("expected 2 window events, got %d", usage.EventCount)
	}
}

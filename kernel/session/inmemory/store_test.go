package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
)

func TestStore_AppendAndList(t *testing.T) {
	store := New()
	ctx := context.Background()
	sess := &session.Session{AppName: "boxagent", UserID: "tester", ID: "conv-1"}
	if _, err := store.GetOrCreate(ctx, sess); err != nil {
		t.Fatal(err)
	}
	events := []*session.Event{
		{ID: "ev_1", Message: model.Message{Role: model.RoleUser, Text: "locate the logo"}},
		{ID: "ev_2", Message: model.Message{Role: model.RoleAssistant, Text: "on it"}},
	}
	for _, ev := range events {
		if err := store.AppendEvent(ctx, sess, ev); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.ListEvents(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].ID != "ev_1" || got[1].ID != "ev_2" {
		t.Fatalf("order = %s, %s", got[0].ID, got[1].ID)
	}

	// Listed events are copies.
	got[0].Message.Text = "mutated"
	again, err := store.ListEvents(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if again[0].Message.Text != "locate the logo" {
		t.Fatalf("stored event mutated: %q", again[0].Message.Text)
	}
}

func TestStore_AppendUnknownSession(t *testing.T) {
	store := New()
	sess := &session.Session{AppName: "boxagent", UserID: "tester", ID: "missing"}
	err := store.AppendEvent(context.Background(), sess, &session.Event{
		Message: model.Message{Role: model.RoleUser, Text: "x"},
	})
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_RequiresSessionKeys(t *testing.T) {
	store := New()
	if _, err := store.GetOrCreate(context.Background(), &session.Session{AppName: "boxagent"}); err == nil {
		t.Fatal("expected error for missing user and session ids")
	}
}

func TestStore_SnapshotStateCounters(t *testing.T) {
	store := New()
	ctx := context.Background()
	sess := &session.Session{AppName: "boxagent", UserID: "tester", ID: "conv-2"}
	if _, err := store.GetOrCreate(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendEvent(ctx, sess, &session.Event{
		RequestID: "req-7",
		Message:   model.Message{Role: model.RoleUser, Text: "count the icons"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendEvent(ctx, sess, &session.Event{
		RequestID: "req-7",
		Message: model.Message{
			Role: model.RoleTool,
			Text: "Tool execution result for detect_bounding_box: ok",
			ToolResponse: &model.ToolResponse{
				Name:    "detect_bounding_box",
				Success: true,
			},
		},
	}); err != nil {
		t.Fatal(err)
	}

	state, err := store.SnapshotState(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if state["message_count"] != 2 {
		t.Fatalf("message_count = %v", state["message_count"])
	}
	if state["tool_execution_count"] != 1 {
		t.Fatalf("tool_execution_count = %v", state["tool_execution_count"])
	}
	if state["initial_request_id"] != "req-7" {
		t.Fatalf("initial_request_id = %v", state["initial_request_id"])
	}
}

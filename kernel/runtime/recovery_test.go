package runtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session/inmemory"
)

const danglingDecision = `{"type":"tool_use","tool_uses":[` +
	`{"name":"detect_bounding_box","params":{"image_path":"cats.png","label":"cat"}},` +
	`{"name":"draw_bounding_box","params":{"image_path":"cats.png"}}]}`

func TestBuildRecoveryEvents_ClosesUnansweredInvocations(t *testing.T) {
	input := []*session.Event{
		{
			ID:      "ev_user",
			Time:    time.Now(),
			Message: model.Message{Role: model.RoleUser, Text: "find cats"},
		},
		{
			ID:      "ev_decision",
			Time:    time.Now(),
			Message: model.Message{Role: model.RoleAssistant, Text: danglingDecision},
		},
		{
			ID:   "ev_tool",
			Time: time.Now(),
			Message: model.Message{
				Role: model.RoleTool,
				Text: `Tool execution result for detect_bounding_box: {"success":true}`,
				ToolResponse: &model.ToolResponse{
					Name:    "detect_bounding_box",
					Success: true,
					Result:  map[string]any{"boxes": []any{}},
				},
			},
		},
	}

	recovery := buildRecoveryEvents(input)
	if len(recovery) != 1 {
		t.Fatalf("expected 1 recovery event, got %d", len(recovery))
	}
	ev := recovery[0]
	if ev.Message.Role != model.RoleTool {
		t.Fatalf("expected role=tool, got %q", ev.Message.Role)
	}
	resp := ev.Message.ToolResponse
	if resp == nil || resp.Name != "draw_bounding_box" {
		t.Fatalf("expected feedback for draw_bounding_box, got %+v", resp)
	}
	if resp.Success {
		t.Fatal("expected interrupted feedback to report failure")
	}
	if resp.Error != interruptedToolNote {
		t.Fatalf("unexpected error text: %q", resp.Error)
	}
	if !strings.Contains(ev.Message.Text, "Tool execution result for draw_bounding_box:") {
		t.Fatalf("unexpected feedback text: %q", ev.Message.Text)
	}
	if ev.Meta[metaKind] != metaKindRecovery {
		t.Fatalf("expected meta kind %q, got %#v", metaKindRecovery, ev.Meta[metaKind])
	}
}

func TestBuildRecoveryEvents_NoopWhenAllAnswered(t *testing.T) {
	input := []*session.Event{
		{
			ID:      "ev_decision",
			Time:    time.Now(),
			Message: model.Message{Role: model.RoleAssistant, Text: danglingDecision},
		},
		{
			ID:      "ev_tool_1",
			Time:    time.Now(),
			Message: model.Message{Role: model.RoleTool, ToolResponse: &model.ToolResponse{Name: "detect_bounding_box", Success: true}},
		},
		{
			ID:      "ev_tool_2",
			Time:    time.Now(),
			Message: model.Message{Role: model.RoleTool, ToolResponse: &model.ToolResponse{Name: "draw_bounding_box", Success: true}},
		},
	}
	if recovery := buildRecoveryEvents(input); len(recovery) != 0 {
		t.Fatalf("expected no recovery events, got %d", len(recovery))
	}
}

func TestBuildRecoveryEvents_NoopOnFinalAnswer(t *testing.T) {
	input := []*session.Event{
		{
			ID:      "ev_user",
			Time:    time.Now(),
			Message: model.Message{Role: model.RoleUser, Text: "hello"},
		},
		{
			ID:      "ev_final",
			Time:    time.Now(),
			Message: model.Message{Role: model.RoleAssistant, Text: `{"type":"text","text":"Found 2 cats."}`},
		},
	}
	if recovery := buildRecoveryEvents(input); len(recovery) != 0 {
		t.Fatalf("expected no recovery events, got %d", len(recovery))
	}
	if recovery := buildRecoveryEvents(nil); len(recovery) != 0 {
		t.Fatalf("expected no recovery events for empty history, got %d", len(recovery))
	}
}

func TestRuntime_RunEmitsRecoveryBeforeUserEvent(t *testing.T) {
	store := inmemory.New()
	sess := &session.Session{AppName: "boxagent", UserID: "u", ID: "s-recover"}
	if _, err := store.GetOrCreate(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	seed := []*session.Event{
		{ID: "ev_1", Time: time.Now(), Message: model.Message{Role: model.RoleUser, Text: "find cats"}},
		{ID: "ev_2", Time: time.Now(), Message: model.Message{Role: model.RoleAssistant, Text: danglingDecision}},
	}
	for _, ev := range seed {
		if err := store.AppendEvent(context.Background(), sess, ev); err != nil {
			t.Fatal(err)
		}
	}

	rt, err := New(Config{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	var events []*session.Event
	for ev, runErr := range rt.Run(context.Background(), RunRequest{
		AppName:   "boxagent",
		UserID:    "u",
		SessionID: "s-recover",
		Input:     "try again",
		Agent:     fixedAgent{},
		Model:     newRuntimeTestLLM(""),
	}) {
		if runErr != nil {
			t.Fatal(runErr)
		}
		events = append(events, ev)
	}
	// running lifecycle, two recovery feedbacks, user, assistant, completed.
	if len(events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(events))
	}
	for i := 1; i <= 2; i++ {
		if events[i].Message.Role != model.RoleTool || events[i].Meta[metaKind] != metaKindRecovery {
			t.Fatalf("expected recovery event at %d, got %+v", i, events[i])
		}
	}
	if events[1].Message.ToolResponse.Name != "detect_bounding_box" {
		t.Fatalf("expected detect feedback first, got %q", events[1].Message.ToolResponse.Name)
	}
	if events[2].Message.ToolResponse.Name != "draw_bounding_box" {
		t.Fatalf("expected draw feedback second, got %q", events[2].Message.ToolResponse.Name)
	}
	if events[3].Message.Role != model.RoleUser || events[3].Message.Text != "try again" {
		t.Fatalf("expected user event after recovery, got %+v", events[3].Message)
	}
}

package runtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/decision"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
)

const interruptedToolNote = "tool execution interrupted before completion"

// buildRecoveryEvents closes out invocations the previous run never answered.
// A crash between a tool_use decision and its feedback leaves history ending
// on open requests; resuming from that state would show the model its own
// decision with results missing. Each unanswered invocation gets a failure
// feedback event so the conversation stays well-formed.
//
// Results are ordinal: the i-th tool event after a decision answers the i-th
// invocation, so only the unanswered suffix is synthesized.
func buildRecoveryEvents(events []*session.Event) []*session.Event {
	last := -1
	for i := len(events) - 1; i >= 0; i-- {
		if events[i] != nil && events[i].Message.Role == model.RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 {
		return nil
	}
	parsed := decision.Parse(events[last].Message.Text)
	if parsed.Kind != decision.KindToolUse {
		return nil
	}
	answered := 0
	for _, ev := range events[last+1:] {
		if ev != nil && ev.Message.ToolResponse != nil {
			answered++
		}
	}
	if answered >= len(parsed.Invocations) {
		return nil
	}

	out := make([]*session.Event, 0, len(parsed.Invocations)-answered)
	for _, call := range parsed.Invocations[answered:] {
		out = append(out, &session.Event{
			ID:   eventID(),
			Time: time.Now(),
			Message: model.Message{
				Role: model.RoleTool,
				Text: interruptedFeedback(call.Name),
				ToolResponse: &model.ToolResponse{
					Name:    call.Name,
					Params:  call.Params,
					Success: false,
					Error:   interruptedToolNote,
				},
			},
			Meta: map[string]any{
				metaKind: metaKindRecovery,
				metaKindRecovery: map[string]any{
					"type":      "unanswered_tool_call",
					"tool_name": call.Name,
				},
			},
		})
	}
	return out
}

func interruptedFeedback(toolName string) string {
	body, _ := json.Marshal(map[string]any{"success": false, "error": interruptedToolNote})
	return fmt.Sprintf("Tool execution result for %s: %s", toolName, string(body))
}

// Package policy defines interception hooks around model calls and tool
// dispatch. Hooks may rewrite their envelope or veto it with an error.
package policy

import (
	"context"

	"github.com/andrewrchen05/bounding-box-agent/kernel/decision"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/toolcap"
)

// ModelInput is the mutable envelope for BeforeModel hooks: the conversation
// so far plus the tool declarations rendered into the prompt.
type ModelInput struct {
	Messages []model.Message
	Tools    []model.ToolDefinition
}

// ToolInput is the mutable envelope for BeforeTool hooks.
type ToolInput struct {
	Call       decision.Invocation
	Capability toolcap.Capability
	Decision   Decision
}

// ToolOutput is the mutable envelope for AfterTool hooks.
type ToolOutput struct {
	Call       decision.Invocation
	Capability toolcap.Capability
	Decision   Decision
	Result     map[string]any
	Err        error
}

// Output is the mutable envelope for the final answer before emission.
type Output struct {
	Message model.Message
}

// Hook defines the four interception points of one policy.
type Hook interface {
	Name() string
	BeforeModel(context.Context, ModelInput) (ModelInput, error)
	BeforeTool(context.Context, ToolInput) (ToolInput, error)
	AfterTool(context.Context, ToolOutput) (ToolOutput, error)
	BeforeOutput(context.Context, Output) (Output, error)
}

// NoopHook passes every envelope through unchanged. Embed it to implement
// only the interception points a policy cares about.
type NoopHook struct {
	HookName string
}

func (h NoopHook) Name() string {
	if h.HookName == "" {
		return "noop"
	}
	return h.HookName
}

func (NoopHook) BeforeModel(_ context.Context, in ModelInput) (ModelInput, error) {
	return in, nil
}

func (NoopHook) BeforeTool(_ context.Context, in ToolInput) (ToolInput, error) {
	return in, nil
}

func (NoopHook) AfterTool(_ context.Context, out ToolOutput) (ToolOutput, error) {
	return out, nil
}

func (NoopHook) BeforeOutput(_ context.Context, out Output) (Output, error) {
	return out, nil
}

package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

// Handler implements one tool over typed argument and result structs. The
// argument struct's json tags drive both decoding and the declared schema.
type Handler[TArgs, TResult any] func(context.Context, TArgs) (TResult, error)

type functionTool[TArgs, TResult any] struct {
	name        string
	description string
	handler     Handler[TArgs, TResult]
}

// NewFunction wraps a typed handler as a Tool. The parameter schema is
// reflected from TArgs.
func NewFunction[TArgs, TResult any](name, description string, handler Handler[TArgs, TResult]) (Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool: name is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("tool: handler is nil")
	}
	return &functionTool[TArgs, TResult]{name: name, description: description, handler: handler}, nil
}

func (t *functionTool[TArgs, TResult]) Name() string        { return t.name }
func (t *functionTool[TArgs, TResult]) Description() string { return t.description }

func (t *functionTool[TArgs, TResult]) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters:  schemaForType[TArgs](),
	}
}

func (t *functionTool[TArgs, TResult]) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	var typed TArgs
	if err := roundtripJSON(args, &typed); err != nil {
		return nil, fmt.Errorf("tool: decode args for %q: %w", t.name, err)
	}
	out, err := t.handler(ctx, typed)
	if err != nil {
		return nil, err
	}
	// Non-object results (strings, slices) ride under a "result" key.
	result := map[string]any{}
	if err := roundtripJSON(out, &result); err != nil {
		return map[string]any{"result": out}, nil
	}
	return result, nil
}

// roundtripJSON re-encodes in through JSON into out, converting between
// map-shaped and struct-shaped values.
func roundtripJSON(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Package tool defines the executable tool contract, typed function tools,
// and the prompt-facing declaration rendering.
package tool

import (
	"context"
	"fmt"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

// Tool is one executable tool. Run returns a JSON-shaped result map that is
// serialized into the tool-result message verbatim.
type Tool interface {
	Name() string
	Description() string
	Declaration() model.ToolDefinition
	Run(context.Context, map[string]any) (map[string]any, error)
}

// BuildMap indexes tools by name, rejecting blanks and collisions.
func BuildMap(tools []Tool) (map[string]Tool, error) {
	out := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool: empty name")
		}
		if _, exists := out[name]; exists {
			return nil, fmt.Errorf("tool: duplicate tool %q", name)
		}
		out[name] = t
	}
	return out, nil
}

// Declarations collects the model-visible declarations of tools, in order.
func Declarations(tools []Tool) []model.ToolDefinition {
	decls := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		decls = append(decls, t.Declaration())
	}
	return decls
}

package builtin

import (
	"context"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	toolmcp "github.com/andrewrchen05/bounding-box-agent/kernel/tool/mcptoolset"
)

type visionModelContextKey struct{}
type mcpManagerContextKey struct{}

// WithVisionModel overrides the vision model for the box tool provider.
// Tool resolution after a model switch passes the new model this way.
func WithVisionModel(ctx context.Context, vision model.LLM) context.Context {
	if ctx == nil || vision == nil {
		return ctx
	}
	return context.WithValue(ctx, visionModelContextKey{}, vision)
}

func visionModelFromContext(ctx context.Context) model.LLM {
	if ctx == nil {
		return nil
	}
	vision, ok := ctx.Value(visionModelContextKey{}).(model.LLM)
	if !ok {
		return nil
	}
	return vision
}

// WithMCPToolManager overrides the MCP tool manager for the mcp_tools
// provider, so a reconnect can swap servers without re-registering.
func WithMCPToolManager(ctx context.Context, manager *toolmcp.Manager) context.Context {
	if ctx == nil || manager == nil {
		return ctx
	}
	return context.WithValue(ctx, mcpManagerContextKey{}, manager)
}

func mcpManagerFromContext(ctx context.Context) *toolmcp.Manager {
	if ctx == nil {
		return nil
	}
	manager, ok := ctx.Value(mcpManagerContextKey{}).(*toolmcp.Manager)
	if !ok {
		return nil
	}
	return manager
}

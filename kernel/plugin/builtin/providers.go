package builtin

import (
	"context"
	"fmt"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/plugin"
	"github.com/andrewrchen05/bounding-box-agent/kernel/policy"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool/builtin/boxtools"
	toolmcp "github.com/andrewrchen05/bounding-box-agent/kernel/tool/mcptoolset"
)

const (
	ProviderBoxTools      = "box_tools"
	ProviderMCPTools      = "mcp_tools"
	ProviderDefaultPolicy = "default_allow"
)

// RegisterOptions carries explicit dependencies for builtin providers.
type RegisterOptions struct {
	// VisionModel backs detect_bounding_box. A context override via
	// WithVisionModel wins over this one.
	VisionModel model.LLM

	// MCPToolManager backs the mcp_tools provider; nil means no MCP
	// servers are configured.
	MCPToolManager *toolmcp.Manager

	// ImageRoots confines tool image paths when non-empty.
	ImageRoots []string
}

// RegisterAll registers built-in providers into a plugin registry.
func RegisterAll(r *plugin.Registry, options RegisterOptions) error {
	if r == nil {
		return fmt.Errorf("builtin: registry is nil")
	}
	if err := r.RegisterToolProvider(boxToolProvider{vision: options.VisionModel}); err != nil {
		return err
	}
	if err := r.RegisterToolProvider(mcpToolProvider{manager: options.MCPToolManager}); err != nil {
		return err
	}
	if err := r.RegisterPolicyProvider(defaultPolicyProvider{imageRoots: options.ImageRoots}); err != nil {
		return err
	}
	return nil
}

type boxToolProvider struct {
	vision model.LLM
}

func (p boxToolProvider) Name() string {
	return ProviderBoxTools
}

func (p boxToolProvider) Tools(ctx context.Context) ([]tool.Tool, error) {
	vision := visionModelFromContext(ctx)
	if vision == nil {
		vision = p.vision
	}
	if vision == nil {
		// No model connected yet. Drawing works standalone; detection
		// joins once tools are re-resolved against a connected model.
		return []tool.Tool{boxtools.NewDraw()}, nil
	}
	detectTool, err := boxtools.NewDetect(vision)
	if err != nil {
		return nil, err
	}
	return []tool.Tool{detectTool, boxtools.NewDraw()}, nil
}

type mcpToolProvider struct {
	manager *toolmcp.Manager
}

func (p mcpToolProvider) Name() string {
	return ProviderMCPTools
}

func (p mcpToolProvider) Tools(ctx context.Context) ([]tool.Tool, error) {
	manager := mcpManagerFromContext(ctx)
	if manager == nil {
		manager = p.manager
	}
	if manager == nil {
		return nil, nil
	}
	return manager.Tools(ctx)
}

func (p mcpToolProvider) Stop(ctx context.Context) error {
	_ = ctx
	if p.manager == nil {
		return nil
	}
	return p.manager.Close()
}

type defaultPolicyProvider struct {
	imageRoots []string
}

func (p defaultPolicyProvider) Name() string {
	return ProviderDefaultPolicy
}

func (p defaultPolicyProvider) Policies(ctx context.Context) ([]policy.Hook, error) {
	_ = ctx
	if len(p.imageRoots) == 0 {
		return nil, nil
	}
	return []policy.Hook{
		policy.ConfineImagePaths(policy.PathConfinementConfig{
			AllowedRoots: p.imageRoots,
		}),
	}, nil
}

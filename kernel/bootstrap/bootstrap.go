package bootstrap

import (
	"context"

	"github.com/andrewrchen05/bounding-box-agent/kernel/plugin"
	pluginbuiltin "github.com/andrewrchen05/bounding-box-agent/kernel/plugin/builtin"
	"github.com/andrewrchen05/bounding-box-agent/kernel/policy"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool"
)

// AssembleSpec describes plugin-level assembly settings.
type AssembleSpec struct {
	// ToolProviders and PolicyProviders name the providers to resolve, in
	// order. Empty slices resolve the defaults.
	ToolProviders   []string
	PolicyProviders []string

	Options pluginbuiltin.RegisterOptions
}

// ResolvedSpec is the assembled runtime capability set. Registry stays
// available for re-resolution after a model or server change, and for
// Shutdown.
type ResolvedSpec struct {
	Tools    []tool.Tool
	Policies []policy.Hook
	Registry *plugin.Registry

	// ToolProviderNames records the resolved tool provider order, so a
	// caller can re-resolve tools against the same providers.
	ToolProviderNames []string
}

// Shutdown stops providers holding external resources.
func (r *ResolvedSpec) Shutdown(ctx context.Context) error {
	if r == nil || r.Registry == nil {
		return nil
	}
	return r.Registry.Shutdown(ctx)
}

func DefaultToolProviders() []string {
	return []string{
		pluginbuiltin.ProviderBoxTools,
		pluginbuiltin.ProviderMCPTools,
	}
}

func DefaultPolicyProviders() []string {
	return []string{
		pluginbuiltin.ProviderDefaultPolicy,
	}
}

// Assemble resolves runtime capabilities from plugin providers.
func Assemble(ctx context.Context, spec AssembleSpec) (*ResolvedSpec, error) {
	preg := plugin.NewRegistry()
	if err := pluginbuiltin.RegisterAll(preg, spec.Options); err != nil {
		return nil, err
	}
	toolProviders := spec.ToolProviders
	if len(toolProviders) == 0 {
		toolProviders = DefaultToolProviders()
	}
	policyProviders := spec.PolicyProviders
	if len(policyProviders) == 0 {
		policyProviders = DefaultPolicyProviders()
	}
	tools, err := preg.ResolveTools(ctx, toolProviders)
	if err != nil {
		return nil, err
	}
	policies, err := preg.ResolvePolicies(ctx, policyProviders)
	if err != nil {
		return nil, err
	}
	return &ResolvedSpec{
		Tools:             tools,
		Policies:          policies,
		Registry:          preg,
		ToolProviderNames: append([]string(nil), toolProviders...),
	}, nil
}

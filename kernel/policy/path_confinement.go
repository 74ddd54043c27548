package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/kernel/toolcap"
)

// PathConfinementConfig lists directory roots that tool path arguments may
// reference. Empty roots disable confinement.
type PathConfinementConfig struct {
	AllowedRoots []string
}

type pathConfinementHook struct {
	name  string
	roots []string
}

// ConfineImagePaths denies tool invocations whose image_path or output_path
// arguments resolve outside the allowed roots. Reads are checked for tools
// declaring file_read capability, writes for file_write.
func ConfineImagePaths(cfg PathConfinementConfig) Hook {
	roots := make([]string, 0, len(cfg.AllowedRoots))
	for _, root := range cfg.AllowedRoots {
		normalized := normalizePathForComparison(root)
		if normalized == "" {
			continue
		}
		roots = append(roots, normalized)
	}
	return pathConfinementHook{
		name:  "confine_image_paths",
		roots: roots,
	}
}

func (h pathConfinementHook) Name() string {
	return h.name
}

func (h pathConfinementHook) BeforeModel(ctx context.Context, in ModelInput) (ModelInput, error) {
	_ = ctx
	return in, nil
}

func (h pathConfinementHook) BeforeTool(ctx context.Context, in ToolInput) (ToolInput, error) {
	_ = ctx
	if len(h.roots) == 0 {
		return in, nil
	}
	if in.Capability.HasOperation(toolcap.OperationFileRead) {
		if reason := h.escapeReason(in.Call.Params, "image_path"); reason != "" {
			in.Decision = Decision{Effect: DecisionEffectDeny, Reason: reason}
			return in, nil
		}
	}
	if in.Capability.HasOperation(toolcap.OperationFileWrite) {
		if reason := h.escapeReason(in.Call.Params, "output_path"); reason != "" {
			in.Decision = Decision{Effect: DecisionEffectDeny, Reason: reason}
			return in, nil
		}
	}
	return in, nil
}

func (h pathConfinementHook) AfterTool(ctx context.Context, out ToolOutput) (ToolOutput, error) {
	_ = ctx
	return out, nil
}

func (h pathConfinementHook) BeforeOutput(ctx context.Context, out Output) (Output, error) {
	_ = ctx
	return out, nil
}

// escapeReason returns a deny reason when the named path argument is present
// and resolves outside every allowed root.
func (h pathConfinementHook) escapeReason(params map[string]any, key string) string {
	raw, ok := params[key].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return ""
	}
	target := normalizePathForComparison(raw)
	for _, root := range h.roots {
		if target == root || strings.HasPrefix(target, root+string(filepath.Separator)) {
			return ""
		}
	}
	return fmt.Sprintf("%s %q is outside the permitted directories", key, raw)
}

func normalizePathForComparison(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err == nil {
			path = filepath.Join(cwd, path)
		}
	}
	return filepath.Clean(path)
}

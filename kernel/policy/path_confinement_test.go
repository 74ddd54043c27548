package policy

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrewrchen05/bounding-box-agent/kernel/decision"
	"github.com/andrewrchen05/bounding-box-agent/kernel/toolcap"
)

func imageToolCapability() toolcap.Capability {
	return toolcap.Capability{
		Operations: []toolcap.Operation{toolcap.OperationFileRead, toolcap.OperationFileWrite},
		Risk:       toolcap.RiskMedium,
	}
}

func TestConfineImagePaths_DeniesWriteOutsideRoots(t *testing.T) {
	root := t.TempDir()
	hook := ConfineImagePaths(PathConfinementConfig{AllowedRoots: []string{root}})

	in := ToolInput{
		Call: decision.Invocation{
			Name: "draw_bounding_box",
			Params: map[string]any{
				"image_path":  filepath.Join(root, "photo.png"),
				"output_path": "/somewhere/else/out.png",
			},
		},
		Capability: imageToolCapability(),
		Decision:   DefaultAllow(),
	}
	out, err := hook.BeforeTool(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.Effect != DecisionEffectDeny {
		t.Fatalf("expected deny, got %#v", out.Decision)
	}
	if !strings.Contains(out.Decision.Reason, "output_path") {
		t.Fatalf("unexpected reason: %q", out.Decision.Reason)
	}
}

func TestConfineImagePaths_DeniesReadOutsideRoots(t *testing.T) {
	root := t.TempDir()
	hook := ConfineImagePaths(PathConfinementConfig{AllowedRoots: []string{root}})

	in := ToolInput{
		Call: decision.Invocation{
			Name:   "detect_bounding_box",
			Params: map[string]any{"image_path": "/somewhere/else/photo.png", "label": "button"},
		},
		Capability: toolcap.Capability{
			Operations: []toolcap.Operation{toolcap.OperationFileRead},
			Risk:       toolcap.RiskLow,
		},
		Decision: DefaultAllow(),
	}
	out, err := hook.BeforeTool(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.Effect != DecisionEffectDeny {
		t.Fatalf("expected deny, got %#v", out.Decision)
	}
	if !strings.Contains(out.Decision.Reason, "image_path") {
		t.Fatalf("unexpected reason: %q", out.Decision.Reason)
	}
}

func TestConfineImagePaths_AllowsInsideRoots(t *testing.T) {
	root := t.TempDir()
	hook := ConfineImagePaths(PathConfinementConfig{AllowedRoots: []string{root}})

	in := ToolInput{
		Call: decision.Invocation{
			Name: "draw_bounding_box",
			Params: map[string]any{
				"image_path":  filepath.Join(root, "photo.png"),
				"output_path": filepath.Join(root, "outputs", "photo_annotated.png"),
			},
		},
		Capability: imageToolCapability(),
		Decision:   DefaultAllow(),
	}
	out, err := hook.BeforeTool(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.Effect != DecisionEffectAllow {
		t.Fatalf("expected allow, got %#v", out.Decision)
	}
}

func TestConfineImagePaths_MissingPathArgsPass(t *testing.T) {
	root := t.TempDir()
	hook := ConfineImagePaths(PathConfinementConfig{AllowedRoots: []string{root}})

	in := ToolInput{
		Call: decision.Invocation{
			Name:   "draw_bounding_box",
			Params: map[string]any{"image_path": filepath.Join(root, "photo.png")},
		},
		Capability: imageToolCapability(),
		Decision:   DefaultAllow(),
	}
	out, err := hook.BeforeTool(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.Effect != DecisionEffectAllow {
		t.Fatalf("expected allow without output_path, got %#v", out.Decision)
	}
}

func TestConfineImagePaths_EmptyRootsDisable(t *testing.T) {
	hook := ConfineImagePaths(PathConfinementConfig{})

	in := ToolInput{
		Call: decision.Invocation{
			Name:   "detect_bounding_box",
			Params: map[string]any{"image_path": "/anywhere/photo.png"},
		},
		Capability: imageToolCapability(),
		Decision:   DefaultAllow(),
	}
	out, err := hook.BeforeTool(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.Effect != DecisionEffectAllow {
		t.Fatalf("expected pass-through, got %#v", out.Decision)
	}
}

func TestConfineImagePaths_IgnoresToolsWithoutFileOps(t *testing.T) {
	root := t.TempDir()
	hook := ConfineImagePaths(PathConfinementConfig{AllowedRoots: []string{root}})

	in := ToolInput{
		Call: decision.Invocation{
			Name:   "list_sessions",
			Params: map[string]any{"image_path": "/somewhere/else/photo.png"},
		},
		Capability: toolcap.Capability{Risk: toolcap.RiskLow},
		Decision:   DefaultAllow(),
	}
	out, err := hook.BeforeTool(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.Effect != DecisionEffectAllow {
		t.Fatalf("expected allow for capability without file ops, got %#v", out.Decision)
	}
}

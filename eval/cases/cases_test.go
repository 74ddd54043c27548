package cases

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool/builtin/boxtools"
)

func TestWriteSquareImageProducesDecodablePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "square.png")
	if err := WriteSquareImage(path); err != nil {
		t.Fatalf("write image: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 320 || bounds.Dy() != 240 {
		t.Fatalf("unexpected bounds %v", bounds)
	}
	r, g, b, _ := img.At(80, 70).RGBA()
	if r == 0 || g != 0 || b != 0 {
		t.Fatalf("expected a red pixel inside the square, got r=%d g=%d b=%d", r, g, b)
	}
	r, g, b, _ = img.At(300, 200).RGBA()
	if r != g || g != b {
		t.Fatalf("expected a white pixel outside the square, got r=%d g=%d b=%d", r, g, b)
	}
}

func TestLightCasesBuildPrompts(t *testing.T) {
	workDir := t.TempDir()
	for _, c := range Light() {
		prompt, err := c.Build(workDir)
		if err != nil {
			t.Fatalf("case %s: build: %v", c.Name, err)
		}
		if strings.TrimSpace(prompt) == "" {
			t.Fatalf("case %s: empty prompt", c.Name)
		}
	}
}

func TestNightlyExtendsLight(t *testing.T) {
	light := Light()
	nightly := Nightly()
	if len(nightly) <= len(light) {
		t.Fatalf("expected nightly to extend light, got %d <= %d", len(nightly), len(light))
	}
	for i, c := range light {
		if nightly[i].Name != c.Name {
			t.Fatalf("expected nightly to start with light cases, got %q at %d", nightly[i].Name, i)
		}
	}
}

func TestValidateToolsSucceedAndAssistant(t *testing.T) {
	validate := validateToolsSucceedAndAssistant(boxtools.DetectToolName, boxtools.DrawToolName)

	events := []*session.Event{
		toolEvent(boxtools.DetectToolName, true),
		toolEvent(boxtools.DrawToolName, true),
		assistantEvent("Annotated image saved."),
	}
	if err := validate(events); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}

	failed := []*session.Event{
		toolEvent(boxtools.DetectToolName, true),
		toolEvent(boxtools.DrawToolName, false),
		assistantEvent("The draw step failed."),
	}
	err := validate(failed)
	if err == nil || !strings.Contains(err.Error(), boxtools.DrawToolName) {
		t.Fatalf("expected failed draw to be rejected, got %v", err)
	}

	silent := []*session.Event{
		toolEvent(boxtools.DetectToolName, true),
		toolEvent(boxtools.DrawToolName, true),
	}
	if err := validate(silent); err == nil {
		t.Fatalf("expected missing assistant text to be rejected")
	}
}

func TestValidateAssistantNonEmpty(t *testing.T) {
	if err := validateAssistantNonEmpty([]*session.Event{assistantEvent("done")}); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if err := validateAssistantNonEmpty([]*session.Event{assistantEvent("  ")}); err == nil {
		t.Fatalf("expected blank assistant text to be rejected")
	}
}

func toolEvent(name string, success bool) *session.Event {
	return &session.Event{
		Time: time.Now(),
		Message: model.Message{
			Role: model.RoleTool,
			ToolResponse: &model.ToolResponse{
				Name:    name,
				Success: success,
			},
		},
	}
}

func assistantEvent(text string) *session.Event {
	return &session.Event{
		Time: time.Now(),
		Message: model.Message{
			Role: model.RoleAssistant,
			Text: text,
		},
	}
}

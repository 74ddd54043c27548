package cases

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool/builtin/boxtools"
)

// Case defines one runtime eval scenario. Build receives a case-scoped
// scratch directory for generated images and draw outputs, and returns the
// user prompt.
type Case struct {
	Name        string
	Description string
	Build       func(workDir string) (string, error)
	Validate    func(events []*session.Event) error
}

func Light() []Case {
	return []Case{
		{
			Name:        "basic_reply",
			Description: "assistant returns a non-empty final answer",
			Build:       staticPrompt("Reply in exactly one short sentence: what can you do?"),
			Validate:    validateAssistantNonEmpty,
		},
		{
			Name:        "basic_reply_tools",
			Description: "assistant names its tools without calling one",
			Build:       staticPrompt("Without calling any tool, list the names of the tools available to you."),
			Validate:    validateAssistantNonEmpty,
		},
		{
			Name:        "detect_red_square",
			Description: "assistant detects the red square in a generated image",
			Build: func(workDir string) (string, error) {
				path := filepath.Join(workDir, "red_square.png")
				if err := WriteSquareImage(path); err != nil {
					return "", err
				}
				return fmt.Sprintf(
					"Use %s to find the red square in %s, then tell me how many boxes you found.",
					boxtools.DetectToolName, path,
				), nil
			},
			Validate: validateToolsSucceedAndAssistant(boxtools.DetectToolName),
		},
		{
			Name:        "draw_fixed_box",
			Description: "assistant draws a given box onto a generated image",
			Build: func(workDir string) (string, error) {
				path := filepath.Join(workDir, "canvas.png")
				if err := WriteSquareImage(path); err != nil {
					return "", err
				}
				return fmt.Sprintf(
					"Call %s on %s with one box from (0.1, 0.1) to (0.5, 0.5) and report the output path.",
					boxtools.DrawToolName, path,
				), nil
			},
			Validate: validateToolsSucceedAndAssistant(boxtools.DrawToolName),
		},
		{
			Name:        "detect_then_draw",
			Description: "assistant chains detection into drawing",
			Build: func(workDir string) (string, error) {
				path := filepath.Join(workDir, "scene.png")
				if err := WriteSquareImage(path); err != nil {
					return "", err
				}
				return fmt.Sprintf(
					"Find the red square in %s with %s, draw the boxes you found onto the image with %s, and tell me where the annotated file is.",
					path, boxtools.DetectToolName, boxtools.DrawToolName,
				), nil
			},
			Validate: validateToolsSucceedAndAssistant(boxtools.DetectToolName, boxtools.DrawToolName),
		},
	}
}

func Nightly() []Case {
	out := append([]Case{}, Light()...)
	for i := 1; i <= 10; i++ {
		idx := i
		out = append(out, Case{
			Name:        fmt.Sprintf("detect_stability_%02d", idx),
			Description: "repeated detection stays grounded on the same image",
			Build: func(workDir string) (string, error) {
				path := filepath.Join(workDir, "stability.png")
				if err := WriteSquareImage(path); err != nil {
					return "", err
				}
				return fmt.Sprintf(
					"Stability pass #%d: detect the red square in %s and report the box coordinates.",
					idx, path,
				), nil
			},
			Validate: validateToolsSucceedAndAssistant(boxtools.DetectToolName),
		})
	}
	for i := 1; i <= 10; i++ {
		idx := i
		out = append(out, Case{
			Name:        fmt.Sprintf("reply_stability_%02d", idx),
			Description: "answer continuity without tool use",
			Build: func(workDir string) (string, error) {
				_ = workDir
				return fmt.Sprintf(
					"Stability pass #%d: in two sentences, explain when you answer directly and when you call a tool.",
					idx,
				), nil
			},
			Validate: validateAssistantNonEmpty,
		})
	}
	return out
}

func staticPrompt(prompt string) func(string) (string, error) {
	return func(workDir string) (string, error) {
		_ = workDir
		return prompt, nil
	}
}

// WriteSquareImage writes a 320x240 white PNG with one filled red square in
// the upper-left quadrant, so detect prompts have an unambiguous target.
func WriteSquareImage(path string) error {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	square := image.Rect(40, 30, 120, 110)
	draw.Draw(img, square, image.NewUniform(color.RGBA{R: 220, A: 255}), image.Point{}, draw.Src)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func validateAssistantNonEmpty(events []*session.Event) error {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev == nil {
			continue
		}
		if ev.Message.Role == model.RoleAssistant && strings.TrimSpace(ev.Message.Text) != "" {
			return nil
		}
	}
	return fmt.Errorf("no non-empty assistant response")
}

// validateToolsSucceedAndAssistant requires at least one successful
// execution of every named tool plus a final assistant text.
func validateToolsSucceedAndAssistant(toolNames ...string) func([]*session.Event) error {
	return func(events []*session.Event) error {
		succeeded := map[string]bool{}
		for _, name := range toolNames {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			succeeded[name] = false
		}
		hasAssistant := false
		for _, ev := range events {
			if ev == nil {
				continue
			}
			if resp := ev.Message.ToolResponse; resp != nil && resp.Success {
				if _, ok := succeeded[resp.Name]; ok {
					succeeded[resp.Name] = true
				}
			}
			if ev.Message.Role == model.RoleAssistant && strings.TrimSpace(ev.Message.Text) != "" {
				hasAssistant = true
			}
		}
		for name, ok := range succeeded {
			if !ok {
				return fmt.Errorf("expected a successful %s call", name)
			}
		}
		if !hasAssistant {
			return fmt.Errorf("expected assistant final text")
		}
		return nil
	}
}

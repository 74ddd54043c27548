package boxtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool/builtin/internal/argparse"
	"github.com/andrewrchen05/bounding-box-agent/kernel/toolcap"
)

const (
	// DetectToolName is the built-in detection tool name.
	DetectToolName = "detect_bounding_box"
)

// DetectOutput is the detect tool result document.
type DetectOutput struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Boxes  []Box `json:"boxes"`
}

// DetectTool locates objects in a local image through a vision model and
// returns normalized bounding boxes.
type DetectTool struct {
	vision model.LLM
}

// NewDetect creates the built-in detection tool.
func NewDetect(vision model.LLM) (*DetectTool, error) {
	if vision == nil {
		return nil, fmt.Errorf("boxtools: vision model is required")
	}
	return &DetectTool{vision: vision}, nil
}

func (t *DetectTool) Name() string {
	return DetectToolName
}

func (t *DetectTool) Description() string {
	return "Detects objects in an image and returns their bounding boxes in normalized xyxy coordinates."
}

func (t *DetectTool) Capability() toolcap.Capability {
	return toolcap.Capability{
		Operations: []toolcap.Operation{toolcap.OperationFileRead, toolcap.OperationNetwork},
		Risk:       toolcap.RiskLow,
	}
}

func (t *DetectTool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"image_path": map[string]any{"type": "string", "description": "Local file path to the image to analyze"},
				"label":      map[string]any{"type": "string", "description": "Name of the object to locate, e.g. 'cat' or 'crack'"},
			},
			"required": []string{"image_path", "label"},
		},
	}
}

func (t *DetectTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	imagePath, err := argparse.String(args, "image_path", false)
	if err != nil {
		return nil, err
	}
	if imagePath == "" {
		return nil, errors.New("image_path parameter is required")
	}
	label, err := argparse.String(args, "label", false)
	if err != nil {
		return nil, err
	}
	if label == "" {
		return nil, errors.New("label parameter is required")
	}

	width, height, err := readImageSize(imagePath)
	if err != nil {
		return nil, fmt.Errorf("Failed to load image from %s: %w", imagePath, err)
	}

	resp, err := t.vision.Generate(ctx, &model.Request{
		Messages: []model.Message{{
			Role:      model.RoleUser,
			Text:      detectPrompt(label),
			ImagePath: imagePath,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to call vision model: %w", err)
	}

	boxes, err := boxesFromReply(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse bounding box response: %w", err)
	}

	return resultMap(DetectOutput{Width: width, Height: height, Boxes: boxes})
}

func detectPrompt(label string) string {
	return fmt.Sprintf(`Detect every instance of %q in the attached image.
Reply with only a JSON object of the form
{"boxes": [{"confidence": <0.0-1.0>, "xyxy": [x1, y1, x2, y2]}]}
where xyxy coordinates are normalized to the 0.0-1.0 range relative to the
image width and height. Use an empty boxes list when no instance is present.`, label)
}

// boxesFromReply decodes the vision reply into validated boxes. The reply
// may arrive bare or wrapped in a markdown fence.
func boxesFromReply(raw string) ([]Box, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	listRaw, ok := payload["boxes"].([]any)
	if !ok {
		return nil, errors.New("response has no boxes list")
	}
	boxes := make([]Box, 0, len(listRaw))
	for _, entry := range listRaw {
		boxMap, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("box entry %v is not an object", entry)
		}
		box, ok, err := boxFromMap(boxMap)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("box entry missing xyxy")
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// extractJSON recovers a JSON object from raw model text.
func extractJSON(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if block, ok := fencedContent(trimmed); ok {
		trimmed = block
	}
	payload := map[string]any{}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, errors.New("Failed to parse JSON from response")
	}
	return payload, nil
}

func fencedContent(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	block := strings.TrimSpace(rest[:end])
	block = strings.TrimSpace(strings.TrimPrefix(block, "json"))
	return block, block != ""
}

func readImageSize(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

package boxtools

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool/builtin/internal/argparse"
	"github.com/andrewrchen05/bounding-box-agent/kernel/toolcap"
)

const (
	// DrawToolName is the built-in box rendering tool name.
	DrawToolName = "draw_bounding_box"

	defaultLineWidth = 3
)

// DrawOutput is the draw tool result document.
type DrawOutput struct {
	OutputPath string `json:"output_path"`
	BoxesDrawn int    `json:"boxes_drawn"`
}

// DrawTool renders bounding boxes onto a local image and writes the
// annotated copy.
type DrawTool struct{}

// NewDraw creates the built-in draw tool.
func NewDraw() *DrawTool {
	return &DrawTool{}
}

func (t *DrawTool) Name() string {
	return DrawToolName
}

func (t *DrawTool) Description() string {
	return "Draws bounding boxes on an image using the provided normalized coordinates."
}

func (t *DrawTool) Capability() toolcap.Capability {
	return toolcap.Capability{
		Operations: []toolcap.Operation{toolcap.OperationFileRead, toolcap.OperationFileWrite},
		Risk:       toolcap.RiskMedium,
	}
}

func (t *DrawTool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"image_path": map[string]any{"type": "string", "description": "Local file path to the image to draw on"},
				"boxes": map[string]any{
					"description": "Boxes to draw: either a list of box objects with 'xyxy' [x1, y1, x2, y2] normalized coordinates plus optional 'confidence' and 'label', or a full detect_bounding_box result object with a 'boxes' key",
				},
				"output_path": map[string]any{"type": "string", "description": "Optional output file path; derived from the input path when omitted"},
				"color":       map[string]any{"type": "string", "description": "Line color name or hex code, e.g. 'red' or '#FF0000' (default red)"},
				"line_width":  map[string]any{"type": "integer", "description": "Line width in pixels (default 3)"},
				"draw_labels": map[string]any{"type": "boolean", "description": "Whether to draw labels on the boxes (default false)"},
				"label_text":  map[string]any{"type": "string", "description": "Optional label text applied to every box"},
			},
			"required": []string{"image_path", "boxes"},
		},
	}
}

func (t *DrawTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	imagePath, err := argparse.String(args, "image_path", false)
	if err != nil {
		return nil, err
	}
	outputArg, err := argparse.String(args, "output_path", false)
	if err != nil {
		return nil, err
	}
	colorArg, err := argparse.String(args, "color", false)
	if err != nil {
		return nil, err
	}
	lineWidth, err := argparse.Int(args, "line_width", defaultLineWidth)
	if err != nil {
		return nil, err
	}
	withLabels, err := argparse.Bool(args, "draw_labels", false)
	if err != nil {
		return nil, err
	}
	labelText, err := argparse.String(args, "label_text", false)
	if err != nil {
		return nil, err
	}

	if imagePath == "" {
		return nil, errors.New("image_path parameter is required")
	}
	boxesArg, ok := args["boxes"]
	if !ok || boxesArg == nil || emptyBoxesArg(boxesArg) {
		return nil, errors.New("boxes parameter is required")
	}

	img, err := loadImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("Failed to load image from %s: %w", imagePath, err)
	}

	boxes, err := parseBoxes(boxesArg)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse boxes: %w", err)
	}
	if len(boxes) == 0 {
		return nil, errors.New("No valid boxes found in the provided data")
	}

	outPath, err := deriveOutputPath(imagePath, outputArg)
	if err != nil {
		return nil, err
	}

	lineColor := parseColor(colorArg)
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	for i, box := range boxes {
		x1 := int(box.XYXY[0] * float64(width))
		y1 := int(box.XYXY[1] * float64(height))
		x2 := int(box.XYXY[2] * float64(width))
		y2 := int(box.XYXY[3] * float64(height))
		strokeRect(img, x1, y1, x2, y2, lineColor, lineWidth)
		if withLabels {
			drawBoxLabel(img, boxLabel(box, i, labelText), x1, y1, lineColor)
		}
	}

	if err := saveImage(outPath, img); err != nil {
		return nil, fmt.Errorf("Failed to save annotated image to %s: %w", outPath, err)
	}
	return resultMap(DrawOutput{OutputPath: outPath, BoxesDrawn: len(boxes)})
}

// parseBoxes accepts either a bare box list or a detect result object
// carrying a boxes key. Entries without xyxy are skipped.
func parseBoxes(raw any) ([]Box, error) {
	switch v := raw.(type) {
	case map[string]any:
		inner, ok := v["boxes"]
		if !ok {
			return nil, invalidBoxesFormat(raw)
		}
		list, ok := inner.([]any)
		if !ok {
			return nil, invalidBoxesFormat(inner)
		}
		return boxList(list)
	case []any:
		return boxList(v)
	default:
		return nil, invalidBoxesFormat(raw)
	}
}

func invalidBoxesFormat(got any) error {
	return fmt.Errorf("Invalid boxes format. Expected dict with 'boxes' key or list of box dicts. Got: %T", got)
}

func boxList(list []any) ([]Box, error) {
	boxes := make([]Box, 0, len(list))
	for _, entry := range list {
		boxMap, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("box entry %v is not an object", entry)
		}
		box, ok, err := boxFromMap(boxMap)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

func emptyBoxesArg(raw any) bool {
	switch v := raw.(type) {
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

func boxLabel(box Box, index int, labelText string) string {
	if labelText != "" {
		return labelText
	}
	if box.Label != "" {
		return box.Label
	}
	if box.Confidence < 1.0 {
		return fmt.Sprintf("%.2f", box.Confidence)
	}
	return fmt.Sprintf("Box %d", index+1)
}

// deriveOutputPath places derived outputs under <assets>/outputs/ when the
// input lives inside an assets directory, else beside the input with an
// _annotated suffix.
func deriveOutputPath(inputPath, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	ext := filepath.Ext(inputPath)
	abs, err := filepath.Abs(inputPath)
	if err != nil {
		abs = inputPath
	}
	parts := strings.Split(filepath.Dir(abs), string(filepath.Separator))
	for i, part := range parts {
		if part != "assets" {
			continue
		}
		outputs := filepath.Join(strings.Join(parts[:i+1], string(filepath.Separator)), "outputs")
		if err := os.MkdirAll(outputs, 0o755); err != nil {
			return "", err
		}
		stem := strings.TrimSuffix(filepath.Base(abs), ext)
		return filepath.Join(outputs, stem+"_annotated"+ext), nil
	}
	return strings.TrimSuffix(inputPath, ext) + "_annotated" + ext, nil
}

var colorNames = map[string]color.RGBA{
	"red":     {255, 0, 0, 255},
	"green":   {0, 255, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"white":   {255, 255, 255, 255},
	"black":   {0, 0, 0, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"pink":    {255, 192, 203, 255},
}

// parseColor resolves a color name or #RRGGBB/#RGB hex code, falling back
// to red.
func parseColor(raw string) color.RGBA {
	name := strings.ToLower(strings.TrimSpace(raw))
	if c, ok := colorNames[name]; ok {
		return c
	}
	if strings.HasPrefix(name, "#") {
		hex := name[1:]
		switch len(hex) {
		case 6:
			if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
				return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
			}
		case 3:
			if v, err := strconv.ParseUint(hex, 16, 16); err == nil {
				r := uint8(v >> 8 & 0xF)
				g := uint8(v >> 4 & 0xF)
				b := uint8(v & 0xF)
				return color.RGBA{R: r*16 + r, G: g*16 + g, B: b*16 + b, A: 255}
			}
		}
	}
	return colorNames["red"]
}

func loadImage(path string) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	src, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)
	return rgba, nil
}

func saveImage(path string, img image.Image) error {
	var encode func(io.Writer, image.Image) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		encode = func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: 90})
		}
	case ".png", "":
		encode = func(w io.Writer, m image.Image) error {
			return png.Encode(w, m)
		}
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return encode(file, img)
}

// strokeRect draws an unfilled rectangle with the given edge width. The
// corner coordinates are inclusive.
func strokeRect(img *image.RGBA, x1, y1, x2, y2 int, col color.Color, width int) {
	if width <= 0 {
		width = 1
	}
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	edges := []image.Rectangle{
		image.Rect(x1, y1, x2+1, y1+width),
		image.Rect(x1, y2+1-width, x2+1, y2+1),
		image.Rect(x1, y1, x1+width, y2+1),
		image.Rect(x2+1-width, y1, x2+1, y2+1),
	}
	for _, edge := range edges {
		draw.Draw(img, edge.Intersect(img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
	}
}

func fillRect(img *image.RGBA, x1, y1, x2, y2 int, col color.Color) {
	rect := image.Rect(x1, y1, x2+1, y2+1).Intersect(img.Bounds())
	draw.Draw(img, rect, image.NewUniform(col), image.Point{}, draw.Src)
}

// drawBoxLabel paints a filled background above the box corner and renders
// the label text in a contrasting color.
func drawBoxLabel(img *image.RGBA, text string, x, y int, bg color.RGBA) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Ascent + face.Descent
	labelY := max(y-textHeight-4, 0)
	fillRect(img, x, labelY, x+textWidth+4, labelY+textHeight+4, bg)
	textColor := color.RGBA{A: 255}
	if int(bg.R)+int(bg.G)+int(bg.B) < 384 {
		textColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	drawer := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(x+2, labelY+2+face.Ascent),
	}
	drawer.DrawString(text)
}

package boxtools

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"
	"testing"
)

func TestBoxValidate(t *testing.T) {
	cases := []struct {
		name    string
		box     Box
		wantErr string
	}{
		{"valid", Box{Confidence: 0.95, XYXY: []float64{0.1, 0.2, 0.3, 0.4}}, ""},
		{"confidence below zero", Box{Confidence: -0.1, XYXY: []float64{0.1, 0.2, 0.3, 0.4}}, "Confidence must be between 0.0 and 1.0"},
		{"confidence above one", Box{Confidence: 1.1, XYXY: []float64{0.1, 0.2, 0.3, 0.4}}, "Confidence must be between 0.0 and 1.0"},
		{"three coordinates", Box{Confidence: 0.9, XYXY: []float64{0.1, 0.2, 0.3}}, "xyxy must contain exactly 4 coordinates"},
		{"coordinate below zero", Box{Confidence: 0.9, XYXY: []float64{-0.1, 0.2, 0.3, 0.4}}, "Normalized coordinates must be between 0.0 and 1.0"},
		{"coordinate above one", Box{Confidence: 0.9, XYXY: []float64{0.1, 0.2, 0.3, 1.1}}, "Normalized coordinates must be between 0.0 and 1.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.box.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tc.wantErr {
				t.Fatalf("error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestBoxFromMap_Defaults(t *testing.T) {
	box, ok, err := boxFromMap(map[string]any{"xyxy": []any{0.1, 0.2, 0.3, 0.4}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if box.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want default 1.0", box.Confidence)
	}
}

func TestBoxFromMap_MissingXYXY(t *testing.T) {
	_, ok, err := boxFromMap(map[string]any{"confidence": 0.8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("box without xyxy should not parse")
	}
}

func TestBoxFromMap_QuotedNumbers(t *testing.T) {
	box, ok, err := boxFromMap(map[string]any{
		"xyxy":       []any{"0.1", "0.2", "0.3", "0.4"},
		"confidence": "0.85",
	})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if box.Confidence != 0.85 {
		t.Fatalf("confidence = %v, want 0.85", box.Confidence)
	}
	if box.XYXY[2] != 0.3 {
		t.Fatalf("xyxy[2] = %v, want 0.3", box.XYXY[2])
	}
}

func TestBoxFromMap_CarriesLabel(t *testing.T) {
	box, ok, err := boxFromMap(map[string]any{
		"xyxy":       []any{0.1, 0.2, 0.3, 0.4},
		"confidence": 0.7,
		"label":      "crack",
	})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if box.Label != "crack" {
		t.Fatalf("label = %q", box.Label)
	}
}

func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{200, 200, 200, 255}), image.Point{}, draw.Src)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode image: %v", err)
	}
}

func mustContain(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not contain %q", err, want)
	}
}

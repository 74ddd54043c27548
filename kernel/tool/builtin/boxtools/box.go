// Package boxtools provides the built-in bounding-box tools: object
// detection through a vision model and box rendering onto local images.
package boxtools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Box is one detected region in normalized xyxy image coordinates.
type Box struct {
	Confidence float64   `json:"confidence"`
	XYXY       []float64 `json:"xyxy"`
	Label      string    `json:"label,omitempty"`
}

// Validate checks confidence and coordinate ranges. Error texts flow back
// to the model as tool results and are part of the tool contract.
func (b Box) Validate() error {
	if b.Confidence < 0.0 || b.Confidence > 1.0 {
		return errors.New("Confidence must be between 0.0 and 1.0")
	}
	if len(b.XYXY) != 4 {
		return errors.New("xyxy must contain exactly 4 coordinates")
	}
	for _, coord := range b.XYXY {
		if coord < 0.0 || coord > 1.0 {
			return errors.New("Normalized coordinates must be between 0.0 and 1.0")
		}
	}
	return nil
}

// boxFromMap builds a Box from a decoded JSON object. Missing confidence
// defaults to full confidence.
func boxFromMap(raw map[string]any) (Box, bool, error) {
	coordsRaw, ok := raw["xyxy"]
	if !ok {
		return Box{}, false, nil
	}
	coordList, ok := coordsRaw.([]any)
	if !ok {
		return Box{}, false, errors.New("xyxy must contain exactly 4 coordinates")
	}
	box := Box{Confidence: 1.0, XYXY: make([]float64, 0, len(coordList))}
	for _, one := range coordList {
		coord, ok := numeric(one)
		if !ok {
			return Box{}, false, fmt.Errorf("xyxy coordinate %v is not a number", one)
		}
		box.XYXY = append(box.XYXY, coord)
	}
	if confRaw, ok := raw["confidence"]; ok && confRaw != nil {
		conf, ok := numeric(confRaw)
		if !ok {
			return Box{}, false, fmt.Errorf("confidence %v is not a number", confRaw)
		}
		box.Confidence = conf
	}
	if label, ok := raw["label"].(string); ok {
		box.Label = label
	}
	if err := box.Validate(); err != nil {
		return Box{}, false, err
	}
	return box, true, nil
}

func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		// Models sometimes quote numbers.
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// resultMap renders a typed output value into the dispatcher's map shape.
func resultMap(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

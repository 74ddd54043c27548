package decision

import (
	"encoding/json"
	"strings"
)

// Kind discriminates decision variants.
type Kind string

const (
	// KindFinal is a terminal answer for the user.
	KindFinal Kind = "final"
	// KindToolUse requests one or more tool invocations.
	KindToolUse Kind = "tool_use"
)

// Invocation is one requested tool call. Never mutated after parsing.
type Invocation struct {
	Name   string
	Params map[string]any
}

// Decision is the parsed interpretation of one provider turn: either a
// final answer or an ordered batch of tool invocations.
type Decision struct {
	Kind        Kind
	Text        string
	Invocations []Invocation
}

// Parse extracts a Decision from raw provider text. It never fails: input
// that does not decode at any recovery stage degrades to a final decision
// carrying the raw text verbatim.
//
// Recovery stages, each attempted only when the prior one fails:
//  1. decode the whole text as one wire object
//  2. decode the contents of markdown-fenced code blocks
//  3. decode the first balanced {...} substring
//  4. return Final(raw)
func Parse(raw string) Decision {
	if d, ok := decodeWire(raw); ok {
		return d
	}
	for _, block := range fencedBlocks(raw) {
		if d, ok := decodeWire(block); ok {
			return d
		}
	}
	if candidate, ok := firstBalancedObject(raw); ok {
		if d, ok := decodeWire(candidate); ok {
			return d
		}
	}
	return Decision{Kind: KindFinal, Text: raw}
}

// decodeWire decodes one candidate against the two recognized wire shapes:
// {"type":"text","text":<string>} and
// {"type":"tool_use","tool_uses":[{"name":<string>,"params":{...}},...]}.
func decodeWire(candidate string) (Decision, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return Decision{}, false
	}
	var kind string
	if err := json.Unmarshal(payload["type"], &kind); err != nil {
		return Decision{}, false
	}
	switch kind {
	case "text":
		var text string
		if err := json.Unmarshal(payload["text"], &text); err != nil {
			return Decision{}, false
		}
		return Decision{Kind: KindFinal, Text: text}, true
	case "tool_use":
		var uses []struct {
			Name   string         `json:"name"`
			Params map[string]any `json:"params"`
		}
		if err := json.Unmarshal(payload["tool_uses"], &uses); err != nil {
			return Decision{}, false
		}
		if len(uses) == 0 {
			return Decision{}, false
		}
		invocations := make([]Invocation, 0, len(uses))
		for _, use := range uses {
			name := strings.TrimSpace(use.Name)
			if name == "" {
				return Decision{}, false
			}
			params := use.Params
			if params == nil {
				params = map[string]any{}
			}
			invocations = append(invocations, Invocation{Name: name, Params: params})
		}
		return Decision{Kind: KindToolUse, Invocations: invocations}, true
	default:
		return Decision{}, false
	}
}

// fencedBlocks returns the contents of markdown code fences in order. An
// optional json language tag on the opening fence is stripped, matching the
// wrapping style models most often emit.
func fencedBlocks(raw string) []string {
	var blocks []string
	rest := raw
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			return blocks
		}
		rest = rest[start+3:]
		end := strings.Index(rest, "```")
		if end < 0 {
			return blocks
		}
		block := strings.TrimSpace(rest[:end])
		rest = rest[end+3:]
		block = strings.TrimSpace(strings.TrimPrefix(block, "json"))
		if block != "" {
			blocks = append(blocks, block)
		}
	}
}

// firstBalancedObject locates the first {...} substring with balanced
// braces, skipping braces inside JSON string literals.
func firstBalancedObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

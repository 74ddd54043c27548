package model

import (
	"context"
	"strings"
)

// Role identifies message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolDefinition describes a callable tool for prompt construction.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolResponse records one executed tool invocation and its outcome.
type ToolResponse struct {
	Name    string         `json:"name"`
	Params  map[string]any `json:"params,omitempty"`
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Message is a single turn element in conversation history. History is
// append-only; a Message is never mutated after it is appended.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text,omitempty"`

	// ImagePath optionally references a local image attached to the message.
	// Vision-capable providers inline the file content.
	ImagePath string `json:"image_path,omitempty"`

	// ToolResponse is set on tool-result messages. Text carries the
	// provider-facing rendering of the same result.
	ToolResponse *ToolResponse `json:"tool_response,omitempty"`
}

// Request is a provider-agnostic generation request. Providers receive the
// full ordered history on every call; no provider-side state is assumed.
type Request struct {
	System    string
	ToolGuide string
	Messages  []Message
}

// SystemText joins the system prompt and tool guide for vendor system slots.
func (r *Request) SystemText() string {
	if r == nil {
		return ""
	}
	system := strings.TrimSpace(r.System)
	guide := strings.TrimSpace(r.ToolGuide)
	switch {
	case system == "":
		return guide
	case guide == "":
		return system
	default:
		return system + "\n\n" + guide
	}
}

// Usage reports model token usage (best-effort).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a complete provider reply. Text is raw model output; any
// structure in it is recovered downstream by the decision parser.
type Response struct {
	Text     string
	Usage    Usage
	Model    string
	Provider string
}

// LLM is the provider boundary used by the kernel: history in, raw text out.
// Implementations must not retry failed transports; a transport fault
// surfaces to the caller as the call's error.
type LLM interface {
	Name() string
	Generate(context.Context, *Request) (*Response, error)
}

// ContextWindower optionally reports a provider's context window size.
type ContextWindower interface {
	ContextWindowTokens() int
}

package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

// Guide renders the decision-protocol instructions for a tool set. The text
// is generated from the same declarations the dispatcher resolves against.
func Guide(defs []model.ToolDefinition) string {
	var b strings.Builder
	b.WriteString("## Response protocol\n\n")
	b.WriteString("Every reply must be exactly one JSON object in one of these two shapes.\n\n")
	b.WriteString("Request tool execution:\n")
	b.WriteString(`{"type": "tool_use", "tool_uses": [{"name": "<tool_name>", "params": {<arguments>}}]}` + "\n\n")
	b.WriteString("Deliver the final answer:\n")
	b.WriteString(`{"type": "text", "text": "<answer>"}` + "\n\n")
	b.WriteString("List several entries in tool_uses to run several tools. They execute in the\n")
	b.WriteString("order given and each result comes back as its own message. Use the final\n")
	b.WriteString("answer shape only when no more tool work is needed. Do not add text outside\n")
	b.WriteString("the JSON object.\n")

	if len(defs) == 0 {
		b.WriteString("\nNo tools are currently available. Always reply with the final answer shape.\n")
		return b.String()
	}

	b.WriteString("\n## Available tools\n")
	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", name)
		if desc := strings.TrimSpace(def.Description); desc != "" {
			b.WriteString(desc)
			b.WriteString("\n")
		}
		if len(def.Parameters) == 0 {
			b.WriteString("Parameters: none\n")
			continue
		}
		raw, err := json.MarshalIndent(def.Parameters, "", "  ")
		if err != nil {
			continue
		}
		b.WriteString("Parameters schema:\n")
		b.Write(raw)
		b.WriteString("\n")
	}
	return b.String()
}

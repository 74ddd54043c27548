package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	runewidth "github.com/mattn/go-runewidth"

	"github.com/andrewrchen05/bounding-box-agent/kernel/decision"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/runtime"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool/builtin/boxtools"
)

var (
	colorAnswer   = color.New(color.FgGreen, color.Bold)
	colorToolCall = color.New(color.FgCyan)
	colorToolOK   = color.New(color.FgGreen)
	colorToolErr  = color.New(color.FgRed)
	colorNotice   = color.New(color.FgYellow)
)

const answerWrapWidth = 100

type runRenderConfig struct {
	Markdown bool
	Writer   io.Writer
	// OnAnswer receives each final answer's raw text, markdown unrendered.
	OnAnswer func(string)
}

func runOnce(ctx context.Context, rt *runtime.Runtime, req runtime.RunRequest, renderCfg runRenderConfig) error {
	out := renderCfg.Writer
	if out == nil {
		out = os.Stdout
	}
	render := &renderState{
		markdown: renderCfg.Markdown,
		out:      out,
		onAnswer: renderCfg.OnAnswer,
	}
	for ev, err := range rt.Run(ctx, req) {
		if err != nil {
			return err
		}
		if ev == nil {
			continue
		}
		printEvent(ev, render)
	}
	return nil
}

type renderState struct {
	markdown bool
	out      io.Writer
	md       *glamour.TermRenderer
	onAnswer func(string)
}

// renderMarkdown formats a final answer for the terminal. An empty return
// means the caller should fall back to plain text.
func (s *renderState) renderMarkdown(text string) string {
	if !s.markdown {
		return ""
	}
	if s.md == nil {
		style := "dark"
		if color.NoColor {
			style = "notty"
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(answerWrapWidth),
		)
		if err != nil {
			s.markdown = false
			return ""
		}
		s.md = renderer
	}
	rendered, err := s.md.Render(text)
	if err != nil {
		return ""
	}
	rendered = strings.TrimRight(rendered, "\n")
	if strings.TrimSpace(rendered) == "" {
		return ""
	}
	return rendered
}

func printEvent(ev *session.Event, state *renderState) {
	if ev == nil || state == nil {
		return
	}
	// Lifecycle markers are bookkeeping. Run failures surface through the
	// iterator's error, so rendering them here would print twice.
	if _, ok := runtime.LifecycleFromEvent(ev); ok {
		return
	}

	msg := ev.Message
	switch {
	case msg.Role == model.RoleUser:
		// The console already echoed the prompt line.
		return
	case msg.ToolResponse != nil:
		printToolResponse(state.out, msg.ToolResponse)
		return
	case msg.Role == model.RoleAssistant:
		printAssistant(ev, state)
		return
	case msg.Role == model.RoleSystem:
		if text := strings.TrimSpace(msg.Text); text != "" {
			fmt.Fprintf(state.out, "%s %s\n", colorNotice.Sprint("!"), text)
		}
		return
	default:
		if text := strings.TrimSpace(msg.Text); text != "" {
			fmt.Fprintf(state.out, "- %s\n", text)
		}
	}
}

func printAssistant(ev *session.Event, state *renderState) {
	text := strings.TrimSpace(ev.Message.Text)
	if text == "" {
		return
	}
	switch eventOutcome(ev) {
	case session.OutcomeTruncated:
		fmt.Fprintf(state.out, "%s %s\n", colorNotice.Sprint("!"), text)
		return
	case session.OutcomeAnswered:
		printAnswer(text, state)
		return
	}

	// Mid-run assistant turns carry the raw decision; show the requested
	// invocations instead of the wire text.
	parsed := decision.Parse(text)
	if parsed.Kind == decision.KindToolUse {
		for i, call := range parsed.Invocations {
			sigil := colorToolCall.Sprintf("#%d", i+1)
			fmt.Fprintf(state.out, "%s %s %s\n", sigil, call.Name, summarizeToolArgs(call.Name, call.Params))
		}
		return
	}
	printAnswer(strings.TrimSpace(parsed.Text), state)
}

func printAnswer(text string, state *renderState) {
	if text == "" {
		return
	}
	if state.onAnswer != nil {
		state.onAnswer(text)
	}
	if rendered := state.renderMarkdown(text); rendered != "" {
		fmt.Fprintln(state.out, rendered)
		return
	}
	fmt.Fprintf(state.out, "%s %s\n", colorAnswer.Sprint("*"), text)
}

func printToolResponse(out io.Writer, resp *model.ToolResponse) {
	if resp == nil {
		return
	}
	sigil := colorToolOK.Sprint("=")
	summary := summarizeToolResponse(resp)
	if !resp.Success {
		sigil = colorToolErr.Sprint("=")
		summary = colorToolErr.Sprint(summary)
	}
	fmt.Fprintf(out, "%s %s %s\n", sigil, resp.Name, summary)
}

func summarizeToolArgs(toolName string, args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	switch toolName {
	case boxtools.DetectToolName:
		image := strings.TrimSpace(asString(args["image_path"]))
		label := strings.TrimSpace(asString(args["label"]))
		if image != "" {
			return fmt.Sprintf("{image=%s, label=%s}", displayFileName(image), truncateInline(label, 60))
		}
	case boxtools.DrawToolName:
		image := strings.TrimSpace(asString(args["image_path"]))
		output := strings.TrimSpace(asString(args["output_path"]))
		if image != "" {
			summary := fmt.Sprintf("{image=%s, boxes=%d", displayFileName(image), countBoxesArg(args["boxes"]))
			if output != "" {
				summary += ", output=" + displayFileName(output)
			}
			return summary + "}"
		}
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := fmt.Sprint(args[key])
		parts = append(parts, fmt.Sprintf("%s=%s", key, truncateInline(value, 72)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func summarizeToolResponse(resp *model.ToolResponse) string {
	if resp == nil {
		return "{}"
	}
	if !resp.Success {
		errText := strings.TrimSpace(resp.Error)
		if errText == "" {
			errText = "tool execution failed"
		}
		return "failed: " + truncateInline(errText, 160)
	}
	result := resp.Result
	switch resp.Name {
	case boxtools.DetectToolName:
		boxes, _ := result["boxes"].([]any)
		width, _ := asInt(result["width"])
		height, _ := asInt(result["height"])
		label := strings.TrimSpace(asString(resp.Params["label"]))
		if len(boxes) == 0 {
			return fmt.Sprintf("no %q found in %dx%d image", label, width, height)
		}
		noun := "boxes"
		if len(boxes) == 1 {
			noun = "box"
		}
		summary := fmt.Sprintf("found %d %s for %q in %dx%d image", len(boxes), noun, label, width, height)
		if preview := boxPreview(boxes); preview != "" {
			summary += "\n" + indentMultiline(preview, "  ")
		}
		return summary
	case boxtools.DrawToolName:
		output := strings.TrimSpace(asString(result["output_path"]))
		drawn, _ := asInt(result["boxes_drawn"])
		if output != "" {
			noun := "boxes"
			if drawn == 1 {
				noun = "box"
			}
			return fmt.Sprintf("drew %d %s -> %s", drawn, noun, output)
		}
	}
	if len(result) == 0 {
		return "{}"
	}
	if value := firstNonEmpty(result, "error", "stderr", "message"); value != "" {
		return truncateInline(value, 160)
	}
	if value := firstNonEmpty(result, "summary", "output", "content", "result"); value != "" {
		return truncateInline(value, 160)
	}
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("{keys=%s}", strings.Join(keys, ","))
}

const boxPreviewMaxLines = 4

// boxPreview renders the first few detected boxes, one per line, in the
// normalized coordinate form the detect tool reports.
func boxPreview(boxes []any) string {
	if len(boxes) == 0 {
		return ""
	}
	shown := boxes
	truncated := false
	if len(shown) > boxPreviewMaxLines {
		shown = shown[:boxPreviewMaxLines]
		truncated = true
	}
	lines := make([]string, 0, len(shown)+1)
	for _, raw := range shown {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		lines = append(lines, formatBoxLine(entry))
	}
	if len(lines) == 0 {
		return ""
	}
	if truncated {
		lines = append(lines, fmt.Sprintf("... (%d more)", len(boxes)-boxPreviewMaxLines))
	}
	return strings.Join(lines, "\n")
}

func formatBoxLine(entry map[string]any) string {
	confidence, _ := asFloat(entry["confidence"])
	coords, _ := entry["xyxy"].([]any)
	parts := make([]string, 0, len(coords))
	for _, c := range coords {
		v, _ := asFloat(c)
		parts = append(parts, fmt.Sprintf("%.2f", v))
	}
	line := fmt.Sprintf("[%.2f] (%s)", confidence, strings.Join(parts, ", "))
	if label := strings.TrimSpace(asString(entry["label"])); label != "" {
		line += " " + label
	}
	return line
}

// countBoxesArg counts boxes in the draw tool's boxes argument, which may be
// a bare list or a full detect result object.
func countBoxesArg(raw any) int {
	switch v := raw.(type) {
	case []any:
		return len(v)
	case map[string]any:
		if inner, ok := v["boxes"].([]any); ok {
			return len(inner)
		}
	}
	return 0
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprint(v)
}

func asInt(v any) (int, bool) {
	switch value := v.(type) {
	case int:
		return value, true
	case int8:
		return int(value), true
	case int16:
		return int(value), true
	case int32:
		return int(value), true
	case int64:
		return int(value), true
	case float32:
		return int(value), true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	default:
		return 0, false
	}
}

func firstNonEmpty(values map[string]any, keys ...string) string {
	for _, key := range keys {
		raw, ok := values[key]
		if !ok {
			continue
		}
		text := strings.TrimSpace(fmt.Sprint(raw))
		if text != "" && text != "<nil>" {
			return text
		}
	}
	return ""
}

// truncateInline collapses whitespace and truncates by display width, so
// wide runes never push a summary line past the limit.
func truncateInline(input string, limit int) string {
	text := strings.Join(strings.Fields(strings.TrimSpace(input)), " ")
	if limit <= 0 || runewidth.StringWidth(text) <= limit {
		return text
	}
	if limit <= 3 {
		return runewidth.Truncate(text, limit, "")
	}
	return runewidth.Truncate(text, limit, "...")
}

func displayFileName(path string) string {
	text := strings.TrimSpace(path)
	if text == "" {
		return path
	}
	base := filepath.Base(text)
	if strings.TrimSpace(base) == "" || base == "." || base == string(filepath.Separator) {
		return text
	}
	return base
}

func indentMultiline(input, indent string) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(input, "\n")
	for i := range lines {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}

func eventOutcome(ev *session.Event) string {
	if ev == nil || ev.Meta == nil {
		return ""
	}
	value, _ := ev.Meta[session.MetaOutcome].(string)
	return value
}

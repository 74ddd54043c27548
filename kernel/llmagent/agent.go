package llmagent

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/agent"
	"github.com/andrewrchen05/bounding-box-agent/kernel/decision"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/policy"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool"
	"github.com/andrewrchen05/bounding-box-agent/kernel/toolcap"
)

// DefaultMaxIterations bounds tool-use rounds per run when Config leaves
// MaxIterations unset.
const DefaultMaxIterations = 3

const truncationNotice = "Maximum tool execution iterations reached."

// Config controls behavior of Agent.
type Config struct {
	Name         string
	SystemPrompt string
	// MaxIterations caps model calls per run. Zero selects
	// DefaultMaxIterations.
	MaxIterations  int
	ToolTruncation tool.TruncationPolicy
}

// Agent drives the decide-and-dispatch loop: ask the model for a decision,
// execute any requested tools strictly in order, feed each result back, and
// repeat until a final answer or the iteration cap.
type Agent struct {
	cfg Config
}

func New(cfg Config) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("llmagent: name is required")
	}
	if cfg.MaxIterations < 0 {
		return nil, fmt.Errorf("llmagent: max_iterations must not be negative")
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ToolTruncation.MaxTokens <= 0 && cfg.ToolTruncation.MaxBytes <= 0 {
		cfg.ToolTruncation = tool.DefaultTruncationPolicy()
	}
	return &Agent{cfg: cfg}, nil
}

func (a *Agent) Name() string {
	return a.cfg.Name
}

func (a *Agent) Run(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		if ctx == nil {
			yield(nil, fmt.Errorf("llmagent: invocation context is nil"))
			return
		}
		if ctx.Model() == nil {
			yield(nil, fmt.Errorf("llmagent: model is nil"))
			return
		}
		messages := toMessages(ctx.History())
		if len(messages) == 0 {
			yield(nil, fmt.Errorf("llmagent: conversation history is empty"))
			return
		}
		hooks := ctx.Policies()

		for iteration := 0; ; iteration++ {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			default:
			}
			if iteration >= a.cfg.MaxIterations {
				ev := newEvent(model.Message{Role: model.RoleAssistant, Text: truncationNotice})
				ev.Meta = map[string]any{session.MetaOutcome: session.OutcomeTruncated}
				yield(ev, nil)
				return
			}

			in, err := policy.ApplyBeforeModel(ctx, hooks, policy.ModelInput{
				Messages: messages,
				Tools:    tool.Declarations(ctx.Tools()),
			})
			if err != nil {
				yield(nil, err)
				return
			}
			req := &model.Request{
				System:    a.cfg.SystemPrompt,
				ToolGuide: tool.Guide(in.Tools),
				Messages:  in.Messages,
			}
			// A transport fault ends the run. There are no provider retries.
			resp, err := ctx.Model().Generate(ctx, req)
			if err != nil {
				yield(nil, fmt.Errorf("llmagent: model request failed: %w", err))
				return
			}
			if resp == nil {
				yield(nil, fmt.Errorf("llmagent: empty model response"))
				return
			}

			parsed := decision.Parse(resp.Text)
			if parsed.Kind == decision.KindFinal {
				out, err := policy.ApplyBeforeOutput(ctx, hooks, policy.Output{
					Message: model.Message{Role: model.RoleAssistant, Text: parsed.Text},
				})
				if err != nil {
					yield(nil, err)
					return
				}
				finalMsg := out.Message
				if finalMsg.Role == "" {
					finalMsg.Role = model.RoleAssistant
				}
				ev := newEvent(finalMsg)
				ev.Meta = responseMeta(resp)
				if ev.Meta == nil {
					ev.Meta = map[string]any{}
				}
				ev.Meta[session.MetaOutcome] = session.OutcomeAnswered
				yield(ev, nil)
				return
			}

			// The decision text joins history verbatim, ahead of its results.
			decisionMsg := model.Message{Role: model.RoleAssistant, Text: resp.Text}
			decisionEvent := newEvent(decisionMsg)
			decisionEvent.Meta = responseMeta(resp)
			if !yield(decisionEvent, nil) {
				return
			}
			messages = append(messages, decisionMsg)

			for _, call := range parsed.Invocations {
				toolMsg, err := a.dispatch(ctx, hooks, call)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(newEvent(toolMsg), nil) {
					return
				}
				messages = append(messages, toolMsg)
			}
		}
	}
}

// dispatch runs one invocation through the policy chain. A failed invocation
// yields a failure message and never halts the batch; only a policy chain
// fault aborts the run.
func (a *Agent) dispatch(ctx agent.InvocationContext, hooks []policy.Hook, call decision.Invocation) (model.Message, error) {
	capability := toolcap.Capability{Risk: toolcap.RiskUnknown}
	if forCap, exists := ctx.Tool(call.Name); exists {
		capability = toolcap.Of(forCap)
	}
	beforeIn, err := policy.ApplyBeforeTool(ctx, hooks, policy.ToolInput{
		Call:       call,
		Capability: capability,
		Decision:   policy.DefaultAllow(),
	})
	if err != nil {
		return model.Message{}, err
	}
	call = beforeIn.Call
	verdict := policy.NormalizeDecision(beforeIn.Decision)

	execOut := policy.ToolOutput{
		Call:       call,
		Capability: beforeIn.Capability,
		Decision:   verdict,
	}
	t, ok := ctx.Tool(call.Name)
	switch {
	case !ok:
		execOut.Err = fmt.Errorf("llmagent: tool %q not found in registry", call.Name)
	// Runs are headless, so require_approval has no prompt to fall back on
	// and refuses like deny.
	case verdict.Effect != policy.DecisionEffectAllow:
		reason := verdict.Reason
		if reason == "" {
			reason = string(verdict.Effect)
		}
		execOut.Err = fmt.Errorf("llmagent: tool %q denied by policy: %s", call.Name, reason)
	default:
		execOut.Capability = toolcap.Of(t)
		execOut.Result, execOut.Err = t.Run(policy.WithToolDecision(ctx, verdict), call.Params)
	}

	afterOut, err := policy.ApplyAfterTool(ctx, hooks, execOut)
	if err != nil {
		return model.Message{}, err
	}
	return a.toolMessage(afterOut), nil
}

func (a *Agent) toolMessage(out policy.ToolOutput) model.Message {
	resp := &model.ToolResponse{
		Name:    out.Call.Name,
		Params:  out.Call.Params,
		Success: out.Err == nil,
		Result:  out.Result,
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	return model.Message{
		Role:         model.RoleTool,
		Text:         renderToolResultText(resp, a.cfg.ToolTruncation),
		ToolResponse: resp,
	}
}

// renderToolResultText builds the provider-facing feedback line for one
// executed invocation. Only the JSON body is subject to truncation.
func renderToolResultText(resp *model.ToolResponse, limits tool.TruncationPolicy) string {
	payload := map[string]any{"success": resp.Success}
	if resp.Success {
		payload["result"] = resp.Result
	} else {
		payload["error"] = resp.Error
	}
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(fmt.Sprintf(`{"error":%q,"success":false}`, "encode tool result: "+err.Error()))
	}
	rendered, _ := tool.TruncateString(string(body), limits)
	return fmt.Sprintf("Tool execution result for %s: %s", resp.Name, rendered)
}

func toMessages(events []*session.Event) []model.Message {
	out := make([]model.Message, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		out = append(out, ev.Message)
	}
	return out
}

func newEvent(msg model.Message) *session.Event {
	return &session.Event{ID: newEventID(), Time: time.Now(), Message: msg}
}

func newEventID() string {
	return fmt.Sprintf("ev_%d", time.Now().UnixNano())
}

func responseMeta(resp *model.Response) map[string]any {
	if resp == nil {
		return nil
	}
	meta := map[string]any{}
	if value := strings.TrimSpace(resp.Provider); value != "" {
		meta["provider"] = value
	}
	if value := strings.TrimSpace(resp.Model); value != "" {
		meta["model"] = value
	}
	usage := map[string]any{}
	if resp.Usage.PromptTokens > 0 {
		usage["prompt_tokens"] = resp.Usage.PromptTokens
	}
	if resp.Usage.CompletionTokens > 0 {
		usage["completion_tokens"] = resp.Usage.CompletionTokens
	}
	if resp.Usage.TotalTokens > 0 {
		usage["total_tokens"] = resp.Usage.TotalTokens
	}
	if len(usage) > 0 {
		meta["usage"] = usage
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

package llmagent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/policy"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool"
)

type testCtx struct {
	context.Context
	session  *session.Session
	history  []*session.Event
	llm      model.LLM
	tools    []tool.Tool
	toolMap  map[string]tool.Tool
	policies []policy.Hook
}

func (c *testCtx) Session() *session.Session { return c.session }
func (c *testCtx) History() []*session.Event { return c.history }
func (c *testCtx) Model() model.LLM          { return c.llm }
func (c *testCtx) Tools() []tool.Tool        { return c.tools }
func (c *testCtx) Tool(name string) (tool.Tool, bool) {
	t, ok := c.toolMap[name]
	return t, ok
}
func (c *testCtx) Policies() []policy.Hook { return c.policies }

func newTestCtx(llm model.LLM, tools ...tool.Tool) *testCtx {
	toolMap := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		toolMap[t.Name()] = t
	}
	return &testCtx{
		Context: context.Background(),
		session: &session.Session{AppName: "boxagent", UserID: "u", ID: "s"},
		history: []*session.Event{{Message: model.Message{Role: model.RoleUser, Text: "find the button"}}},
		llm:     llm,
		tools:   tools,
		toolMap: toolMap,
	}
}

func collectEvents(t *testing.T, ag *Agent, ctx *testCtx) []*session.Event {
	t.Helper()
	var events []*session.Event
	for ev, err := range ag.Run(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		events = append(events, ev)
	}
	return events
}

type namedTool struct {
	name string
	run  func(context.Context, map[string]any) (map[string]any, error)
}

func (t namedTool) Name() string        { return t.name }
func (t namedTool) Description() string { return t.name }
func (t namedTool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{Name: t.name, Description: t.name, Parameters: map[string]any{"type": "object"}}
}
func (t namedTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	if t.run == nil {
		return map[string]any{}, nil
	}
	return t.run(ctx, args)
}

type echoArgs struct {
	Text string `json:"text"`
}

type echoResp struct {
	Echo string `json:"echo"`
}

func newEchoTool(t *testing.T) tool.Tool {
	t.Helper()
	echoTool, err := tool.NewFunction[echoArgs, echoResp]("echo", "echo a string", func(ctx context.Context, args echoArgs) (echoResp, error) {
		_ = ctx
		return echoResp{Echo: args.Text}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return echoTool
}

func TestAgent_ToolLoop(t *testing.T) {
	var secondReq *model.Request
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		switch req.Messages[len(req.Messages)-1].Role {
		case model.RoleUser:
			return &model.Response{Text: `{"type": "tool_use", "tool_uses": [{"name": "echo", "params": {"text": "hello"}}]}`}, nil
		case model.RoleTool:
			secondReq = req
			return &model.Response{Text: "done"}, nil
		default:
			return &model.Response{Text: "fallback"}, nil
		}
	})

	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, ag, newTestCtx(llm, newEchoTool(t)))
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Message.Role != model.RoleAssistant || !strings.Contains(events[0].Message.Text, `"tool_use"`) {
		t.Fatalf("expected raw decision event first, got %#v", events[0].Message)
	}
	toolResp := events[1].Message.ToolResponse
	if toolResp == nil || !toolResp.Success || toolResp.Name != "echo" {
		t.Fatalf("unexpected tool response: %#v", toolResp)
	}
	if toolResp.Result["echo"] != "hello" {
		t.Fatalf("unexpected tool result: %#v", toolResp.Result)
	}
	if !strings.HasPrefix(events[1].Message.Text, "Tool execution result for echo: ") {
		t.Fatalf("unexpected tool feedback text: %q", events[1].Message.Text)
	}
	if !strings.Contains(events[1].Message.Text, `"success":true`) {
		t.Fatalf("expected success flag in feedback: %q", events[1].Message.Text)
	}
	if events[2].Message.Text != "done" {
		t.Fatalf("unexpected final text: %q", events[2].Message.Text)
	}
	if events[2].Meta[session.MetaOutcome] != session.OutcomeAnswered {
		t.Fatalf("expected answered outcome, got %#v", events[2].Meta)
	}

	if secondReq == nil {
		t.Fatal("expected a second model request")
	}
	if got := secondReq.Messages[len(secondReq.Messages)-2]; got.Role != model.RoleAssistant {
		t.Fatalf("expected decision message ahead of tool result, got role %q", got.Role)
	}
	if !strings.Contains(secondReq.ToolGuide, "### echo") {
		t.Fatalf("expected echo in tool guide, got %q", secondReq.ToolGuide)
	}
}

func TestAgent_BatchContinuesPastFailure(t *testing.T) {
	good := namedTool{name: "first", run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"n": 1}, nil
	}}
	bad := namedTool{name: "second", run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, errors.New("boom")
	}}
	tail := namedTool{name: "third", run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"n": 3}, nil
	}}

	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		if req.Messages[len(req.Messages)-1].Role == model.RoleUser {
			return &model.Response{Text: `{"type": "tool_use", "tool_uses": [
				{"name": "first", "params": {}},
				{"name": "second", "params": {}},
				{"name": "third", "params": {}}
			]}`}, nil
		}
		return &model.Response{Text: "done"}, nil
	})

	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, ag, newTestCtx(llm, good, bad, tail))
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, name := range []string{"first", "second", "third"} {
		resp := events[i+1].Message.ToolResponse
		if resp == nil || resp.Name != name {
			t.Fatalf("event %d: expected tool %q, got %#v", i+1, name, resp)
		}
	}
	if events[2].Message.ToolResponse.Success {
		t.Fatal("expected second invocation to fail")
	}
	if !strings.Contains(events[2].Message.Text, `"error":"boom"`) {
		t.Fatalf("unexpected failure feedback: %q", events[2].Message.Text)
	}
	if !events[1].Message.ToolResponse.Success || !events[3].Message.ToolResponse.Success {
		t.Fatal("expected surrounding invocations to succeed")
	}
	if events[4].Message.Text != "done" {
		t.Fatalf("unexpected final text: %q", events[4].Message.Text)
	}
}

func TestAgent_UnknownTool(t *testing.T) {
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		if req.Messages[len(req.Messages)-1].Role == model.RoleUser {
			return &model.Response{Text: `{"type": "tool_use", "tool_uses": [{"name": "measure_angle", "params": {}}]}`}, nil
		}
		return &model.Response{Text: "done"}, nil
	})
	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, ag, newTestCtx(llm))
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	resp := events[1].Message.ToolResponse
	if resp == nil || resp.Success {
		t.Fatalf("expected failed tool response, got %#v", resp)
	}
	if !strings.Contains(resp.Error, "not found") {
		t.Fatalf("expected not found error, got %q", resp.Error)
	}
	if events[2].Message.Text != "done" {
		t.Fatalf("unexpected final text: %q", events[2].Message.Text)
	}
}

func TestAgent_MaxIterationsTruncation(t *testing.T) {
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		return &model.Response{Text: `{"type": "tool_use", "tool_uses": [{"name": "echo", "params": {}}]}`}, nil
	})
	ag, err := New(Config{Name: "test", MaxIterations: 1})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, ag, newTestCtx(llm, namedTool{name: "echo"}))
	if llm.calls != 1 {
		t.Fatalf("expected exactly 1 model call, got %d", llm.calls)
	}
	last := events[len(events)-1]
	if last.Message.Text != "Maximum tool execution iterations reached." {
		t.Fatalf("unexpected truncation text: %q", last.Message.Text)
	}
	if last.Meta[session.MetaOutcome] != session.OutcomeTruncated {
		t.Fatalf("expected truncated outcome, got %#v", last.Meta)
	}
}

func TestAgent_DefaultMaxIterations(t *testing.T) {
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		return &model.Response{Text: `{"type": "tool_use", "tool_uses": [{"name": "echo", "params": {}}]}`}, nil
	})
	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, ag, newTestCtx(llm, namedTool{name: "echo"}))
	if llm.calls != DefaultMaxIterations {
		t.Fatalf("expected %d model calls, got %d", DefaultMaxIterations, llm.calls)
	}
	last := events[len(events)-1]
	if last.Meta[session.MetaOutcome] != session.OutcomeTruncated {
		t.Fatalf("expected truncated outcome, got %#v", last.Meta)
	}
}

func TestAgent_ModelFaultFailsRun(t *testing.T) {
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		return nil, errors.New("connection reset")
	})
	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	var gotErr error
	for _, runErr := range ag.Run(newTestCtx(llm)) {
		if runErr != nil {
			gotErr = runErr
			break
		}
	}
	if gotErr == nil || !strings.Contains(gotErr.Error(), "model request failed") {
		t.Fatalf("expected model failure, got %v", gotErr)
	}
	if llm.calls != 1 {
		t.Fatalf("expected no retries, got %d calls", llm.calls)
	}
}

func TestAgent_EmptyHistory(t *testing.T) {
	llm := newTestLLM("fake", nil)
	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := newTestCtx(llm)
	ctx.history = nil
	var gotErr error
	for _, runErr := range ag.Run(ctx) {
		if runErr != nil {
			gotErr = runErr
			break
		}
	}
	if gotErr == nil || !strings.Contains(gotErr.Error(), "history is empty") {
		t.Fatalf("expected history error, got %v", gotErr)
	}
	if llm.calls != 0 {
		t.Fatalf("expected no model calls, got %d", llm.calls)
	}
}

func TestAgent_RejectNegativeMaxIterations(t *testing.T) {
	_, err := New(Config{Name: "test", MaxIterations: -1})
	if err == nil || !strings.Contains(err.Error(), "max_iterations") {
		t.Fatalf("expected max_iterations validation error, got %v", err)
	}
}

func TestAgent_ProseFinalAnswer(t *testing.T) {
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		return &model.Response{Text: "The crack runs along the left edge."}, nil
	})
	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, ag, newTestCtx(llm))
	if len(events) != 1 {
		t.Fatalf("expected single final event, got %d", len(events))
	}
	if events[0].Message.Text != "The crack runs along the left edge." {
		t.Fatalf("unexpected final text: %q", events[0].Message.Text)
	}
	if llm.calls != 1 {
		t.Fatalf("expected single model call, got %d", llm.calls)
	}
}

func TestAgent_ToolResultTruncation(t *testing.T) {
	big := namedTool{name: "dump", run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"blob": strings.Repeat("x", 12000)}, nil
	}}
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		if req.Messages[len(req.Messages)-1].Role == model.RoleUser {
			return &model.Response{Text: `{"type": "tool_use", "tool_uses": [{"name": "dump", "params": {}}]}`}, nil
		}
		return &model.Response{Text: "done"}, nil
	})
	ag, err := New(Config{Name: "test", ToolTruncation: tool.TruncationPolicy{MaxTokens: 100}})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, ag, newTestCtx(llm, big))
	toolText := events[1].Message.Text
	if !strings.Contains(toolText, "tokens truncated") {
		t.Fatalf("expected truncation marker in feedback: %q", toolText)
	}
	if len(toolText) > 1000 {
		t.Fatalf("expected truncated feedback, got %d bytes", len(toolText))
	}
	blob, ok := events[1].Message.ToolResponse.Result["blob"].(string)
	if !ok || len(blob) != 12000 {
		t.Fatal("expected untruncated structured result")
	}
}

type denyHook struct {
	policy.NoopHook
}

func (denyHook) BeforeTool(ctx context.Context, in policy.ToolInput) (policy.ToolInput, error) {
	_ = ctx
	in.Decision = policy.Decision{Effect: policy.DecisionEffectDeny, Reason: "blocked for test"}
	return in, nil
}

func TestAgent_PolicyDeny(t *testing.T) {
	ran := false
	guarded := namedTool{name: "guarded", run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
		ran = true
		return map[string]any{}, nil
	}}
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		if req.Messages[len(req.Messages)-1].Role == model.RoleUser {
			return &model.Response{Text: `{"type": "tool_use", "tool_uses": [{"name": "guarded", "params": {}}]}`}, nil
		}
		return &model.Response{Text: "done"}, nil
	})
	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := newTestCtx(llm, guarded)
	ctx.policies = []policy.Hook{denyHook{}}
	events := collectEvents(t, ag, ctx)
	resp := events[1].Message.ToolResponse
	if resp == nil || resp.Success {
		t.Fatalf("expected denied tool response, got %#v", resp)
	}
	if !strings.Contains(resp.Error, "denied by policy") || !strings.Contains(resp.Error, "blocked for test") {
		t.Fatalf("unexpected deny error: %q", resp.Error)
	}
	if ran {
		t.Fatal("expected tool not to run")
	}
	if events[len(events)-1].Message.Text != "done" {
		t.Fatal("expected run to continue after deny")
	}
}

func TestAgent_PersistsModelUsageMeta(t *testing.T) {
	llm := newTestLLM("fake", func(req *model.Request) (*model.Response, error) {
		return &model.Response{
			Text:     "done",
			Model:    "demo-model",
			Provider: "demo-provider",
			Usage: model.Usage{
				PromptTokens:     11,
				CompletionTokens: 7,
				TotalTokens:      18,
			},
		}, nil
	})
	ag, err := New(Config{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, ag, newTestCtx(llm))
	last := events[len(events)-1]
	if last == nil || last.Meta == nil {
		t.Fatalf("expected event meta with usage")
	}
	if last.Meta["model"] != "demo-model" {
		t.Fatalf("unexpected model meta: %#v", last.Meta["model"])
	}
	if last.Meta["provider"] != "demo-provider" {
		t.Fatalf("unexpected provider meta: %#v", last.Meta["provider"])
	}
	usage, ok := last.Meta["usage"].(map[string]any)
	if !ok {
		t.Fatalf("expected usage map, got %#v", last.Meta["usage"])
	}
	if usage["total_tokens"] != 18 {
		t.Fatalf("unexpected total_tokens: %#v", usage["total_tokens"])
	}
	if last.Meta[session.MetaOutcome] != session.OutcomeAnswered {
		t.Fatalf("expected answered outcome, got %#v", last.Meta)
	}
}

package plugin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/andrewrchen05/bounding-box-agent/kernel/policy"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool"
)

type tp struct {
	stopped *int
	stopErr error
}

func (tp) Name() string { return "t1" }
func (tp) Tools(ctx context.Context) ([]tool.Tool, error) {
	_ = ctx
	return nil, nil
}
func (p tp) Stop(ctx context.Context) error {
	_ = ctx
	if p.stopped != nil {
		*p.stopped++
	}
	return p.stopErr
}

type pp struct{}

func (pp) Name() string { return "p1" }
func (pp) Policies(ctx context.Context) ([]policy.Hook, error) {
	_ = ctx
	return []policy.Hook{policy.NoopHook{HookName: "p1"}}, nil
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterToolProvider(tp{}); err != nil {
		t.Fatalf("register tool provider: %v", err)
	}
	if err := r.RegisterPolicyProvider(pp{}); err != nil {
		t.Fatalf("register policy provider: %v", err)
	}
	tools, err := r.ResolveTools(context.Background(), []string{"t1"})
	if err != nil {
		t.Fatalf("resolve tools: %v", err)
	}
	if len(tools) != 0 {
		t.Fatalf("expected no tools, got %d", len(tools))
	}
	hooks, err := r.ResolvePolicies(context.Background(), []string{"p1"})
	if err != nil {
		t.Fatalf("resolve policies: %v", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	if _, err := r.ResolveTools(context.Background(), []string{"missing"}); err == nil {
		t.Fatalf("expected unknown tool provider error")
	}
	if _, err := r.ResolvePolicies(context.Background(), []string{"missing"}); err == nil {
		t.Fatalf("expected unknown policy provider error")
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterToolProvider(tp{}); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := r.RegisterToolProvider(tp{}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterToolProvider(tp{}); err != nil {
		t.Fatalf("register tool provider: %v", err)
	}
	if err := r.RegisterPolicyProvider(pp{}); err != nil {
		t.Fatalf("register policy provider: %v", err)
	}
	if got := r.ListToolProviders(); len(got) != 1 || got[0] != "t1" {
		t.Fatalf("unexpected tool providers: %v", got)
	}
	if got := r.ListPolicyProviders(); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("unexpected policy providers: %v", got)
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	stopped := 0
	r := NewRegistry()
	if err := r.RegisterToolProvider(tp{stopped: &stopped}); err != nil {
		t.Fatalf("register tool provider: %v", err)
	}
	if err := r.RegisterPolicyProvider(pp{}); err != nil {
		t.Fatalf("register policy provider: %v", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if stopped != 1 {
		t.Fatalf("expected one stop call, got %d", stopped)
	}
}

func TestRegistry_ShutdownJoinsErrors(t *testing.T) {
	stopErr := errors.New("session close failed")
	r := NewRegistry()
	if err := r.RegisterToolProvider(tp{stopErr: stopErr}); err != nil {
		t.Fatalf("register tool provider: %v", err)
	}
	err := r.Shutdown(context.Background())
	if err == nil {
		t.Fatalf("expected shutdown error")
	}
	if !errors.Is(err, stopErr) {
		t.Fatalf("expected wrapped stop error, got %v", err)
	}
	if !strings.Contains(err.Error(), "tool/t1") {
		t.Fatalf("expected provider name in error, got %v", err)
	}
}

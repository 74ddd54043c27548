package policy

import (
	"context"
	"testing"
)

func TestNormalizeDecision_DefaultAllow(t *testing.T) {
	normalized := NormalizeDecision(Decision{})
	if normalized.Effect != DecisionEffectAllow {
		t.Fatalf("expected default effect allow, got %q", normalized.Effect)
	}
}

func TestNormalizeDecision_CaseAndSpacing(t *testing.T) {
	normalized := NormalizeDecision(Decision{Effect: " DENY ", Reason: "  outside roots  "})
	if normalized.Effect != DecisionEffectDeny {
		t.Fatalf("expected deny, got %q", normalized.Effect)
	}
	if normalized.Reason != "outside roots" {
		t.Fatalf("expected trimmed reason, got %q", normalized.Reason)
	}
}

func TestDefaultAllow(t *testing.T) {
	d := DefaultAllow()
	if d.Effect != DecisionEffectAllow {
		t.Fatalf("expected allow, got %q", d.Effect)
	}
}

func TestWithToolDecision_RoundTrip(t *testing.T) {
	ctx := WithToolDecision(context.Background(), Decision{
		Effect: DecisionEffectRequireApproval,
		Reason: "policy requires approval",
	})
	decision, ok := ToolDecisionFromContext(ctx)
	if !ok {
		t.Fatal("expected decision in context")
	}
	if decision.Effect != DecisionEffectRequireApproval {
		t.Fatalf("unexpected effect %q", decision.Effect)
	}
	if decision.Reason != "policy requires approval" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestToolDecisionFromContext_Absent(t *testing.T) {
	if _, ok := ToolDecisionFromContext(context.Background()); ok {
		t.Fatal("expected no decision in fresh context")
	}
}

package policy

import (
	"context"
	"strings"
)

// DecisionEffect describes policy decision outcome.
type DecisionEffect string

const (
	DecisionEffectAllow           DecisionEffect = "allow"
	DecisionEffectDeny            DecisionEffect = "deny"
	DecisionEffectRequireApproval DecisionEffect = "require_approval"
)

// Decision is the mutable policy decision payload propagated across hooks.
type Decision struct {
	Effect   DecisionEffect
	Reason   string
	Metadata map[string]any
}

type decisionContextKey struct{}

// DefaultAllow returns the initial decision applied before hooks run.
func DefaultAllow() Decision {
	return Decision{Effect: DecisionEffectAllow}
}

// NormalizeDecision normalizes one decision and defaults to allow.
func NormalizeDecision(d Decision) Decision {
	effect := DecisionEffect(strings.TrimSpace(strings.ToLower(string(d.Effect))))
	switch effect {
	case DecisionEffectAllow, DecisionEffectDeny, DecisionEffectRequireApproval:
		d.Effect = effect
	default:
		d.Effect = DecisionEffectAllow
	}
	d.Reason = strings.TrimSpace(d.Reason)
	return d
}

// WithToolDecision attaches one policy decision for downstream tool execution.
func WithToolDecision(ctx context.Context, d Decision) context.Context {
	if ctx == nil {
		return nil
	}
	return context.WithValue(ctx, decisionContextKey{}, NormalizeDecision(d))
}

// ToolDecisionFromContext returns one policy decision from tool context.
func ToolDecisionFromContext(ctx context.Context) (Decision, bool) {
	if ctx == nil {
		return Decision{}, false
	}
	d, ok := ctx.Value(decisionContextKey{}).(Decision)
	if !ok {
		return Decision{}, false
	}
	return NormalizeDecision(d), true
}

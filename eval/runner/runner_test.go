package runner

import (
	"strings"
	"testing"
	"time"
)

func TestResolveModelAliasesPrecedence(t *testing.T) {
	got := resolveModelAliases(Options{Models: "b-model, a-model", Model: "ignored"})
	if len(got) != 2 || got[0] != "a-model" || got[1] != "b-model" {
		t.Fatalf("expected sorted models list, got %v", got)
	}

	got = resolveModelAliases(Options{Model: " gemini-2.5-flash "})
	if len(got) != 1 || got[0] != "gemini-2.5-flash" {
		t.Fatalf("expected single trimmed model, got %v", got)
	}

	got = resolveModelAliases(Options{})
	if len(got) == 0 {
		t.Fatalf("expected default aliases")
	}
}

func TestSummaryMarkdownEscapesPipes(t *testing.T) {
	s := &Summary{
		Suite:      "light",
		StartedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		Passed:     1,
		Failed:     1,
		Results: []CaseResult{
			{Model: "gemini-2.5-flash", CaseName: "detect_red_square", Passed: true, EventCount: 5, ToolInvokes: 1, Latency: 1200},
			{Model: "gemini-2.5-flash", CaseName: "detect_then_draw", Error: "expected a | successful call", Latency: 900},
		},
	}
	md := s.markdown()
	if !strings.Contains(md, "# Eval Summary (light)") {
		t.Fatalf("missing header:\n%s", md)
	}
	if !strings.Contains(md, "| gemini-2.5-flash | detect_red_square | true | 5 | 1 | 1200 |") {
		t.Fatalf("missing passing row:\n%s", md)
	}
	if strings.Contains(md, "expected a | successful") {
		t.Fatalf("pipe not escaped in error cell:\n%s", md)
	}
	if !strings.Contains(md, "expected a / successful call") {
		t.Fatalf("missing escaped error:\n%s", md)
	}
}

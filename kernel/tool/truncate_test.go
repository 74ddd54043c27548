package tool

import (
	"strings"
	"testing"
)

func TestTruncateString_NoTruncation(t *testing.T) {
	out, removed := TruncateString("hello", TruncationPolicy{MaxTokens: 100})
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if out != "hello" {
		t.Fatalf("out = %q", out)
	}
}

func TestTruncateString_MiddleCut(t *testing.T) {
	long := strings.Repeat("abcdef", 3000)
	out, removed := TruncateString(long, TruncationPolicy{MaxTokens: 100})
	if removed == 0 {
		t.Fatal("expected truncation")
	}
	if !strings.Contains(out, "tokens truncated") {
		t.Fatalf("missing marker: %q", out)
	}
	if !strings.HasPrefix(out, "abcdef") || !strings.HasSuffix(out, "abcdef") {
		t.Fatalf("head/tail not preserved: %q", out)
	}
	if len(out) >= len(long) {
		t.Fatalf("output not smaller: %d >= %d", len(out), len(long))
	}
}

func TestTruncateString_RuneSafe(t *testing.T) {
	long := strings.Repeat("日本語テキスト", 2000)
	out, removed := TruncateString(long, TruncationPolicy{MaxBytes: 256})
	if removed == 0 {
		t.Fatal("expected truncation")
	}
	for _, r := range out {
		if r == '�' {
			t.Fatalf("cut split a rune: %q", out)
		}
	}
	if !strings.Contains(out, "chars truncated") {
		t.Fatalf("missing byte-policy marker: %q", out)
	}
}

func TestTruncateString_ZeroBudgetPassesThrough(t *testing.T) {
	out, removed := TruncateString("anything", TruncationPolicy{})
	if removed != 0 || out != "anything" {
		t.Fatalf("got %q removed=%d", out, removed)
	}
}

package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	modelproviders "github.com/andrewrchen05/bounding-box-agent/kernel/model/providers"
)

// scriptedEditor feeds canned console input to interactive command tests.
type scriptedEditor struct {
	lines   []string
	secrets []string
	out     bytes.Buffer
}

func (s *scriptedEditor) ReadLine(prompt string) (string, error) {
	if len(s.lines) == 0 {
		return "", errInputEOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return strings.TrimSpace(line), nil
}

func (s *scriptedEditor) ReadSecret(prompt string) (string, error) {
	if len(s.secrets) == 0 {
		return "", errInputEOF
	}
	secret := s.secrets[0]
	s.secrets = s.secrets[1:]
	return strings.TrimSpace(secret), nil
}

func (s *scriptedEditor) Output() io.Writer { return &s.out }

func (s *scriptedEditor) Close() error { return nil }

func TestPromptTextUsesDefaultOnEmptyInput(t *testing.T) {
	editor := &scriptedEditor{lines: []string{"", "https://custom.test/v1"}, secrets: []string{"tok-1"}}
	c := &cliConsole{editor: editor, out: io.Discard}

	got, err := c.promptText("base_url", "https://api.test/v1", false)
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://api.test/v1" {
		t.Fatalf("expected default on empty input, got %q", got)
	}
	got, err = c.promptText("base_url", "https://api.test/v1", false)
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://custom.test/v1" {
		t.Fatalf("unexpected input echo: %q", got)
	}
	got, err = c.promptText("api_key", "", true)
	if err != nil {
		t.Fatal(err)
	}
	if got != "tok-1" {
		t.Fatalf("expected secret read, got %q", got)
	}
}

func TestPromptIntInRange(t *testing.T) {
	editor := &scriptedEditor{lines: []string{"", "7", "abc"}}
	c := &cliConsole{editor: editor, out: io.Discard}

	got, err := promptIntInRange(c, "provider", 1, 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Fatalf("expected default 2, got %d", got)
	}
	if _, err := promptIntInRange(c, "provider", 1, 5, 2); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err := promptIntInRange(c, "provider", 1, 5, 2); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDescribeRemoteModel(t *testing.T) {
	got := describeRemoteModel("gemini", modelproviders.RemoteModel{
		Name:                "gemini-2.5-flash",
		ContextWindowTokens: 1048576,
		MaxOutputTokens:     8192,
	})
	if got != "gemini/gemini-2.5-flash (ctx=1048576, out=8192)" {
		t.Fatalf("unexpected description: %q", got)
	}
	got = describeRemoteModel("deepseek", modelproviders.RemoteModel{Name: "deepseek-chat"})
	if got != "deepseek/deepseek-chat" {
		t.Fatalf("unexpected bare description: %q", got)
	}
}

func TestProviderTemplatesCoverBuiltinAPIs(t *testing.T) {
	seen := map[modelproviders.APIType]bool{}
	for _, tpl := range providerTemplates {
		if strings.TrimSpace(tpl.label) == "" || strings.TrimSpace(tpl.provider) == "" {
			t.Fatalf("template with blank label or provider: %+v", tpl)
		}
		if tpl.defaultContextToken <= 0 {
			t.Fatalf("template %q missing context window default", tpl.label)
		}
		seen[tpl.api] = true
	}
	for _, api := range []modelproviders.APIType{
		modelproviders.APIGemini,
		modelproviders.APIAnthropic,
		modelproviders.APIOpenAI,
		modelproviders.APIOpenAICompatible,
		modelproviders.APIDeepSeek,
	} {
		if !seen[api] {
			t.Fatalf("no connect template for api %q", api)
		}
	}
}

package runner

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/eval/cases"
	evalproviders "github.com/andrewrchen05/bounding-box-agent/eval/providers"
	"github.com/andrewrchen05/bounding-box-agent/internal/envload"
	"github.com/andrewrchen05/bounding-box-agent/kernel/bootstrap"
	"github.com/andrewrchen05/bounding-box-agent/kernel/llmagent"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	pluginbuiltin "github.com/andrewrchen05/bounding-box-agent/kernel/plugin/builtin"
	"github.com/andrewrchen05/bounding-box-agent/kernel/runtime"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session/inmemory"
)

// Options controls eval runner behavior.
type Options struct {
	Suite  string
	Model  string
	Models string
}

type CaseResult struct {
	Model       string `json:"model"`
	Suite       string `json:"suite"`
	CaseName    string `json:"case_name"`
	Passed      bool   `json:"passed"`
	Error       string `json:"error,omitempty"`
	Latency     int64  `json:"latency_ms"`
	EventCount  int    `json:"event_count"`
	ToolInvokes int    `json:"tool_invokes"`
}

type Summary struct {
	Suite      string       `json:"suite"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []CaseResult `json:"results"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
}

// CLI parses eval flags and runs the suite. The boxagent eval mode and the
// standalone eval binary both enter here.
func CLI(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	var (
		suite      = fs.String("suite", "light", "Eval suite: light|nightly")
		modelAlias = fs.String("model", "", "Single model alias to run")
		models     = fs.String("models", "", "Comma-separated model aliases to run")
		listCases  = fs.Bool("list-cases", false, "List eval cases and exit")
		listModels = fs.Bool("list-models", false, "List supported model aliases and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("eval: unknown arguments: %v", fs.Args())
	}
	if _, err := envload.LoadNearest(); err != nil {
		return err
	}

	if *listModels {
		for _, m := range evalproviders.ListModels() {
			fmt.Println(m)
		}
		return nil
	}
	if *listCases {
		selected := cases.Light()
		if strings.EqualFold(*suite, "nightly") {
			selected = cases.Nightly()
		}
		for _, c := range selected {
			fmt.Printf("%s: %s\n", c.Name, c.Description)
		}
		return nil
	}

	summary, err := Run(ctx, Options{Suite: *suite, Model: *modelAlias, Models: *models})
	if summary != nil {
		fmt.Printf("suite=%s passed=%d failed=%d\n", summary.Suite, summary.Passed, summary.Failed)
	}
	return err
}

// Run drives the alias x case grid against live providers and writes JSON
// and markdown reports under .tmp/reports.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	suite := strings.ToLower(strings.TrimSpace(opts.Suite))
	if suite == "" {
		suite = "light"
	}
	selectedCases := cases.Light()
	if suite == "nightly" {
		selectedCases = cases.Nightly()
	}

	summary := &Summary{Suite: suite, StartedAt: time.Now()}
	for _, alias := range resolveModelAliases(opts) {
		llm, err := evalproviders.NewByAlias(alias)
		if err != nil {
			return nil, err
		}
		for _, c := range selectedCases {
			res := CaseResult{
				Model:    alias,
				Suite:    suite,
				CaseName: c.Name,
			}
			start := time.Now()
			events, toolCount, err := runOne(ctx, c, llm)
			res.Latency = time.Since(start).Milliseconds()
			res.EventCount = events
			res.ToolInvokes = toolCount
			if err != nil {
				res.Error = err.Error()
				summary.Failed++
			} else {
				res.Passed = true
				summary.Passed++
			}
			summary.Results = append(summary.Results, res)
		}
	}
	summary.FinishedAt = time.Now()
	if err := writeReport(summary); err != nil {
		return nil, err
	}
	if summary.Failed > 0 {
		return summary, fmt.Errorf("eval: %d cases failed", summary.Failed)
	}
	return summary, nil
}

func runOne(ctx context.Context, c cases.Case, llm model.LLM) (int, int, error) {
	workDir, err := os.MkdirTemp("", "boxagent-eval-*")
	if err != nil {
		return 0, 0, err
	}
	defer os.RemoveAll(workDir)
	prompt, err := c.Build(workDir)
	if err != nil {
		return 0, 0, fmt.Errorf("build case %s: %w", c.Name, err)
	}

	// The case model doubles as the vision model, the same fallback the
	// console applies without a dedicated -vision-model.
	resolved, err := bootstrap.Assemble(ctx, bootstrap.AssembleSpec{
		ToolProviders: []string{pluginbuiltin.ProviderBoxTools},
		Options: pluginbuiltin.RegisterOptions{
			VisionModel: llm,
		},
	})
	if err != nil {
		return 0, 0, err
	}
	defer resolved.Shutdown(context.Background())

	ag, err := llmagent.New(llmagent.Config{
		Name:          "eval-agent",
		SystemPrompt:  "You are a precise assistant for locating objects in images.",
		MaxIterations: 6,
	})
	if err != nil {
		return 0, 0, err
	}
	store := inmemory.New()
	rt, err := runtime.New(runtime.Config{Store: store})
	if err != nil {
		return 0, 0, err
	}
	runCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	for _, err := range rt.Run(runCtx, runtime.RunRequest{
		AppName:   "eval",
		UserID:    "eval-user",
		SessionID: c.Name,
		Input:     prompt,
		Agent:     ag,
		Model:     llm,
		Tools:     resolved.Tools,
		Policies:  resolved.Policies,
	}) {
		if err != nil {
			return 0, 0, err
		}
	}
	events, err := store.ListEvents(runCtx, &session.Session{AppName: "eval", UserID: "eval-user", ID: c.Name})
	if err != nil {
		return 0, 0, err
	}
	toolCount := 0
	for _, ev := range events {
		if ev != nil && ev.Message.ToolResponse != nil {
			toolCount++
		}
	}
	if err := c.Validate(events); err != nil {
		return len(events), toolCount, err
	}
	return len(events), toolCount, nil
}

func writeReport(summary *Summary) error {
	reportDir := filepath.Join(".tmp", "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return err
	}
	ts := time.Now().UTC().Format("20060102_150405")
	jsonPath := filepath.Join(reportDir, fmt.Sprintf("eval_%s_%s.json", summary.Suite, ts))
	mdPath := filepath.Join(reportDir, fmt.Sprintf("eval_%s_%s.md", summary.Suite, ts))

	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return err
	}
	return os.WriteFile(mdPath, []byte(summary.markdown()), 0o644)
}

func (s *Summary) markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Eval Summary (%s)\n\n", s.Suite)
	fmt.Fprintf(&b, "- Started: %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Finished: %s\n", s.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Passed: %d\n", s.Passed)
	fmt.Fprintf(&b, "- Failed: %d\n\n", s.Failed)
	b.WriteString("| Model | Case | Passed | Events | Tools | Latency(ms) | Error |\n")
	b.WriteString("| --- | --- | --- | ---: | ---: | ---: | --- |\n")
	for _, r := range s.Results {
		fmt.Fprintf(&b, "| %s | %s | %t | %d | %d | %d | %s |\n",
			r.Model, r.CaseName, r.Passed, r.EventCount, r.ToolInvokes, r.Latency, strings.ReplaceAll(r.Error, "|", "/"))
	}
	return b.String()
}

func resolveModelAliases(opts Options) []string {
	if raw := strings.TrimSpace(opts.Models); raw != "" {
		parts := splitCSV(raw)
		if len(parts) > 0 {
			return parts
		}
	}
	if strings.TrimSpace(opts.Model) != "" {
		return []string{strings.TrimSpace(opts.Model)}
	}
	return evalproviders.DefaultModelAliases()
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

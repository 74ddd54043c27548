package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/andrewrchen05/bounding-box-agent/kernel/bootstrap"
	"github.com/andrewrchen05/bounding-box-agent/kernel/llmagent"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	modelproviders "github.com/andrewrchen05/bounding-box-agent/kernel/model/providers"
	pluginbuiltin "github.com/andrewrchen05/bounding-box-agent/kernel/plugin/builtin"
	"github.com/andrewrchen05/bounding-box-agent/kernel/runtime"
)

type cliConsole struct {
	baseCtx context.Context
	rt      *runtime.Runtime

	appName       string
	userID        string
	sessionID     string
	contextWindow int
	workspace     workspaceContext

	resolved *bootstrap.ResolvedSpec

	modelAlias  string
	llm         model.LLM
	visionAlias string
	visionLLM   model.LLM

	modelFactory    *modelproviders.Factory
	configStore     *appConfigStore
	credentialStore *credentialStore
	sessionIndex    *sessionIndex

	basePrompt    string
	promptsDir    string
	maxIterations int
	markdown      bool
	version       string

	lastAnswer string

	editor   lineEditor
	out      io.Writer
	commands map[string]slashCommand

	runMu           sync.Mutex
	activeRunCancel context.CancelFunc
	interruptMu     sync.Mutex
	lastInterruptAt time.Time
}

const interruptExitWindow = 2 * time.Second

type slashCommand struct {
	Usage       string
	Description string
	Handle      func(*cliConsole, []string) (bool, error)
}

var consoleCommandOrder = []string{
	"help", "version", "status", "new", "sessions", "models", "model",
	"connect", "iterations", "tools", "copy", "exit",
}

func newCLIConsole(cfg cliConsoleConfig) *cliConsole {
	completions := make([]string, 0, len(consoleCommandOrder))
	for _, name := range consoleCommandOrder {
		completions = append(completions, "/"+name)
	}
	editor, _ := newLineEditor(lineEditorConfig{
		HistoryFile: cfg.HistoryFile,
		Commands:    completions,
	})
	var out io.Writer = os.Stdout
	if editor != nil {
		out = editor.Output()
	}
	console := &cliConsole{
		baseCtx:         cfg.BaseContext,
		rt:              cfg.Runtime,
		appName:         cfg.AppName,
		userID:          cfg.UserID,
		sessionID:       cfg.SessionID,
		contextWindow:   cfg.ContextWindow,
		workspace:       cfg.Workspace,
		resolved:        cfg.Resolved,
		modelAlias:      strings.ToLower(strings.TrimSpace(cfg.ModelAlias)),
		llm:             cfg.Model,
		visionAlias:     strings.ToLower(strings.TrimSpace(cfg.VisionModelAlias)),
		visionLLM:       cfg.VisionModel,
		modelFactory:    cfg.ModelFactory,
		configStore:     cfg.ConfigStore,
		credentialStore: cfg.CredentialStore,
		sessionIndex:    cfg.SessionIndex,
		basePrompt:      cfg.BasePrompt,
		promptsDir:      cfg.PromptsDir,
		maxIterations:   cfg.MaxIterations,
		markdown:        cfg.Markdown,
		version:         strings.TrimSpace(cfg.Version),
		editor:          editor,
		out:             out,
	}
	console.commands = map[string]slashCommand{
		"help":       {Usage: "/help", Description: "show command help", Handle: handleHelp},
		"version":    {Usage: "/version", Description: "show version", Handle: handleVersion},
		"exit":       {Usage: "/exit", Description: "leave the console", Handle: handleExit},
		"new":        {Usage: "/new", Description: "start a fresh conversation session", Handle: handleNew},
		"status":     {Usage: "/status", Description: "show session and model status", Handle: handleStatus},
		"sessions":   {Usage: "/sessions [resume <session-id>]", Description: "list or resume workspace sessions", Handle: handleSessions},
		"models":     {Usage: "/models", Description: "list configured model aliases", Handle: handleModels},
		"model":      {Usage: "/model <alias>", Description: "switch the active model", Handle: handleModel},
		"connect":    {Usage: "/connect", Description: "register a model provider interactively", Handle: handleConnect},
		"iterations": {Usage: "/iterations [n]", Description: "show or set the tool iteration cap", Handle: handleIterations},
		"tools":      {Usage: "/tools", Description: "list available tools", Handle: handleTools},
		"copy":       {Usage: "/copy", Description: "copy the last answer to the clipboard", Handle: handleCopy},
	}
	return console
}

type cliConsoleConfig struct {
	BaseContext      context.Context
	Runtime          *runtime.Runtime
	AppName          string
	UserID           string
	SessionID        string
	ContextWindow    int
	Workspace        workspaceContext
	Resolved         *bootstrap.ResolvedSpec
	ModelAlias       string
	Model            model.LLM
	VisionModelAlias string
	VisionModel      model.LLM
	ModelFactory     *modelproviders.Factory
	ConfigStore      *appConfigStore
	CredentialStore  *credentialStore
	SessionIndex     *sessionIndex
	BasePrompt       string
	PromptsDir       string
	MaxIterations    int
	Markdown         bool
	HistoryFile      string
	Version          string
}

func (c *cliConsole) loop() error {
	c.printf("Interactive mode. Type /help for commands.\n")
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	exitCh := make(chan struct{}, 1)
	stopSignals := make(chan struct{})
	go c.handleInterruptSignals(sigCh, exitCh, stopSignals)
	defer func() {
		close(stopSignals)
		signal.Stop(sigCh)
		if c.editor != nil {
			_ = c.editor.Close()
		}
	}()
	for {
		select {
		case <-exitCh:
			c.printf("\n")
			return nil
		default:
		}
		line, err := c.editor.ReadLine("> ")
		if err != nil {
			if errors.Is(err, errInputInterrupt) {
				if c.registerInterruptAndShouldExit() {
					c.printf("\n")
					return nil
				}
				c.printf("\n")
				continue
			}
			if errors.Is(err, errInputEOF) {
				c.printf("\n")
				return nil
			}
			return err
		}
		if line == "" {
			c.resetInterruptWindow()
			continue
		}
		c.resetInterruptWindow()
		if strings.HasPrefix(line, "/") {
			exitNow, err := c.handleSlash(line)
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			if exitNow {
				return nil
			}
			continue
		}
		if err := c.runPrompt(line); err != nil {
			if errors.Is(err, context.Canceled) {
				c.printf("! run interrupted\n")
				continue
			}
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *cliConsole) handleInterruptSignals(sigCh <-chan os.Signal, exitCh chan<- struct{}, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-sigCh:
			if c.cancelActiveRun() {
				c.noteInterrupt()
				continue
			}
			// readline already reports Ctrl+C via errInputInterrupt; avoid
			// double-counting the same keypress as two interrupts.
			if c.usesReadlineEditor() {
				continue
			}
			if c.registerInterruptAndShouldExit() {
				select {
				case exitCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (c *cliConsole) handleSlash(line string) (bool, error) {
	parts := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(parts[0])
	handler, ok := c.commands[cmd]
	if !ok {
		return false, fmt.Errorf("unknown command %q, use /help", cmd)
	}
	return handler.Handle(c, parts[1:])
}

func (c *cliConsole) runPrompt(input string) error {
	if c.llm == nil {
		return fmt.Errorf("no model configured, use /connect to add a provider")
	}
	assembled, err := assembleSystemPrompt(c.appName, c.promptsDir, c.workspace, c.basePrompt)
	if err != nil {
		return err
	}
	ag, err := llmagent.New(llmagent.Config{
		Name:          c.appName,
		SystemPrompt:  assembled.Prompt,
		MaxIterations: c.maxIterations,
	})
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(c.baseCtx)
	c.setActiveRunCancel(cancel)
	defer func() {
		c.clearActiveRunCancel()
		cancel()
	}()
	return runOnce(runCtx, c.rt, runtime.RunRequest{
		AppName:   c.appName,
		UserID:    c.userID,
		SessionID: c.sessionID,
		Input:     input,
		Agent:     ag,
		Model:     c.llm,
		Tools:     c.resolved.Tools,
		Policies:  c.resolved.Policies,
	}, runRenderConfig{
		Markdown: c.markdown,
		Writer:   c.out,
		OnAnswer: func(text string) { c.lastAnswer = text },
	})
}

// adoptModel makes llm the active chat model. Without a dedicated vision
// model the chat model also serves detection, so the box tools are
// re-resolved against it.
func (c *cliConsole) adoptModel(alias string, llm model.LLM) error {
	c.modelAlias = strings.ToLower(strings.TrimSpace(alias))
	c.llm = llm
	c.contextWindow = contextWindowOf(llm)
	if c.visionLLM != nil {
		return nil
	}
	return c.refreshTools(llm)
}

// refreshTools re-resolves tool providers with vision as the detection
// model, keeping MCP connections managed by their provider.
func (c *cliConsole) refreshTools(vision model.LLM) error {
	if c.resolved == nil || c.resolved.Registry == nil {
		return nil
	}
	ctx := pluginbuiltin.WithVisionModel(c.baseCtx, vision)
	tools, err := c.resolved.Registry.ResolveTools(ctx, c.resolved.ToolProviderNames)
	if err != nil {
		return err
	}
	c.resolved.Tools = tools
	return nil
}

func contextWindowOf(llm model.LLM) int {
	if w, ok := llm.(model.ContextWindower); ok {
		return w.ContextWindowTokens()
	}
	return 0
}

func (c *cliConsole) setActiveRunCancel(cancel context.CancelFunc) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.activeRunCancel = cancel
}

func (c *cliConsole) clearActiveRunCancel() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.activeRunCancel = nil
}

func (c *cliConsole) cancelActiveRun() bool {
	c.runMu.Lock()
	cancel := c.activeRunCancel
	c.runMu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (c *cliConsole) usesReadlineEditor() bool {
	_, ok := c.editor.(*readlineEditor)
	return ok
}

func (c *cliConsole) noteInterrupt() {
	c.interruptMu.Lock()
	defer c.interruptMu.Unlock()
	c.lastInterruptAt = time.Now()
}

func (c *cliConsole) registerInterruptAndShouldExit() bool {
	c.interruptMu.Lock()
	defer c.interruptMu.Unlock()
	now := time.Now()
	shouldExit := !c.lastInterruptAt.IsZero() && now.Sub(c.lastInterruptAt) <= interruptExitWindow
	c.lastInterruptAt = now
	return shouldExit
}

func (c *cliConsole) resetInterruptWindow() {
	c.interruptMu.Lock()
	defer c.interruptMu.Unlock()
	c.lastInterruptAt = time.Time{}
}

func handleHelp(c *cliConsole, args []string) (bool, error) {
	_ = args
	c.printf("Available commands:\n")
	for _, name := range consoleCommandOrder {
		cmd, ok := c.commands[name]
		if !ok {
			continue
		}
		c.printf("  %-30s %s\n", cmd.Usage, cmd.Description)
	}
	return false, nil
}

func handleVersion(c *cliConsole, args []string) (bool, error) {
	_ = args
	if strings.TrimSpace(c.version) == "" {
		c.printf("version=unknown\n")
		return false, nil
	}
	c.printf("version=%s\n", c.version)
	return false, nil
}

func handleExit(c *cliConsole, args []string) (bool, error) {
	_ = c
	_ = args
	return true, nil
}

func handleNew(c *cliConsole, args []string) (bool, error) {
	if len(args) != 0 {
		return false, fmt.Errorf("usage: /new")
	}
	previous := strings.TrimSpace(c.sessionID)
	c.sessionID = nextConversationSessionID()
	c.lastAnswer = ""
	if previous == "" {
		c.printf("new session started: %s\n", c.sessionID)
		return false, nil
	}
	c.printf("new session started: %s (from %s)\n", c.sessionID, previous)
	return false, nil
}

func handleStatus(c *cliConsole, args []string) (bool, error) {
	_ = args
	vision := c.visionAlias
	if vision == "" {
		vision = "(chat model)"
	}
	c.printf("model=%s vision_model=%s max_iterations=%d markdown=%v\n",
		stringOrDash(c.modelAlias), vision, c.maxIterations, c.markdown)
	c.printf("workspace=%s session=%s\n", c.workspace.CWD, c.sessionID)
	if c.workspace.Branch != "" || c.workspace.Commit != "" {
		c.printf("git=%s\n", workspaceGitRef(c.workspace))
	}
	if c.resolved != nil {
		c.printf("tools=%d policies=%d\n", len(c.resolved.Tools), len(c.resolved.Policies))
	}
	if c.rt != nil {
		runState, err := c.rt.RunState(c.baseCtx, runtime.RunStateRequest{
			AppName:   c.appName,
			UserID:    c.userID,
			SessionID: c.sessionID,
		})
		if err != nil {
			return false, err
		}
		if runState.HasLifecycle {
			c.printf("run_state=%s phase=%s\n", runState.Status, stringOrDash(runState.Phase))
			if strings.TrimSpace(runState.Outcome) != "" {
				c.printf("run_outcome=%s\n", runState.Outcome)
			}
			if strings.TrimSpace(runState.Error) != "" {
				c.printf("run_error=%s\n", truncateInline(runState.Error, 160))
			}
		} else {
			c.printf("run_state=none\n")
		}
	}
	if c.llm == nil {
		c.printf("context_usage=not available (no model configured)\n")
		return false, nil
	}
	usage, err := c.rt.ContextUsage(c.baseCtx, runtime.UsageRequest{
		AppName:             c.appName,
		UserID:              c.userID,
		SessionID:           c.sessionID,
		Model:               c.llm,
		ContextWindowTokens: c.contextWindow,
	})
	if err != nil {
		return false, err
	}
	c.printf("context_usage=%s (events=%d)\n", formatUsage(usage), usage.EventCount)
	return false, nil
}

func handleModels(c *cliConsole, args []string) (bool, error) {
	_ = args
	current := strings.ToLower(strings.TrimSpace(c.modelAlias))
	refs := []string(nil)
	if c.configStore != nil {
		refs = c.configStore.ConfiguredModelRefs()
	}
	if len(refs) > 0 {
		c.printf("models:\n")
		for _, ref := range refs {
			marker := " "
			if ref == current {
				marker = "*"
			}
			c.printf("  %s %s\n", marker, ref)
		}
		return false, nil
	}
	if c.modelFactory == nil {
		return false, fmt.Errorf("no models configured, use /connect")
	}
	list := c.modelFactory.ListModels()
	if len(list) == 0 {
		return false, fmt.Errorf("no models configured, use /connect")
	}
	c.printf("models: %s\n", strings.Join(list, ", "))
	return false, nil
}

func handleModel(c *cliConsole, args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("usage: /model <alias>")
	}
	if c.modelFactory == nil {
		return false, fmt.Errorf("model factory is not configured")
	}
	alias := strings.TrimSpace(args[0])
	if c.configStore != nil {
		alias = c.configStore.ResolveModelAlias(alias)
	}
	llm, err := c.modelFactory.NewByAlias(alias)
	if err != nil {
		return false, err
	}
	if err := c.adoptModel(alias, llm); err != nil {
		c.printf("warn: refresh tools failed: %v\n", err)
	}
	if c.configStore != nil {
		if err := c.configStore.SetDefaultModel(c.modelAlias); err != nil {
			fmt.Fprintf(c.out, "warn: update default model failed: %v\n", err)
		}
	}
	c.printf("model switched to %s\n", c.modelAlias)
	return false, nil
}

func handleIterations(c *cliConsole, args []string) (bool, error) {
	if len(args) == 0 {
		c.printf("max_iterations=%d\n", c.maxIterations)
		return false, nil
	}
	if len(args) != 1 {
		return false, fmt.Errorf("usage: /iterations [n]")
	}
	value, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || value <= 0 {
		return false, fmt.Errorf("invalid iteration cap %q, expected a positive number", args[0])
	}
	c.maxIterations = value
	if c.configStore != nil {
		if err := c.configStore.SetMaxIterations(value); err != nil {
			fmt.Fprintf(c.out, "warn: persist max_iterations failed: %v\n", err)
		}
	}
	c.printf("max_iterations=%d\n", c.maxIterations)
	return false, nil
}

func handleTools(c *cliConsole, args []string) (bool, error) {
	_ = args
	if c.resolved == nil || len(c.resolved.Tools) == 0 {
		c.printf("tools: (none)\n")
		return false, nil
	}
	c.printf("tools:\n")
	for _, one := range c.resolved.Tools {
		if one == nil {
			continue
		}
		desc := truncateInline(one.Description(), 96)
		if desc == "" {
			c.printf("  - %s\n", one.Name())
			continue
		}
		c.printf("  - %s  %s\n", one.Name(), desc)
	}
	return false, nil
}

func handleCopy(c *cliConsole, args []string) (bool, error) {
	_ = args
	answer := strings.TrimSpace(c.lastAnswer)
	if answer == "" {
		return false, fmt.Errorf("nothing to copy yet")
	}
	if err := clipboard.WriteAll(answer); err != nil {
		return false, fmt.Errorf("copy to clipboard: %w", err)
	}
	c.printf("copied last answer to clipboard (%d chars)\n", len([]rune(answer)))
	return false, nil
}

func handleSessions(c *cliConsole, args []string) (bool, error) {
	if c.sessionIndex == nil {
		return false, fmt.Errorf("session index is not available")
	}
	if len(args) == 0 {
		return printWorkspaceSessions(c)
	}
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "resume":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: /sessions resume <session-id>")
		}
		target := strings.TrimSpace(args[1])
		if target == "" {
			return false, fmt.Errorf("session-id is required")
		}
		ok, err := c.sessionIndex.HasWorkspaceSession(c.workspace.Key, target)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("session %q not found in current workspace", target)
		}
		c.sessionID = target
		c.lastAnswer = ""
		c.printf("session resumed: %s\n", c.sessionID)
		return false, nil
	default:
		return false, fmt.Errorf("usage: /sessions [resume <session-id>]")
	}
}

func printWorkspaceSessions(c *cliConsole) (bool, error) {
	items, err := c.sessionIndex.ListWorkspaceSessions(c.workspace.Key, 50)
	if err != nil {
		return false, err
	}
	c.printf("workspace: %s\n", c.workspace.CWD)
	if len(items) == 0 {
		c.printf("sessions: (empty)\n")
		return false, nil
	}
	c.printf("sessions:\n")
	now := time.Now()
	for _, one := range items {
		marker := " "
		if one.SessionID == c.sessionID {
			marker = "*"
		}
		last := "never"
		age := "-"
		if !one.LastEventAt.IsZero() {
			last = one.LastEventAt.Format(time.RFC3339)
			age = now.Sub(one.LastEventAt).Round(time.Second).String()
		}
		preview := truncateInline(one.LastUserMessage, 48)
		if preview == "" {
			preview = "-"
		}
		c.printf(" %s %s  events=%d  last=%s (%s)  user=%s\n", marker, one.SessionID, one.EventCount, last, age, preview)
	}
	return false, nil
}

func workspaceGitRef(workspace workspaceContext) string {
	ref := workspace.Branch
	if workspace.Commit != "" {
		if ref != "" {
			ref += "@"
		}
		ref += workspace.Commit
	}
	return ref
}

func (c *cliConsole) printf(format string, args ...any) {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

func formatUsage(usage runtime.ContextUsage) string {
	if usage.WindowTokens <= 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d (%.1f%%)", usage.CurrentTokens, usage.WindowTokens, usage.Ratio*100)
}

func stringOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

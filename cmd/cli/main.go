package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	launcherfull "github.com/andrewrchen05/bounding-box-agent/cmd/launcher/full"
	evalrunner "github.com/andrewrchen05/bounding-box-agent/eval/runner"
	"github.com/andrewrchen05/bounding-box-agent/internal/envload"
	"github.com/andrewrchen05/bounding-box-agent/internal/version"
	"github.com/andrewrchen05/bounding-box-agent/kernel/bootstrap"
	"github.com/andrewrchen05/bounding-box-agent/kernel/llmagent"
	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	modelproviders "github.com/andrewrchen05/bounding-box-agent/kernel/model/providers"
	pluginbuiltin "github.com/andrewrchen05/bounding-box-agent/kernel/plugin/builtin"
	"github.com/andrewrchen05/bounding-box-agent/kernel/runtime"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session/filestore"
)

const defaultUserID = "local-user"

func main() {
	launcher := launcherfull.NewLauncher(runConsole, runEval)
	if err := launcher.Execute(context.Background(), os.Args[1:]); err != nil {
		exitErr(err)
	}
}

func runEval(ctx context.Context, args []string) error {
	return evalrunner.CLI(ctx, args)
}

func runConsole(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := envload.LoadNearest(); err != nil {
		fmt.Fprintf(os.Stderr, "warn: load .env failed: %v\n", err)
	}
	initialAppName := appNameFromArgs(args, "boxagent")
	configStore, err := loadOrInitAppConfig(initialAppName)
	if err != nil {
		return err
	}
	defaultStoreDir, err := sessionStoreDir(initialAppName)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	var (
		appName          = fs.String("app", initialAppName, "App name scoping config and session data")
		input            = fs.String("input", "", "Run one prompt non-interactively and exit")
		modelAlias       = fs.String("model", configStore.DefaultModel(), "Chat model alias")
		visionModelAlias = fs.String("vision-model", configStore.DefaultVisionModel(), "Detection model alias (defaults to the chat model)")
		maxIterations    = fs.Int("max-iterations", configStore.MaxIterations(), "Tool iteration cap per run")
		sessionID        = fs.String("session", "", "Conversation id to resume (default: start a new conversation)")
		storeDir         = fs.String("store-dir", defaultStoreDir, "Session store directory")
		mcpConfig        = fs.String("mcp-config", defaultMCPConfigPath(), "MCP servers config JSON path")
		promptsDir       = fs.String("prompts-dir", "", "Prompt modules directory (default ~/.{app}/prompts)")
		noMarkdown       = fs.Bool("no-markdown", false, "Print answers as plain text")
		noColor          = fs.Bool("no-color", false, "Disable ANSI colors")
		credentialStore  = fs.String("credential-store", configStore.CredentialStoreMode(), "Credential store mode: auto|file|ephemeral")
		timeout          = fs.Duration("timeout", 0, "Single-shot run timeout (0 disables)")
		showVersion      = fs.Bool("version", false, "Show version and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println(version.String())
		return nil
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}
	if strings.TrimSpace(*sessionID) == "" {
		*sessionID = nextConversationSessionID()
	}

	if err := configStore.SetCredentialStoreMode(*credentialStore); err != nil {
		return err
	}
	credentials, err := loadOrInitCredentialStore(initialAppName, *credentialStore)
	if err != nil {
		return err
	}
	if err := applyStoredCredentials(configStore, credentials); err != nil {
		return err
	}
	if *noColor {
		color.NoColor = true
	}

	workspace, err := resolveWorkspaceContext()
	if err != nil {
		return err
	}
	historyPath, err := historyFilePath(initialAppName, workspace.Key)
	if err != nil {
		return err
	}

	factory := modelproviders.NewFactory()
	for _, cfg := range builtinProviderConfigs() {
		if registerErr := factory.Register(cfg); registerErr != nil {
			fmt.Fprintf(os.Stderr, "warn: skip builtin model %q: %v\n", cfg.Alias, registerErr)
		}
	}
	for _, cfg := range configStore.ProviderConfigs() {
		if registerErr := factory.Register(cfg); registerErr != nil {
			fmt.Fprintf(os.Stderr, "warn: skip provider %q: %v\n", cfg.Alias, registerErr)
		}
	}

	alias, llm, err := connectModel(factory, configStore, *modelAlias, flagProvided(args, "model"))
	if err != nil {
		return err
	}
	if llm != nil {
		if saveErr := configStore.SetDefaultModel(alias); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warn: persist default model failed: %v\n", saveErr)
		}
	}
	visionAlias, visionLLM, err := connectModel(factory, configStore, *visionModelAlias, flagProvided(args, "vision-model"))
	if err != nil {
		return err
	}
	if visionLLM != nil {
		if saveErr := configStore.SetDefaultVisionModel(visionAlias); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warn: persist default vision model failed: %v\n", saveErr)
		}
	}
	visionForTools := visionLLM
	if visionForTools == nil {
		visionForTools = llm
	}

	mcpManager, err := loadMCPToolManager(*mcpConfig)
	if err != nil {
		return err
	}
	if mcpManager != nil {
		defer func() {
			if closeErr := mcpManager.Close(); closeErr != nil {
				fmt.Fprintf(os.Stderr, "warn: close mcp manager failed: %v\n", closeErr)
			}
		}()
	}

	resolved, err := bootstrap.Assemble(ctx, bootstrap.AssembleSpec{
		Options: pluginbuiltin.RegisterOptions{
			VisionModel:    visionForTools,
			MCPToolManager: mcpManager,
			ImageRoots:     configStore.ImageRoots(),
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resolved.Shutdown(context.Background()); closeErr != nil {
			fmt.Fprintf(os.Stderr, "warn: shutdown tool providers failed: %v\n", closeErr)
		}
	}()

	eventStoreDir := filepath.Join(*storeDir, workspace.Key, "conversation_history")
	storeImpl, err := filestore.New(eventStoreDir)
	if err != nil {
		return err
	}
	index, err := newSessionIndex(filepath.Join(*storeDir, "session_index.db"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := index.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "warn: close session index failed: %v\n", closeErr)
		}
	}()
	if err := index.SyncWorkspaceFromStoreDir(workspace, *appName, defaultUserID, eventStoreDir); err != nil {
		fmt.Fprintf(os.Stderr, "warn: sync session index failed: %v\n", err)
	}
	store := newIndexedSessionStore(storeImpl, index, workspace)
	rt, err := runtime.New(runtime.Config{Store: store})
	if err != nil {
		return err
	}

	if strings.TrimSpace(*input) != "" {
		if llm == nil {
			return fmt.Errorf("no model configured, pass -model with credentials or run /connect in the console first")
		}
		runCtx := ctx
		if *timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, *timeout)
			defer cancel()
		}
		assembled, err := assembleSystemPrompt(*appName, *promptsDir, workspace, "")
		if err != nil {
			return err
		}
		for _, warn := range assembled.Warnings {
			fmt.Fprintf(os.Stderr, "warn: %v\n", warn)
		}
		ag, err := llmagent.New(llmagent.Config{
			Name:          *appName,
			SystemPrompt:  assembled.Prompt,
			MaxIterations: *maxIterations,
		})
		if err != nil {
			return err
		}
		return runOnce(runCtx, rt, runtime.RunRequest{
			AppName:   *appName,
			UserID:    defaultUserID,
			SessionID: *sessionID,
			Input:     *input,
			Agent:     ag,
			Model:     llm,
			Tools:     resolved.Tools,
			Policies:  resolved.Policies,
		}, runRenderConfig{
			Markdown: !*noMarkdown,
			Writer:   os.Stdout,
		})
	}

	console := newCLIConsole(cliConsoleConfig{
		BaseContext:      ctx,
		Runtime:          rt,
		AppName:          *appName,
		UserID:           defaultUserID,
		SessionID:        *sessionID,
		ContextWindow:    contextWindowOf(llm),
		Workspace:        workspace,
		Resolved:         resolved,
		ModelAlias:       alias,
		Model:            llm,
		VisionModelAlias: visionAlias,
		VisionModel:      visionLLM,
		ModelFactory:     factory,
		ConfigStore:      configStore,
		CredentialStore:  credentials,
		SessionIndex:     index,
		PromptsDir:       *promptsDir,
		MaxIterations:    *maxIterations,
		Markdown:         !*noMarkdown,
		HistoryFile:      historyPath,
		Version:          version.String(),
	})
	return console.loop()
}

// connectModel builds the model behind alias. A broken alias is fatal only
// when the user named it on the command line; a stale stored default
// degrades to starting without a model so /connect can replace it.
func connectModel(factory *modelproviders.Factory, configStore *appConfigStore, rawAlias string, explicit bool) (string, model.LLM, error) {
	alias := strings.ToLower(strings.TrimSpace(rawAlias))
	if alias == "" {
		return "", nil, nil
	}
	if configStore != nil {
		alias = configStore.ResolveModelAlias(alias)
	}
	llm, err := factory.NewByAlias(alias)
	if err != nil {
		if explicit {
			return "", nil, err
		}
		fmt.Fprintf(os.Stderr, "warn: model %q unavailable: %v\n", alias, err)
		return "", nil, nil
	}
	return alias, llm, nil
}

// builtinProviderConfigs seeds well-known aliases keyed to each provider's
// conventional API key env var. Config file entries override these on alias
// collision.
func builtinProviderConfigs() []modelproviders.Config {
	return []modelproviders.Config{
		{
			Alias:               "gemini-2.5-flash",
			Provider:            "gemini",
			API:                 modelproviders.APIGemini,
			Model:               "gemini-2.5-flash",
			ContextWindowTokens: 1048576,
			Auth:                modelproviders.AuthConfig{Type: modelproviders.AuthAPIKey, TokenEnv: "GEMINI_API_KEY"},
		},
		{
			Alias:               "gemini-2.5-pro",
			Provider:            "gemini",
			API:                 modelproviders.APIGemini,
			Model:               "gemini-2.5-pro",
			ContextWindowTokens: 1048576,
			Auth:                modelproviders.AuthConfig{Type: modelproviders.AuthAPIKey, TokenEnv: "GEMINI_API_KEY"},
		},
		{
			Alias:               "claude-sonnet-4-5",
			Provider:            "anthropic",
			API:                 modelproviders.APIAnthropic,
			Model:               "claude-sonnet-4-5",
			ContextWindowTokens: 200000,
			Auth:                modelproviders.AuthConfig{Type: modelproviders.AuthAPIKey, TokenEnv: "ANTHROPIC_API_KEY"},
		},
		{
			Alias:               "deepseek-chat",
			Provider:            "deepseek",
			API:                 modelproviders.APIDeepSeek,
			Model:               "deepseek-chat",
			BaseURL:             "https://api.deepseek.com/v1",
			ContextWindowTokens: 64000,
			Auth:                modelproviders.AuthConfig{Type: modelproviders.AuthAPIKey, TokenEnv: "DEEPSEEK_API_KEY"},
		},
	}
}

func nextConversationSessionID() string {
	return "s-" + uuid.NewString()
}

func flagProvided(args []string, flagName string) bool {
	flagName = strings.TrimSpace(flagName)
	if flagName == "" {
		return false
	}
	short := "-" + flagName
	long := "--" + flagName
	for _, arg := range args {
		trimmed := strings.TrimSpace(arg)
		if trimmed == short || trimmed == long {
			return true
		}
		if strings.HasPrefix(trimmed, short+"=") || strings.HasPrefix(trimmed, long+"=") {
			return true
		}
	}
	return false
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

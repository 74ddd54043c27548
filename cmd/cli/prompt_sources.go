package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/kernel/promptpipeline"
)

// assembleSystemPrompt builds the layered system prompt for one console or
// one-shot run. Prompt modules are seeded under ~/.<app>/prompts on first
// use; the workspace AGENTS.md layers in from the current checkout.
func assembleSystemPrompt(appName, promptsDir string, workspace workspaceContext, basePrompt string) (promptpipeline.AssembleResult, error) {
	configDir := ""
	if strings.TrimSpace(promptsDir) != "" {
		resolved, err := resolveUserPath(promptsDir)
		if err != nil {
			return promptpipeline.AssembleResult{}, err
		}
		configDir = resolved
	}
	return promptpipeline.Assemble(promptpipeline.AssembleSpec{
		AppName:      normalizedAppName(appName),
		ConfigDir:    configDir,
		WorkspaceDir: workspace.CWD,
		BasePrompt:   basePrompt,
		RuntimeHint:  workspaceRuntimeHint(workspace),
	})
}

func workspaceRuntimeHint(workspace workspaceContext) string {
	lines := make([]string, 0, 2)
	if strings.TrimSpace(workspace.CWD) != "" {
		lines = append(lines, "working directory: "+workspace.CWD)
	}
	if workspace.Branch != "" || workspace.Commit != "" {
		ref := workspace.Branch
		if workspace.Commit != "" {
			if ref != "" {
				ref += "@"
			}
			ref += workspace.Commit
		}
		lines = append(lines, "git: "+ref)
	}
	return strings.Join(lines, "\n")
}

// resolveUserPath expands a leading ~/ and makes relative paths absolute
// against the current directory.
func resolveUserPath(path string) (string, error) {
	value := strings.TrimSpace(path)
	if value == "" {
		return "", fmt.Errorf("cli: empty path")
	}
	if strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cli: resolve user home: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~/"))
	}
	if !filepath.IsAbs(value) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cli: resolve cwd: %w", err)
		}
		value = filepath.Join(cwd, value)
	}
	return filepath.Clean(value), nil
}

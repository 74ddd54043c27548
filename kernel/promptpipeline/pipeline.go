package promptpipeline

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// AssembleSpec describes prompt assembly inputs.
type AssembleSpec struct {
	AppName      string
	ConfigDir    string
	WorkspaceDir string

	// BasePrompt carries session-level overrides appended to the user stage.
	BasePrompt  string
	RuntimeHint string
}

// PromptFragment is one assembled prompt section.
type PromptFragment struct {
	Stage   string
	Source  string
	Content string
}

// AssembleResult is the final output consumed by llm agent config.
type AssembleResult struct {
	Prompt    string
	Fragments []PromptFragment
	Warnings  []error
}

// Assemble builds the final system prompt from ordered pipeline modules.
// Missing optional modules are skipped; unreadable ones are reported as
// warnings without failing assembly.
func Assemble(spec AssembleSpec) (AssembleResult, error) {
	out := AssembleResult{
		Fragments: []PromptFragment{},
		Warnings:  []error{},
	}

	files, err := EnsurePromptFiles(spec.AppName, spec.ConfigDir)
	if err != nil {
		return out, err
	}

	if text, warn := loadFragment(files.IdentityPath); warn != nil {
		out.Warnings = append(out.Warnings, warn)
	} else if text != "" {
		out.Fragments = append(out.Fragments, PromptFragment{
			Stage:   "identity",
			Source:  files.IdentityPath,
			Content: text,
		})
	}

	if text, warn := loadFragment(files.GlobalAgentsPath); warn != nil {
		out.Warnings = append(out.Warnings, warn)
	} else if text != "" {
		out.Fragments = append(out.Fragments, PromptFragment{
			Stage:   "global_agents",
			Source:  files.GlobalAgentsPath,
			Content: text,
		})
	}

	if workspace := strings.TrimSpace(spec.WorkspaceDir); workspace != "" {
		path := filepath.Join(workspace, workspaceAgentsName)
		if text, warn := loadFragment(path); warn != nil {
			out.Warnings = append(out.Warnings, warn)
		} else if text != "" {
			out.Fragments = append(out.Fragments, PromptFragment{
				Stage:   "workspace_agents",
				Source:  path,
				Content: text,
			})
		}
	}

	if runtimeHint := normalizeText(spec.RuntimeHint); runtimeHint != "" {
		out.Fragments = append(out.Fragments, PromptFragment{
			Stage:   "runtime_context",
			Source:  "runtime execution context",
			Content: runtimeHint,
		})
	}

	userParts := make([]string, 0, 2)
	if text, warn := loadFragment(files.UserPath); warn != nil {
		out.Warnings = append(out.Warnings, warn)
	} else if text != "" {
		userParts = append(userParts, text)
	}
	if value := normalizeText(spec.BasePrompt); value != "" {
		userParts = append(userParts, "## Session Overrides\n\n"+value)
	}
	if len(userParts) > 0 {
		out.Fragments = append(out.Fragments, PromptFragment{
			Stage:   "user_custom",
			Source:  files.UserPath,
			Content: strings.Join(userParts, "\n\n"),
		})
	}

	out.Prompt = renderPrompt(out.Fragments)
	return out, nil
}

func loadFragment(path string) (string, error) {
	raw, err := readPromptFile(path)
	if err != nil {
		return "", fmt.Errorf("promptpipeline: read %q: %w", path, err)
	}
	return normalizeText(raw), nil
}

func renderPrompt(fragments []PromptFragment) string {
	var b bytes.Buffer
	b.WriteString("Priority rule: higher sections override lower sections.\n")
	b.WriteString("Order: identity > global_agents > workspace_agents > runtime_context > user_custom.")
	for _, f := range fragments {
		text := normalizeText(f.Content)
		if text == "" {
			continue
		}
		b.WriteString("\n\n### ")
		b.WriteString(stageTitle(f.Stage))
		if strings.TrimSpace(f.Source) != "" {
			b.WriteString("\nsource: ")
			b.WriteString(f.Source)
		}
		b.WriteString("\n\n")
		b.WriteString(text)
	}
	return strings.TrimSpace(b.String())
}

func stageTitle(stage string) string {
	switch strings.TrimSpace(stage) {
	case "identity":
		return "Identity"
	case "global_agents":
		return "Global Instructions"
	case "workspace_agents":
		return "Workspace Instructions"
	case "runtime_context":
		return "Runtime Context"
	case "user_custom":
		return "User Custom Instructions"
	default:
		return "Instructions"
	}
}

func normalizeText(input string) string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")
	input = strings.TrimPrefix(input, "\uFEFF")
	return strings.TrimSpace(input)
}

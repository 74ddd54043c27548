package promptpipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	identityFileName     = "IDENTITY.md"
	globalAgentsFileName = "AGENTS.md"
	userFileName         = "USER.md"

	workspaceAgentsName = "AGENTS.md"
)

// PromptFiles locates the editable prompt modules for one app.
type PromptFiles struct {
	ConfigDir        string
	IdentityPath     string
	GlobalAgentsPath string
	UserPath         string
}

// EnsurePromptFiles seeds missing prompt modules with defaults and returns
// their locations. Existing files are never overwritten. An empty configDir
// selects ~/.<app>/prompts.
func EnsurePromptFiles(appName, configDir string) (PromptFiles, error) {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return PromptFiles{}, fmt.Errorf("promptpipeline: app name is required")
	}
	if strings.TrimSpace(configDir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return PromptFiles{}, fmt.Errorf("promptpipeline: resolve home dir: %w", err)
		}
		configDir = filepath.Join(home, "."+appName, "prompts")
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return PromptFiles{}, fmt.Errorf("promptpipeline: create config dir: %w", err)
	}
	files := PromptFiles{
		ConfigDir:        configDir,
		IdentityPath:     filepath.Join(configDir, identityFileName),
		GlobalAgentsPath: filepath.Join(configDir, globalAgentsFileName),
		UserPath:         filepath.Join(configDir, userFileName),
	}
	defaults := Defaults()
	for _, seed := range []struct {
		path    string
		content string
	}{
		{files.IdentityPath, defaults.Identity},
		{files.GlobalAgentsPath, defaults.GlobalAgents},
		{files.UserPath, defaults.User},
	} {
		if _, err := os.Stat(seed.path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return PromptFiles{}, fmt.Errorf("promptpipeline: stat %q: %w", seed.path, err)
		}
		if err := os.WriteFile(seed.path, []byte(seed.content), 0o600); err != nil {
			return PromptFiles{}, fmt.Errorf("promptpipeline: seed %q: %w", seed.path, err)
		}
	}
	return files, nil
}

func readPromptFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(raw), nil
}

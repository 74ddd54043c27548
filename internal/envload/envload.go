// Package envload loads environment defaults from the nearest .env file so
// API keys can travel with a project checkout instead of shell profiles.
package envload

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadNearest walks from the working directory upward and applies the first
// .env file it finds. Variables already present in the environment win over
// file entries. It returns the loaded path, or "" when no file exists.
func LoadNearest() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			if err := applyFile(candidate); err != nil {
				return "", err
			}
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func applyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("envload: set %q: %w", key, err)
		}
	}
	return scanner.Err()
}

// parseLine understands KEY=VALUE with an optional `export ` prefix, matched
// single or double quotes, and trailing comments on unquoted values.
func parseLine(raw string) (key, value string, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	value = strings.TrimSpace(value)
	if unquoted, wasQuoted := trimMatchedQuotes(value); wasQuoted {
		return key, unquoted, true
	}
	if idx := strings.Index(value, " #"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return key, value, true
}

func trimMatchedQuotes(value string) (string, bool) {
	if len(value) < 2 {
		return value, false
	}
	quote := value[0]
	if quote != '"' && quote != '\'' {
		return value, false
	}
	if value[len(value)-1] != quote {
		return value, false
	}
	return value[1 : len(value)-1], true
}

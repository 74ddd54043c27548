package main

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

type workspaceContext struct {
	CWD string
	Key string

	// Git metadata, empty outside a repository.
	RepoRoot string
	Branch   string
	Commit   string
}

// resolveWorkspaceContext derives the workspace identity from the current
// directory. Inside a git repository the key is pinned to the repository
// root, so sessions stay shared across subdirectories of one checkout.
func resolveWorkspaceContext() (workspaceContext, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return workspaceContext{}, fmt.Errorf("cli: resolve cwd: %w", err)
	}
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return workspaceContext{}, fmt.Errorf("cli: resolve absolute cwd: %w", err)
	}
	ws := workspaceContext{CWD: abs}
	if root, branch, commit, ok := gitContext(abs); ok {
		ws.RepoRoot = root
		ws.Branch = branch
		ws.Commit = commit
		ws.Key = workspaceKey(root)
		return ws, nil
	}
	ws.Key = workspaceKey(abs)
	return ws, nil
}

func gitContext(path string) (root, branch, commit string, ok bool) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return "", "", "", false
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", "", "", false
	}
	root = wt.Filesystem.Root()
	head, err := repo.Head()
	if err != nil {
		// Repository with no commits yet.
		return root, "", "", true
	}
	commit = head.Hash().String()
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}
	return root, branch, commit, true
}

func workspaceKey(path string) string {
	sum := sha1.Sum([]byte(filepath.Clean(path)))
	short := hex.EncodeToString(sum[:8])
	base := sanitizeAppName(filepath.Base(path))
	if base == "" {
		base = "workspace"
	}
	return base + "-" + short
}

package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// maxRepoDepth is how many directory levels below the workspace are searched.
const maxRepoDepth = 4

// skipDirs are never searched for repositories.
var skipDirs = map[string]bool{
	"artifacts": true,
	"tmp":       true,
	".git":      true,
}

// Repo is a repository checkout inside a workspace.
type Repo struct {
	// Path is relative to the workspace, e.g. github.com/org/repo.
	Path string `json:"path"`
	// Name is the last element of Path.
	Name string `json:"name"`
	// Worktree is the absolute checkout directory.
	Worktree string `json:"worktree"`
}

// ListRepos finds directories holding a .git entry (a directory for clones,
// a file for worktrees) up to four levels below wsPath. Repositories are not
// searched for nested ones. The result is sorted by Path.
func ListRepos(wsPath string) ([]Repo, error) {
	abs, err := filepath.Abs(wsPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, wsPath)
		}
		return nil, err
	}

	var repos []Repo
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if depth > maxRepoDepth {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() || skipDirs[entry.Name()] {
				continue
			}
			full := filepath.Join(dir, entry.Name())
			if _, err := os.Stat(filepath.Join(full, ".git")); err == nil {
				rel, _ := filepath.Rel(abs, full)
				repos = append(repos, Repo{Path: filepath.ToSlash(rel), Name: entry.Name(), Worktree: full})
				continue
			}
			if err := walk(full, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(abs, 1); err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	sort.Slice(repos, func(i, j int) bool { return repos[i].Path < repos[j].Path })
	return repos, nil
}

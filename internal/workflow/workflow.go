// Package workflow builds the pipelines of the built-in workflows from the
// contents of a workspace directory.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/pipeline"
)

// Built-in workflow names.
const (
	Init       = "init"
	Execute    = "execute"
	Review     = "review"
	CreatePR   = "create-pr"
	UpdateTodo = "update-todo"
)

// ReviewTimestampFormat names review directories.
const ReviewTimestampFormat = "20060102-150405"

// Plan is a pipeline ready to be started.
type Plan struct {
	Type      string
	Workspace string
	Phases    []pipeline.Phase
}

// Catalog builds workflow plans for workspaces under a root directory.
type Catalog struct {
	root string
	now  func() time.Time
}

// NewCatalog creates a Catalog for workspaces under root.
func NewCatalog(root string) *Catalog {
	return &Catalog{root: root, now: time.Now}
}

// Option sets a workflow input beyond the workspace name.
type Option func(*buildOptions)

type buildOptions struct {
	draft       bool
	instruction string
	description string
}

// WithDraft controls whether create-pr opens draft pull requests. The
// default is true.
func WithDraft(draft bool) Option {
	return func(o *buildOptions) {
		o.draft = draft
	}
}

// WithInstruction sets the change update-todo applies to the TODO files.
func WithInstruction(instruction string) Option {
	return func(o *buildOptions) {
		o.instruction = instruction
	}
}

// WithDescription sets the task description init creates a workspace for.
func WithDescription(description string) Option {
	return func(o *buildOptions) {
		o.description = description
	}
}

// Names returns the built-in workflow names.
func (c *Catalog) Names() []string {
	return []string{Init, Execute, Review, CreatePR, UpdateTodo}
}

// Build returns the plan of the named workflow for workspace.
func (c *Catalog) Build(name, workspace string, opts ...Option) (Plan, error) {
	o := buildOptions{draft: true}
	for _, opt := range opts {
		opt(&o)
	}

	switch name {
	case Init:
		return c.Init(workspace, o.description)
	case Execute:
		return c.Execute(workspace)
	case Review:
		return c.Review(workspace)
	case CreatePR:
		return c.CreatePR(workspace, o.draft)
	case UpdateTodo:
		return c.UpdateTodo(workspace, o.instruction)
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownWorkflow, name)
}

// WorkspacePath returns the directory of a workspace.
func (c *Catalog) WorkspacePath(workspace string) (string, error) {
	name := strings.TrimSpace(workspace)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkspace, workspace)
	}
	return filepath.Join(c.root, name), nil
}

// workspaceRepos resolves a workspace and lists its repositories.
func (c *Catalog) workspaceRepos(workspace string) (string, []Repo, error) {
	wsPath, err := c.WorkspacePath(workspace)
	if err != nil {
		return "", nil, err
	}
	repos, err := ListRepos(wsPath)
	if err != nil {
		return "", nil, err
	}
	if len(repos) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrNoRepos, workspace)
	}
	return wsPath, repos, nil
}

// Execute runs one executor task per repository, all in parallel.
func (c *Catalog) Execute(workspace string) (Plan, error) {
	wsPath, repos, err := c.workspaceRepos(workspace)
	if err != nil {
		return Plan{}, err
	}
	readme := readOptional(filepath.Join(wsPath, "README.md"))

	children := make([]pipeline.GroupChild, 0, len(repos))
	for _, repo := range repos {
		prompt, err := RenderExecutorPrompt(ExecutorData{
			Workspace: workspace,
			Repo:      repo,
			Readme:    readme,
			Todo:      readOptional(filepath.Join(wsPath, "TODO-"+repo.Name+".md")),
		})
		if err != nil {
			return Plan{}, err
		}
		children = append(children, pipeline.GroupChild{
			Label:   repo.Name,
			Prompt:  prompt,
			Options: agent.Options{Cwd: repo.Worktree},
		})
	}

	return Plan{
		Type:      Execute,
		Workspace: workspace,
		Phases:    []pipeline.Phase{pipeline.GroupPhase{Children: children}},
	}, nil
}

// Review reviews every repository and verifies its TODO file in parallel,
// then collects the reports into a summary. Reports are written to a fresh
// artifacts/reviews/<timestamp> directory.
func (c *Catalog) Review(workspace string) (Plan, error) {
	wsPath, repos, err := c.workspaceRepos(workspace)
	if err != nil {
		return Plan{}, err
	}
	readme := readOptional(filepath.Join(wsPath, "README.md"))

	timestamp := c.now().Format(ReviewTimestampFormat)
	reviewDir := filepath.Join(wsPath, "artifacts", "reviews", timestamp)
	if err := os.MkdirAll(reviewDir, 0755); err != nil {
		return Plan{}, fmt.Errorf("failed to create review directory: %w", err)
	}

	var children []pipeline.GroupChild
	for _, repo := range repos {
		stem := reportStem(repo)

		review, err := RenderReviewerPrompt(ReviewerData{
			Workspace:  workspace,
			Repo:       repo,
			Readme:     readme,
			Timestamp:  timestamp,
			OutputFile: filepath.Join(reviewDir, "REVIEW-"+stem+".md"),
		})
		if err != nil {
			return Plan{}, err
		}
		verify, err := RenderVerifierPrompt(VerifierData{
			Workspace:  workspace,
			Repo:       repo,
			Todo:       readOptional(filepath.Join(wsPath, "TODO-"+repo.Name+".md")),
			Timestamp:  timestamp,
			OutputFile: filepath.Join(reviewDir, "VERIFY-"+stem+".md"),
		})
		if err != nil {
			return Plan{}, err
		}

		opts := agent.Options{Cwd: repo.Worktree}
		children = append(children,
			pipeline.GroupChild{Label: "review-" + repo.Name, Prompt: review, Options: opts},
			pipeline.GroupChild{Label: "verify-" + repo.Name, Prompt: verify, Options: opts},
		)
	}

	collect := func(ctx context.Context, pc *pipeline.PhaseContext) (bool, error) {
		reviews, verifies, err := listReports(reviewDir)
		if err != nil {
			return false, err
		}
		pc.EmitStatus(fmt.Sprintf("Collecting %d reviews and %d verifications", len(reviews), len(verifies)))

		prompt, err := RenderCollectorPrompt(CollectorData{
			Workspace:   workspace,
			Timestamp:   timestamp,
			ReviewDir:   reviewDir,
			ReviewFiles: reviews,
			VerifyFiles: verifies,
		})
		if err != nil {
			return false, err
		}
		return pc.RunChild(ctx, "Collect reviews", prompt, agent.Options{Cwd: wsPath}), nil
	}

	return Plan{
		Type:      Review,
		Workspace: workspace,
		Phases: []pipeline.Phase{
			pipeline.GroupPhase{Children: children},
			pipeline.FunctionPhase{Label: "Collect review results", Fn: collect},
		},
	}, nil
}

// CreatePR opens or updates one pull request per repository, all in
// parallel.
func (c *Catalog) CreatePR(workspace string, draft bool) (Plan, error) {
	wsPath, repos, err := c.workspaceRepos(workspace)
	if err != nil {
		return Plan{}, err
	}
	readme := readOptional(filepath.Join(wsPath, "README.md"))

	children := make([]pipeline.GroupChild, 0, len(repos))
	for _, repo := range repos {
		prompt, err := RenderPRCreatorPrompt(PRCreatorData{
			Workspace: workspace,
			Repo:      repo,
			Readme:    readme,
			Draft:     draft,
		})
		if err != nil {
			return Plan{}, err
		}
		children = append(children, pipeline.GroupChild{
			Label:   repo.Name,
			Prompt:  prompt,
			Options: agent.Options{Cwd: repo.Worktree},
		})
	}

	return Plan{
		Type:      CreatePR,
		Workspace: workspace,
		Phases:    []pipeline.Phase{pipeline.GroupPhase{Children: children}},
	}, nil
}

// UpdateTodo runs the workspace-update-todo command with instruction in the
// workspace directory.
func (c *Catalog) UpdateTodo(workspace, instruction string) (Plan, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return Plan{}, ErrMissingInstruction
	}
	wsPath, err := c.WorkspacePath(workspace)
	if err != nil {
		return Plan{}, err
	}
	if fi, err := os.Stat(wsPath); err != nil || !fi.IsDir() {
		return Plan{}, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, workspace)
	}

	return Plan{
		Type:      UpdateTodo,
		Workspace: workspace,
		Phases: []pipeline.Phase{pipeline.SinglePhase{
			Label:   "Update TODO",
			Prompt:  fmt.Sprintf("/workspace-update-todo %s %s", workspace, instruction),
			Options: agent.Options{Cwd: wsPath},
		}},
	}, nil
}

// reportStem names a repository's report files: the owner path joined with
// underscores, then the repository name.
func reportStem(repo Repo) string {
	owner := strings.ReplaceAll(path.Dir(repo.Path), "/", "_")
	if owner == "." || owner == "" {
		owner = "local"
	}
	return owner + "_" + repo.Name
}

// listReports returns the REVIEW-* and VERIFY-* files in dir.
func listReports(dir string) (reviews, verifies []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read review directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch name := e.Name(); {
		case strings.HasPrefix(name, "REVIEW-"):
			reviews = append(reviews, filepath.Join(dir, name))
		case strings.HasPrefix(name, "VERIFY-"):
			verifies = append(verifies, filepath.Join(dir, name))
		}
	}
	return reviews, verifies, nil
}

// readOptional returns the file's content, or "" if it cannot be read.
func readOptional(name string) string {
	data, err := os.ReadFile(name)
	if err != nil {
		return ""
	}
	return string(data)
}

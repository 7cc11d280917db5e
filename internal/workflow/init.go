package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/pipeline"
)

const maxSlugLength = 50

// taskTypes are the task types a workspace can be created for.
var taskTypes = map[string]bool{
	"feature":       true,
	"bugfix":        true,
	"research":      true,
	"investigation": true,
}

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// Analysis is the task metadata the analysis task writes as JSON.
type Analysis struct {
	TaskType string `json:"taskType"`
	Slug     string `json:"slug"`
	TicketID string `json:"ticketId"`
}

// Slugify lowercases s and reduces it to letters, digits and single hyphens,
// at most 50 characters long. An empty result becomes "workspace".
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(dashRuns.ReplaceAllString(slug, "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "workspace"
	}
	return slug
}

// readAnalysis reads the analysis file, falling back to a feature workspace
// named after the description when the file is missing or malformed.
func readAnalysis(name, description string) Analysis {
	fallback := Analysis{TaskType: "feature", Slug: Slugify(description)}

	data, err := os.ReadFile(name)
	if err != nil {
		return fallback
	}
	cleaned := strings.TrimSpace(string(data))
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "```json"), "```")
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))

	var a Analysis
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return fallback
	}
	if !taskTypes[a.TaskType] {
		a.TaskType = fallback.TaskType
	}
	if strings.TrimSpace(a.Slug) == "" {
		a.Slug = fallback.Slug
	} else {
		a.Slug = Slugify(a.Slug)
	}
	if a.TicketID != "" {
		a.TicketID = Slugify(a.TicketID)
	}
	return a
}

// dirName names a new workspace: type, optional ticket, slug and date.
func (a Analysis) dirName(date string) string {
	parts := []string{a.TaskType}
	if a.TicketID != "" {
		parts = append(parts, a.TicketID)
		a.Slug = strings.Trim(strings.ReplaceAll("-"+a.Slug+"-", "-"+a.TicketID+"-", "-"), "-")
		if a.Slug == "" {
			a.Slug = "workspace"
		}
	}
	return strings.Join(append(parts, a.Slug, date), "-")
}

// createWorkspace lays out a new workspace directory with its README. It
// fails if the directory already exists.
func createWorkspace(wsPath string, data ReadmeData) error {
	if err := os.MkdirAll(filepath.Dir(wsPath), 0755); err != nil {
		return fmt.Errorf("failed to create workspace root: %w", err)
	}
	if err := os.Mkdir(wsPath, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrWorkspaceExists, filepath.Base(wsPath))
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	for _, dir := range []string{"tmp", "artifacts"} {
		if err := os.Mkdir(filepath.Join(wsPath, dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	readme, err := RenderReadme(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(wsPath, "README.md"), []byte(readme), 0644); err != nil {
		return fmt.Errorf("failed to write README: %w", err)
	}
	return nil
}

// initState is shared by the phases of one init pipeline. Phases run one
// after another, so it needs no lock.
type initState struct {
	name string
	path string
}

// Init creates a workspace from a task description: an agent analyzes the
// description, the workspace directory and README are created, then an agent
// fills in the README. An explicit workspace name overrides the one derived
// from the analysis. Repository checkouts are left to the agents.
func (c *Catalog) Init(workspace, description string) (Plan, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Plan{}, ErrMissingDescription
	}
	if workspace != "" {
		if _, err := c.WorkspacePath(workspace); err != nil {
			return Plan{}, err
		}
	}

	now := c.now()
	analysisFile := filepath.Join(os.TempDir(), fmt.Sprintf("agentops-analysis-%d.json", now.UnixNano()))
	state := &initState{}

	analyze := func(ctx context.Context, pc *pipeline.PhaseContext) (bool, error) {
		prompt, err := RenderAnalysisPrompt(AnalysisData{Description: description, OutputFile: analysisFile})
		if err != nil {
			return false, err
		}
		return pc.RunChild(ctx, "Analyze task", prompt, agent.Options{}), nil
	}

	setup := func(_ context.Context, pc *pipeline.PhaseContext) (bool, error) {
		a := readAnalysis(analysisFile, description)
		_ = os.Remove(analysisFile)

		detected := fmt.Sprintf("Detected: type=%s, slug=%s", a.TaskType, a.Slug)
		if a.TicketID != "" {
			detected += ", ticket=" + a.TicketID
		}
		pc.EmitStatus(detected)

		state.name = workspace
		if state.name == "" {
			state.name = a.dirName(now.Format("20060102"))
		}
		wsPath, err := c.WorkspacePath(state.name)
		if err != nil {
			return false, err
		}

		pc.EmitStatus("Creating workspace directory...")
		err = createWorkspace(wsPath, ReadmeData{
			Description: description,
			TaskType:    a.TaskType,
			TicketID:    a.TicketID,
			Date:        now.Format("2006-01-02"),
		})
		if err != nil {
			return false, err
		}
		state.path = wsPath
		pc.SetWorkspace(state.name)
		pc.EmitResult(fmt.Sprintf("Workspace **%s** created.", state.name))
		return true, nil
	}

	fill := func(ctx context.Context, pc *pipeline.PhaseContext) (bool, error) {
		readme, err := os.ReadFile(filepath.Join(state.path, "README.md"))
		if err != nil {
			return false, fmt.Errorf("failed to read README: %w", err)
		}
		prompt, err := RenderInitReadmePrompt(InitReadmeData{
			Workspace:     state.name,
			WorkspacePath: state.path,
			Description:   description,
			Readme:        string(readme),
		})
		if err != nil {
			return false, err
		}
		return pc.RunChild(ctx, "Fill README", prompt, agent.Options{Cwd: state.path}), nil
	}

	return Plan{
		Type:      Init,
		Workspace: workspace,
		Phases: []pipeline.Phase{
			pipeline.FunctionPhase{Label: "Analyze task description", Fn: analyze},
			pipeline.FunctionPhase{Label: "Setup workspace", Fn: setup},
			pipeline.FunctionPhase{Label: "Fill in README", Fn: fill},
		},
	}, nil
}

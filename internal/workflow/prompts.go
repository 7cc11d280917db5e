package workflow

import (
	"bytes"
	"fmt"
	"text/template"
)

// ExecutorData holds data for rendering an executor prompt
type ExecutorData struct {
	Workspace string
	Repo      Repo
	Readme    string
	Todo      string
}

// ReviewerData holds data for rendering a code review prompt
type ReviewerData struct {
	Workspace  string
	Repo       Repo
	Readme     string
	Timestamp  string
	OutputFile string
}

// VerifierData holds data for rendering a TODO verification prompt
type VerifierData struct {
	Workspace  string
	Repo       Repo
	Todo       string
	Timestamp  string
	OutputFile string
}

// CollectorData holds data for rendering the review collector prompt
type CollectorData struct {
	Workspace   string
	Timestamp   string
	ReviewDir   string
	ReviewFiles []string
	VerifyFiles []string
}

// PRCreatorData holds data for rendering a pull request prompt
type PRCreatorData struct {
	Workspace string
	Repo      Repo
	Readme    string
	Draft     bool
}

// AnalysisData holds data for rendering the task analysis prompt
type AnalysisData struct {
	Description string
	OutputFile  string
}

// ReadmeData holds the fields of a new workspace README
type ReadmeData struct {
	Description string
	TaskType    string
	TicketID    string
	Date        string
}

// InitReadmeData holds data for rendering the README fill-in prompt
type InitReadmeData struct {
	Workspace     string
	WorkspacePath string
	Description   string
	Readme        string
}

const executorTemplate = `# Task: Execute TODO items for {{.Repo.Name}}

## Workspace: {{.Workspace}}
## Repository: {{.Repo.Path}}
## Worktree: {{.Repo.Worktree}}

## Workspace README

{{.Readme}}

## TODO File (TODO-{{.Repo.Name}}.md)

{{.Todo}}

## Instructions

Complete every uncompleted item of the TODO file above, top to bottom.

- Read the repository documentation first (README.md, CLAUDE.md, CONTRIBUTING.md).
- Re-read the TODO file before each update; mark finished items ` + "`- [x]`" + ` and blocked items ` + "`- [!]`" + ` with a note.
- Make small, focused commits and run the tests and linter after each change.
- Work only inside {{.Repo.Worktree}}. Never use ` + "`cd`" + `; pass paths or ` + "`-C`" + ` flags instead.
`

const reviewerTemplate = `# Task: Review changes in {{.Repo.Name}}

## Workspace: {{.Workspace}}
## Repository: {{.Repo.Path}}
## Worktree: {{.Repo.Worktree}}
## Review Timestamp: {{.Timestamp}}

## Workspace README

{{.Readme}}

## Instructions

Review the changes on the current branch against its base branch. Classify each finding
as critical, warning or suggestion, cite file and line, and finish with an overall assessment.

Write the review to: {{.OutputFile}}
`

const verifierTemplate = `# Task: Verify TODO completion for {{.Repo.Name}}

## Workspace: {{.Workspace}}
## Repository: {{.Repo.Path}}
## Worktree: {{.Repo.Worktree}}
## Review Timestamp: {{.Timestamp}}

## TODO File (TODO-{{.Repo.Name}}.md)

{{if .Todo}}{{.Todo}}{{else}}(no TODO file){{end}}

## Instructions

For every item marked complete, confirm the change exists in the worktree. Report each item
as verified, unverified, partial or incomplete with evidence.

Write the report to: {{.OutputFile}}
`

const collectorTemplate = `# Task: Collect review results and create summary

## Workspace: {{.Workspace}}
## Review Timestamp: {{.Timestamp}}
## Review Directory: {{.ReviewDir}}

## Review Files

### Code Reviews
{{range .ReviewFiles}}- {{.}}
{{else}}(none)
{{end}}
### TODO Verifications
{{range .VerifyFiles}}- {{.}}
{{else}}(none)
{{end}}
## Instructions

Read every file listed above, total the critical issues, warnings and suggestions, and the
verified and incomplete TODO items per repository.

Write the summary to: {{.ReviewDir}}/SUMMARY.md
`

const prCreatorTemplate = `# Task: Create or update PR for {{.Repo.Name}}

## Workspace: {{.Workspace}}
## Repository: {{.Repo.Path}}
## Worktree: {{.Repo.Worktree}}
## Draft: {{.Draft}}

## Workspace README

{{.Readme}}

## Instructions

Create a pull request for the current branch, or update the open one.

- Detect the base branch and summarize every commit on the branch, not just the latest.
- Follow .github/pull_request_template.md if the repository has one. Keep the title under 70 characters.
- Push with ` + "`git -C {{.Repo.Worktree}} push -u origin <branch>`" + `; never use ` + "`cd`" + `.
- {{if .Draft}}Create the PR with ` + "`gh pr create --draft`" + `.{{else}}Create the PR ready for review, without ` + "`--draft`" + `.{{end}}
- For an existing PR, rewrite only the sections describing code changes and update it with ` + "`gh pr edit`" + `.
`

const analysisTemplate = `Analyze the task description below and extract structured metadata.

Write ONLY a JSON object to {{.OutputFile}}, no explanation and no markdown fences:

{
  "taskType": "feature" | "bugfix" | "research" | "investigation",
  "slug": "short-english-slug (2-5 lowercase words, hyphen-separated)",
  "ticketId": "ticket ID if found (e.g. PROJ-123, #456), or empty string"
}

- taskType: infer from context; default to "feature".
- slug: a concise directory name. Do not include the ticket ID.
- ticketId: Jira, GitHub or Linear references. Empty string if none.

## Task description

{{.Description}}
`

const readmeTemplate = `# Task: {{.Description}}

## Overview

**Task Type**: {{.TaskType}}
**Ticket ID**: {{if .TicketID}}{{.TicketID}}{{else}}-{{end}}
**Date**: {{.Date}}

## Workspace Structure

| Path | Description |
|------|-------------|
| ` + "`README.md`" + ` | Task overview, objectives, requirements and context. |
| ` + "`TODO-{repo}.md`" + ` | Checklist of tasks for each repository. |
| ` + "`artifacts/`" + ` | Outputs worth keeping: research notes, reviews. |
| ` + "`tmp/`" + ` | Scratch space for agents. |
| ` + "`{org}/{repo}/`" + ` | Repository worktrees. |

## Repositories

<!-- Repositories this task touches -->

## Objective

<!-- What needs to be accomplished -->

## Context

<!-- Background information -->

## Requirements

<!-- Requirements and acceptance criteria -->

## Related Resources

<!-- Links to issues, documentation, etc. -->
`

const initReadmeTemplate = `# Task: Fill in workspace README

## Workspace: {{.Workspace}}
## Workspace Path: {{.WorkspacePath}}

## User's Description

{{.Description}}

## Current README.md

{{.Readme}}

## Instructions

Edit {{.WorkspacePath}}/README.md and fill in the Repositories, Objective, Context,
Requirements and Related Resources sections from the description above. Keep the template
structure. If the description is a ticket URL, fetch it and use its details.

If the target repositories cannot be determined from the description, use AskUserQuestion
to ask which repositories to work on. Ask about anything else that is unclear the same way.
`

var (
	executorTmpl  = template.Must(template.New("executor").Parse(executorTemplate))
	reviewerTmpl  = template.Must(template.New("reviewer").Parse(reviewerTemplate))
	verifierTmpl  = template.Must(template.New("verifier").Parse(verifierTemplate))
	collectorTmpl = template.Must(template.New("collector").Parse(collectorTemplate))
	prCreatorTmpl = template.Must(template.New("pr-creator").Parse(prCreatorTemplate))
	analysisTmpl  = template.Must(template.New("analysis").Parse(analysisTemplate))
	readmeTmpl    = template.Must(template.New("readme").Parse(readmeTemplate))
	initTmpl      = template.Must(template.New("init-readme").Parse(initReadmeTemplate))
)

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// RenderExecutorPrompt renders the prompt for one executor task
func RenderExecutorPrompt(data ExecutorData) (string, error) {
	return render(executorTmpl, data)
}

// RenderReviewerPrompt renders the prompt for one code review task
func RenderReviewerPrompt(data ReviewerData) (string, error) {
	return render(reviewerTmpl, data)
}

// RenderVerifierPrompt renders the prompt for one TODO verification task
func RenderVerifierPrompt(data VerifierData) (string, error) {
	return render(verifierTmpl, data)
}

// RenderCollectorPrompt renders the prompt for the review collector
func RenderCollectorPrompt(data CollectorData) (string, error) {
	return render(collectorTmpl, data)
}

// RenderPRCreatorPrompt renders the prompt for one pull request task
func RenderPRCreatorPrompt(data PRCreatorData) (string, error) {
	return render(prCreatorTmpl, data)
}

// RenderAnalysisPrompt renders the prompt that classifies a task description
func RenderAnalysisPrompt(data AnalysisData) (string, error) {
	return render(analysisTmpl, data)
}

// RenderReadme renders the README of a new workspace
func RenderReadme(data ReadmeData) (string, error) {
	return render(readmeTmpl, data)
}

// RenderInitReadmePrompt renders the prompt that fills in a new README
func RenderInitReadmePrompt(data InitReadmeData) (string, error) {
	return render(initTmpl, data)
}

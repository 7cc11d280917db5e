package workflow

import "errors"

var (
	// ErrUnknownWorkflow is returned for a workflow name that is not built in.
	ErrUnknownWorkflow = errors.New("unknown workflow")
	// ErrInvalidWorkspace is returned for workspace names that are empty or
	// escape the workspace root.
	ErrInvalidWorkspace = errors.New("invalid workspace name")
	// ErrWorkspaceNotFound is returned when the workspace directory is missing.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrNoRepos is returned when a workspace holds no repositories.
	ErrNoRepos = errors.New("no repositories found in workspace")
	// ErrWorkspaceExists is returned when init would overwrite a workspace.
	ErrWorkspaceExists = errors.New("workspace already exists")
	// ErrMissingInstruction is returned by update-todo without an instruction.
	ErrMissingInstruction = errors.New("instruction is required")
	// ErrMissingDescription is returned by init without a task description.
	ErrMissingDescription = errors.New("description is required")
)

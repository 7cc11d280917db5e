// Package relay serves the permission prompt tool the Claude CLI consults
// before running a tool. Questions asked through AskUserQuestion are routed
// to the owning task's session and answered by the operator; every other
// tool is allowed.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/logging"
)

const (
	// ServerName is the MCP server name the CLI sees.
	ServerName = "agentops"
	// ToolName is the permission prompt tool exposed by the relay.
	ToolName = "approve"
	// PermissionPromptTool is the fully qualified tool name passed to the CLI.
	PermissionPromptTool = "mcp__" + ServerName + "__" + ToolName
	// TaskHeader carries the task ID on every relay request.
	TaskHeader = "X-Agentops-Task"
)

type taskKey struct{}

func withTask(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskKey{}, id)
}

func taskFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskKey{}).(string)
	return id
}

type registration struct {
	ctx     context.Context
	session agent.Session
}

// Relay routes permission prompts to registered task sessions.
type Relay struct {
	server *mcpserver.MCPServer
	logger *logging.Logger

	mu    sync.RWMutex
	tasks map[string]registration
}

// New creates a Relay.
func New(version string, logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.NopLogger()
	}
	r := &Relay{
		logger: logger,
		tasks:  make(map[string]registration),
	}
	r.server = mcpserver.NewMCPServer(
		ServerName,
		version,
		mcpserver.WithToolCapabilities(false),
	)
	r.server.AddTool(
		mcplib.NewTool(ToolName,
			mcplib.WithDescription("Decide whether the agent may run a tool. Questions for the operator are forwarded and answered."),
			mcplib.WithString("tool_name", mcplib.Description("Name of the tool the agent wants to run"), mcplib.Required()),
			mcplib.WithObject("input", mcplib.Description("Input the tool would be called with")),
			mcplib.WithString("tool_use_id", mcplib.Description("ID of the pending tool use")),
		),
		r.handleApprove,
	)
	return r
}

// Handler returns the streamable HTTP transport for the relay. Requests
// must carry TaskHeader.
func (r *Relay) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(r.server,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, req *http.Request) context.Context {
			return withTask(ctx, req.Header.Get(TaskHeader))
		}),
	)
}

// Register routes prompts for taskID to s until the returned function is
// called. ctx bounds how long a question may wait.
func (r *Relay) Register(ctx context.Context, taskID string, s agent.Session) (unregister func()) {
	r.mu.Lock()
	r.tasks[taskID] = registration{ctx: ctx, session: s}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.tasks, taskID)
		r.mu.Unlock()
	}
}

func (r *Relay) lookup(taskID string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tasks[taskID]
	return reg, ok
}

// Decision is the verdict returned to the CLI.
type Decision struct {
	Behavior     string         `json:"behavior"`
	UpdatedInput map[string]any `json:"updatedInput,omitempty"`
	Message      string         `json:"message,omitempty"`
}

func (r *Relay) handleApprove(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	taskID := taskFromContext(ctx)
	toolName := request.GetString("tool_name", "")
	toolUseID := request.GetString("tool_use_id", "")
	input, _ := request.GetArguments()["input"].(map[string]any)
	if input == nil {
		input = map[string]any{}
	}

	reg, ok := r.lookup(taskID)
	if !ok {
		r.logger.Warn("permission prompt for unknown task", "task_id", taskID, "tool", toolName)
		return decisionResult(Decision{Behavior: "deny", Message: fmt.Sprintf("unknown task %q", taskID)}), nil
	}
	if toolName != agent.AskUserQuestionTool {
		return decisionResult(Decision{Behavior: "allow", UpdatedInput: input}), nil
	}
	if toolUseID == "" {
		return decisionResult(Decision{Behavior: "deny", Message: "question has no tool_use_id"}), nil
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return decisionResult(Decision{Behavior: "deny", Message: err.Error()}), nil
	}
	log := r.logger.WithChild(taskID).With("question_id", toolUseID)
	log.Info("forwarding question to operator")

	answers, err := reg.session.Ask(reg.ctx, toolUseID, raw)
	if err != nil {
		log.Warn("question was not answered", "error", err)
		return decisionResult(Decision{Behavior: "deny", Message: "question was not answered"}), nil
	}

	updated := make(map[string]any, len(input)+1)
	for k, v := range input {
		updated[k] = v
	}
	updated["answers"] = answers
	return decisionResult(Decision{Behavior: "allow", UpdatedInput: updated}), nil
}

func decisionResult(d Decision) *mcplib.CallToolResult {
	data, _ := json.Marshal(d)
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

// MCPConfig renders the --mcp-config document pointing the CLI at the relay
// served at url on behalf of taskID.
func MCPConfig(url, taskID string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"mcpServers": map[string]any{
			ServerName: map[string]any{
				"type":    "http",
				"url":     url,
				"headers": map[string]string{TaskHeader: taskID},
			},
		},
	})
}

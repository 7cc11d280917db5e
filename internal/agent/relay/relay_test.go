package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Iron-Ham/agentops/internal/agent"
)

type fakeSession struct {
	answers map[string]string
	err     error
	asked   []string
	inputs  []json.RawMessage
}

func (f *fakeSession) Emit(json.RawMessage) {}

func (f *fakeSession) Ask(_ context.Context, id string, input json.RawMessage) (map[string]string, error) {
	f.asked = append(f.asked, id)
	f.inputs = append(f.inputs, input)
	return f.answers, f.err
}

func approveRequest(args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: ToolName, Arguments: args},
	}
}

func decode(t *testing.T, res *mcplib.CallToolResult) Decision {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	var d Decision
	if err := json.Unmarshal([]byte(tc.Text), &d); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	return d
}

func TestHandleApprove(t *testing.T) {
	t.Run("other tools are allowed unchanged", func(t *testing.T) {
		r := New("test", nil)
		s := &fakeSession{}
		defer r.Register(context.Background(), "task-1", s)()

		res, err := r.handleApprove(withTask(context.Background(), "task-1"), approveRequest(map[string]any{
			"tool_name": "Bash",
			"input":     map[string]any{"command": "ls"},
		}))
		if err != nil {
			t.Fatal(err)
		}
		d := decode(t, res)
		if d.Behavior != "allow" || d.UpdatedInput["command"] != "ls" {
			t.Errorf("decision = %+v", d)
		}
		if len(s.asked) != 0 {
			t.Error("session should not be asked for ordinary tools")
		}
	})

	t.Run("questions are forwarded with answers merged", func(t *testing.T) {
		r := New("test", nil)
		s := &fakeSession{answers: map[string]string{"Which?": "A"}}
		defer r.Register(context.Background(), "task-1", s)()

		input := map[string]any{"questions": []any{map[string]any{"question": "Which?"}}}
		res, err := r.handleApprove(withTask(context.Background(), "task-1"), approveRequest(map[string]any{
			"tool_name":   agent.AskUserQuestionTool,
			"tool_use_id": "toolu_1",
			"input":       input,
		}))
		if err != nil {
			t.Fatal(err)
		}
		d := decode(t, res)
		if d.Behavior != "allow" {
			t.Fatalf("behavior = %s", d.Behavior)
		}
		answers, _ := d.UpdatedInput["answers"].(map[string]any)
		if answers["Which?"] != "A" {
			t.Errorf("answers = %v", d.UpdatedInput["answers"])
		}
		if _, ok := d.UpdatedInput["questions"]; !ok {
			t.Error("original questions should be preserved")
		}
		if len(s.asked) != 1 || s.asked[0] != "toolu_1" {
			t.Errorf("asked = %v", s.asked)
		}
		if qs := agent.AskQuestions(s.inputs[0]); len(qs) != 1 || qs[0].Question != "Which?" {
			t.Errorf("forwarded input = %s", s.inputs[0])
		}
	})

	t.Run("unanswered question is denied", func(t *testing.T) {
		r := New("test", nil)
		s := &fakeSession{err: errors.New("aborted")}
		defer r.Register(context.Background(), "task-1", s)()

		res, _ := r.handleApprove(withTask(context.Background(), "task-1"), approveRequest(map[string]any{
			"tool_name":   agent.AskUserQuestionTool,
			"tool_use_id": "toolu_1",
		}))
		if d := decode(t, res); d.Behavior != "deny" {
			t.Errorf("decision = %+v", d)
		}
	})

	t.Run("unknown task is denied", func(t *testing.T) {
		r := New("test", nil)
		res, _ := r.handleApprove(withTask(context.Background(), "nope"), approveRequest(map[string]any{
			"tool_name": "Bash",
		}))
		if d := decode(t, res); d.Behavior != "deny" {
			t.Errorf("decision = %+v", d)
		}
	})

	t.Run("unregister removes the task", func(t *testing.T) {
		r := New("test", nil)
		unregister := r.Register(context.Background(), "task-1", &fakeSession{})
		unregister()
		if _, ok := r.lookup("task-1"); ok {
			t.Error("task still registered")
		}
	})
}

func TestMCPConfig(t *testing.T) {
	raw, err := MCPConfig("http://127.0.0.1:8080/mcp", "op-1-phase-0")
	if err != nil {
		t.Fatal(err)
	}
	var cfg struct {
		MCPServers map[string]struct {
			Type    string            `json:"type"`
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		} `json:"mcpServers"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatal(err)
	}
	srv, ok := cfg.MCPServers[ServerName]
	if !ok {
		t.Fatalf("missing %s server: %s", ServerName, raw)
	}
	if srv.Type != "http" || srv.URL != "http://127.0.0.1:8080/mcp" || srv.Headers[TaskHeader] != "op-1-phase-0" {
		t.Errorf("server = %+v", srv)
	}
	if PermissionPromptTool != "mcp__agentops__approve" {
		t.Errorf("PermissionPromptTool = %s", PermissionPromptTool)
	}
}

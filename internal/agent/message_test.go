package agent

import (
	"testing"
)

func TestParseMessage(t *testing.T) {
	t.Run("not JSON is raw", func(t *testing.T) {
		entries := ParseMessage("plain text")
		if len(entries) != 1 || entries[0].Kind != EntryRaw || entries[0].Content != "plain text" {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})

	t.Run("assistant blocks", func(t *testing.T) {
		raw := `{"type":"assistant","parent_tool_use_id":"tu-parent","message":{"content":[
			{"type":"thinking","thinking":"hmm"},
			{"type":"text","text":"hello"},
			{"type":"tool_use","id":"tu1","name":"Bash","input":{"command":"ls -la"}},
			{"type":"tool_use","id":"tu2","name":"AskUserQuestion","input":{"questions":[{"question":"Pick one","options":[{"label":"A","description":"first"}],"multiSelect":true}]}}
		]}}`
		entries := ParseMessage(raw)
		if len(entries) != 4 {
			t.Fatalf("expected 4 entries, got %d: %+v", len(entries), entries)
		}
		if entries[0].Kind != EntryThinking || entries[0].Content != "hmm" {
			t.Errorf("entry 0 = %+v", entries[0])
		}
		if entries[1].Kind != EntryText || entries[1].ParentToolUseID != "tu-parent" {
			t.Errorf("entry 1 = %+v", entries[1])
		}
		if entries[2].Kind != EntryToolCall || entries[2].Summary != "$ ls -la" || entries[2].ToolID != "tu1" {
			t.Errorf("entry 2 = %+v", entries[2])
		}
		ask := entries[3]
		if ask.Kind != EntryAsk || ask.ToolID != "tu2" || len(ask.Questions) != 1 {
			t.Fatalf("entry 3 = %+v", ask)
		}
		if q := ask.Questions[0]; q.Question != "Pick one" || !q.MultiSelect || q.Options[0].Label != "A" {
			t.Errorf("question = %+v", q)
		}
	})

	t.Run("assistant api error", func(t *testing.T) {
		entries := ParseMessage(`{"type":"assistant","error":"authentication_failed","message":{"content":[]}}`)
		if len(entries) != 1 || entries[0].Kind != EntryError {
			t.Fatalf("unexpected entries: %+v", entries)
		}
	})

	t.Run("tool results", func(t *testing.T) {
		raw := `{"type":"user","message":{"content":[
			{"type":"tool_result","tool_use_id":"tu1","content":"ok","is_error":false},
			{"type":"tool_result","tool_use_id":"tu2","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}],"is_error":true}
		]}}`
		entries := ParseMessage(raw)
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Content != "ok" || entries[0].IsError {
			t.Errorf("entry 0 = %+v", entries[0])
		}
		if entries[1].Content != "a\nb" || !entries[1].IsError {
			t.Errorf("entry 1 = %+v", entries[1])
		}
	})

	t.Run("result", func(t *testing.T) {
		entries := ParseMessage(`{"type":"result","subtype":"success","result":"","total_cost_usd":0.01234,"duration_ms":2500}`)
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		e := entries[0]
		if e.Content != "Completed" || e.Cost != "$0.0123" || e.Duration != "2.5s" {
			t.Errorf("result entry = %+v", e)
		}
	})

	t.Run("system", func(t *testing.T) {
		entries := ParseMessage(`{"type":"system","subtype":"init","model":"opus","session_id":"s1"}`)
		if len(entries) != 1 || entries[0].Content != "Session initialized (model: opus, session: s1)" {
			t.Errorf("init entry = %+v", entries)
		}

		entries = ParseMessage(`{"type":"system","subtype":"task_notification","status":"completed","summary":"done","usage":{"duration_ms":1500,"tool_uses":3}}`)
		if len(entries) != 1 || entries[0].Content != "Task completed: done (1.5s, 3 tools)" {
			t.Errorf("notification entry = %+v", entries)
		}

		if entries := ParseMessage(`{"type":"system","subtype":"hook_started"}`); len(entries) != 0 {
			t.Errorf("other system subtypes should be skipped, got %+v", entries)
		}
	})

	t.Run("auth status", func(t *testing.T) {
		if entries := ParseMessage(`{"type":"auth_status"}`); len(entries) != 0 {
			t.Errorf("auth status without error should be empty, got %+v", entries)
		}
		entries := ParseMessage(`{"type":"auth_status","error":"expired"}`)
		if len(entries) != 1 || entries[0].Kind != EntryError {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})
}

func TestComposedMessagesParse(t *testing.T) {
	if e := ParseMessage(string(AssistantText("hi"))); len(e) != 1 || e[0].Content != "hi" {
		t.Errorf("AssistantText parsed as %+v", e)
	}

	input := map[string]any{"questions": []any{map[string]any{"question": "Q?"}}}
	e := ParseMessage(string(AssistantToolUse("tu", AskUserQuestionTool, input)))
	if len(e) != 1 || e[0].Kind != EntryAsk || e[0].Questions[0].Options == nil {
		t.Errorf("AssistantToolUse parsed as %+v", e)
	}

	e = ParseMessage(string(ResultMessage(ResultSummary{Result: "done", DurationMS: 1000})))
	if len(e) != 1 || e[0].Kind != EntryResult || e[0].Content != "done" {
		t.Errorf("ResultMessage parsed as %+v", e)
	}
}

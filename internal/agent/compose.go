package agent

import (
	"encoding/json"
)

// AssistantText builds an assistant message holding one text block.
func AssistantText(text string) json.RawMessage {
	return mustJSON(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"role":    "assistant",
			"content": []any{map[string]any{"type": "text", "text": text}},
		},
		"parent_tool_use_id": nil,
	})
}

// AssistantToolUse builds an assistant message holding one tool_use block.
func AssistantToolUse(id, name string, input any) json.RawMessage {
	return mustJSON(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"role": "assistant",
			"content": []any{map[string]any{
				"type":  "tool_use",
				"id":    id,
				"name":  name,
				"input": input,
			}},
		},
		"parent_tool_use_id": nil,
	})
}

// ToolResult builds a user message carrying a tool result.
func ToolResult(toolUseID, content string, isError bool) json.RawMessage {
	return mustJSON(map[string]any{
		"type": "user",
		"message": map[string]any{
			"role": "user",
			"content": []any{map[string]any{
				"type":        "tool_result",
				"tool_use_id": toolUseID,
				"content":     content,
				"is_error":    isError,
			}},
		},
		"parent_tool_use_id": nil,
	})
}

// ResultSummary is the final accounting for a task.
type ResultSummary struct {
	Result       string
	IsError      bool
	DurationMS   int64
	TotalCostUSD float64
	NumTurns     int
}

// ResultMessage builds the terminal result message of a task.
func ResultMessage(r ResultSummary) json.RawMessage {
	subtype := "success"
	if r.IsError {
		subtype = "error_during_execution"
	}
	return mustJSON(map[string]any{
		"type":           "result",
		"subtype":        subtype,
		"is_error":       r.IsError,
		"result":         r.Result,
		"duration_ms":    r.DurationMS,
		"total_cost_usd": r.TotalCostUSD,
		"num_turns":      r.NumTurns,
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AskUserQuestionTool is the tool name the agent uses for interactive
// questions.
const AskUserQuestionTool = "AskUserQuestion"

// EntryKind classifies a parsed log entry.
type EntryKind string

const (
	EntryText         EntryKind = "text"
	EntryThinking     EntryKind = "thinking"
	EntryToolCall     EntryKind = "tool_call"
	EntryToolResult   EntryKind = "tool_result"
	EntryAsk          EntryKind = "ask"
	EntryResult       EntryKind = "result"
	EntrySystem       EntryKind = "system"
	EntryError        EntryKind = "error"
	EntryRaw          EntryKind = "raw"
	EntryToolProgress EntryKind = "tool_progress"
)

// QuestionOption is one choice offered by a question.
type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Question is one prompt inside an AskUserQuestion call.
type Question struct {
	Question    string           `json:"question"`
	Header      string           `json:"header,omitempty"`
	Options     []QuestionOption `json:"options"`
	MultiSelect bool             `json:"multiSelect"`
}

// Entry is a displayable unit derived from one agent message.
type Entry struct {
	Kind            EntryKind
	Content         string
	ToolName        string
	ToolID          string
	Summary         string
	IsError         bool
	Questions       []Question
	Cost            string
	Duration        string
	Elapsed         float64
	TaskID          string
	TaskStatus      string
	ParentToolUseID string
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

type wireMessage struct {
	Type            string  `json:"type"`
	Subtype         string  `json:"subtype"`
	Error           string  `json:"error"`
	ParentToolUseID *string `json:"parent_tool_use_id"`
	Message         *struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`

	ToolUseID string  `json:"tool_use_id"`
	ToolName  string  `json:"tool_name"`
	Elapsed   float64 `json:"elapsed_time_seconds"`
	TaskID    string  `json:"task_id"`

	Result       string   `json:"result"`
	IsError      bool     `json:"is_error"`
	Errors       []string `json:"errors"`
	TotalCostUSD *float64 `json:"total_cost_usd"`
	DurationMS   *float64 `json:"duration_ms"`

	Model       string `json:"model"`
	SessionID   string `json:"session_id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Summary     string `json:"summary"`
	Usage       *struct {
		DurationMS float64 `json:"duration_ms"`
		ToolUses   int     `json:"tool_uses"`
	} `json:"usage"`
}

// ParseMessage converts one raw agent message into display entries. Input
// that is not JSON yields a single raw entry; unknown message types yield
// none.
func ParseMessage(raw string) []Entry {
	var msg wireMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return []Entry{{Kind: EntryRaw, Content: raw}}
	}

	parent := ""
	if msg.ParentToolUseID != nil {
		parent = *msg.ParentToolUseID
	}

	switch msg.Type {
	case "auth_status":
		if msg.Error == "" {
			return nil
		}
		return []Entry{{
			Kind:    EntryError,
			Content: fmt.Sprintf("Authentication failed: %s\nRun \"claude login\" in your terminal to re-authenticate.", msg.Error),
		}}
	case "assistant":
		return parseAssistant(msg, parent)
	case "user":
		return parseUser(msg, parent)
	case "tool_progress":
		return []Entry{{
			Kind:            EntryToolProgress,
			ToolID:          msg.ToolUseID,
			ToolName:        msg.ToolName,
			Elapsed:         msg.Elapsed,
			TaskID:          msg.TaskID,
			ParentToolUseID: parent,
		}}
	case "result":
		return parseResult(msg)
	case "system":
		return parseSystem(msg)
	case "tool_use_summary":
		if msg.Summary != "" {
			return []Entry{{Kind: EntryText, Content: msg.Summary}}
		}
	}
	return nil
}

func parseAssistant(msg wireMessage, parent string) []Entry {
	if msg.Message == nil {
		return nil
	}
	var entries []Entry
	if msg.Error != "" {
		hint := ""
		if msg.Error == "authentication_failed" {
			hint = "\nRun \"claude login\" in your terminal to re-authenticate."
		}
		entries = append(entries, Entry{Kind: EntryError, Content: "API error: " + msg.Error + hint, ParentToolUseID: parent})
	}

	var blocks []contentBlock
	if err := json.Unmarshal(msg.Message.Content, &blocks); err != nil {
		return entries
	}
	for _, b := range blocks {
		switch b.Type {
		case "thinking":
			if b.Thinking != "" {
				entries = append(entries, Entry{Kind: EntryThinking, Content: b.Thinking, ParentToolUseID: parent})
			}
		case "text":
			if b.Text != "" {
				entries = append(entries, Entry{Kind: EntryText, Content: b.Text, ParentToolUseID: parent})
			}
		case "tool_use":
			if qs := AskQuestions(b.Input); b.Name == AskUserQuestionTool && len(qs) > 0 {
				entries = append(entries, Entry{Kind: EntryAsk, ToolID: b.ID, Questions: qs, ParentToolUseID: parent})
				continue
			}
			entries = append(entries, Entry{
				Kind:            EntryToolCall,
				ToolName:        b.Name,
				ToolID:          b.ID,
				Summary:         summarizeToolInput(b.Name, b.Input),
				ParentToolUseID: parent,
			})
		}
	}
	return entries
}

func parseUser(msg wireMessage, parent string) []Entry {
	if msg.Message == nil {
		return nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(msg.Message.Content, &blocks); err != nil {
		return nil
	}
	var entries []Entry
	for _, b := range blocks {
		if b.Type != "tool_result" {
			continue
		}
		entries = append(entries, Entry{
			Kind:            EntryToolResult,
			ToolID:          b.ToolUseID,
			Content:         toolResultText(b.Content),
			IsError:         b.IsError,
			ParentToolUseID: parent,
		})
	}
	return entries
}

func toolResultText(content json.RawMessage) string {
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &parts); err != nil {
		return ""
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func parseResult(msg wireMessage) []Entry {
	var parts []string
	if msg.Result != "" {
		parts = append(parts, msg.Result)
	}
	if msg.IsError {
		parts = append(parts, msg.Errors...)
	}

	var cost, duration string
	if msg.TotalCostUSD != nil {
		cost = fmt.Sprintf("$%.4f", *msg.TotalCostUSD)
	}
	if msg.DurationMS != nil {
		duration = fmt.Sprintf("%.1fs", *msg.DurationMS/1000)
	}
	if len(parts) == 0 && cost == "" && duration == "" {
		return nil
	}

	content := strings.Join(parts, "\n")
	if content == "" {
		if msg.Subtype == "success" {
			content = "Completed"
		} else {
			content = "Error: " + msg.Subtype
		}
	}
	return []Entry{{Kind: EntryResult, Content: content, Cost: cost, Duration: duration}}
}

func parseSystem(msg wireMessage) []Entry {
	switch msg.Subtype {
	case "init":
		return []Entry{{
			Kind:    EntrySystem,
			Content: fmt.Sprintf("Session initialized (model: %s, session: %s)", orUnknown(msg.Model), orUnknown(msg.SessionID)),
		}}
	case "task_started":
		desc := msg.Description
		if desc == "" {
			desc = msg.TaskID
		}
		return []Entry{{
			Kind:       EntrySystem,
			Content:    "Task started: " + desc,
			ToolID:     msg.ToolUseID,
			TaskID:     msg.TaskID,
			TaskStatus: "running",
		}}
	case "task_notification":
		var usage []string
		if msg.Usage != nil {
			if msg.Usage.DurationMS > 0 {
				usage = append(usage, fmt.Sprintf("%.1fs", msg.Usage.DurationMS/1000))
			}
			if msg.Usage.ToolUses > 0 {
				usage = append(usage, fmt.Sprintf("%d tools", msg.Usage.ToolUses))
			}
		}
		content := "Task " + msg.Status
		if msg.Summary != "" {
			content += ": " + msg.Summary
		}
		if len(usage) > 0 {
			content += " (" + strings.Join(usage, ", ") + ")"
		}
		return []Entry{{
			Kind:       EntrySystem,
			Content:    content,
			ToolID:     msg.ToolUseID,
			TaskID:     msg.TaskID,
			TaskStatus: msg.Status,
		}}
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// AskQuestions decodes the questions of an AskUserQuestion tool input.
func AskQuestions(input json.RawMessage) []Question {
	if len(input) == 0 {
		return nil
	}
	var in struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil
	}
	for i := range in.Questions {
		if in.Questions[i].Options == nil {
			in.Questions[i].Options = []QuestionOption{}
		}
	}
	return in.Questions
}

func summarizeToolInput(name string, input json.RawMessage) string {
	var in map[string]any
	_ = json.Unmarshal(input, &in)
	str := func(key string) string {
		s, _ := in[key].(string)
		return s
	}

	switch name {
	case "Bash":
		return "$ " + str("command")
	case "Read", "Write", "Edit":
		return str("file_path")
	case "Glob":
		return str("pattern")
	case "Grep":
		return "/" + str("pattern") + "/"
	case "Task":
		if d := str("description"); d != "" {
			return d
		}
		p := str("prompt")
		if len(p) > 80 {
			p = p[:80]
		}
		return p
	case "WebFetch":
		return str("url")
	case "WebSearch":
		return str("query")
	}
	return ""
}

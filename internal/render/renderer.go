// Package render formats operation events for a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/event"
)

const (
	defaultWidth  = 100
	maxToolResult = 200
)

// Renderer writes one or more lines per event.
type Renderer struct {
	w        io.Writer
	color    bool
	width    int
	styles   styles
	markdown *glamour.TermRenderer
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor enables styled output and markdown rendering of results.
func WithColor(enabled bool) Option {
	return func(r *Renderer) { r.color = enabled }
}

// WithWidth sets the wrap width for markdown.
func WithWidth(width int) Option {
	return func(r *Renderer) {
		if width > 0 {
			r.width = width
		}
	}
}

// New creates a Renderer writing to w. Output is plain unless WithColor is
// given.
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{w: w, width: defaultWidth, styles: newStyles()}
	for _, opt := range opts {
		opt(r)
	}
	if r.color {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(r.width),
		)
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

// Render writes the lines for e.
func (r *Renderer) Render(e event.Event) error {
	for _, line := range r.Lines(e) {
		if _, err := fmt.Fprintln(r.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) paint(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) prefix(e event.Event) string {
	if e.ChildLabel == "" {
		return ""
	}
	return r.paint(r.styles.child, "["+e.ChildLabel+"]") + " "
}

// Lines formats e without writing it.
func (r *Renderer) Lines(e event.Event) []string {
	switch e.Type {
	case event.KindStatus:
		if u, ok := e.ParsePhaseUpdate(); ok {
			return []string{r.phaseLine(u)}
		}
		return []string{r.prefix(e) + r.paint(r.styles.status, "• "+e.Data)}
	case event.KindError:
		return []string{r.prefix(e) + r.paint(r.styles.failure, "✗ "+e.Data)}
	case event.KindComplete:
		return []string{r.completeLine(e)}
	case event.KindOutput:
		var lines []string
		for _, entry := range agent.ParseMessage(e.Data) {
			lines = append(lines, r.entryLines(e, entry)...)
		}
		return lines
	}
	return nil
}

func (r *Renderer) phaseLine(u event.PhaseUpdate) string {
	line := fmt.Sprintf("▶ Phase %d: %s [%s]", u.PhaseIndex+1, u.PhaseLabel, u.PhaseStatus)
	switch u.PhaseStatus {
	case "completed":
		return r.paint(r.styles.success, line)
	case "failed":
		return r.paint(r.styles.failure, line)
	case "skipped":
		return r.paint(r.styles.muted, line)
	}
	return r.paint(r.styles.phase, line)
}

func (r *Renderer) completeLine(e event.Event) string {
	code, _ := e.ExitCode()
	if e.IsPipelineComplete() {
		if code == 0 {
			return r.paint(r.styles.success, "✓ Pipeline completed")
		}
		return r.paint(r.styles.failure, fmt.Sprintf("✗ Pipeline failed (exit %d)", code))
	}
	if code == 0 {
		return r.prefix(e) + r.paint(r.styles.success, "✓ finished")
	}
	return r.prefix(e) + r.paint(r.styles.failure, fmt.Sprintf("✗ failed (exit %d)", code))
}

func (r *Renderer) entryLines(e event.Event, entry agent.Entry) []string {
	p := r.prefix(e)
	switch entry.Kind {
	case agent.EntryText:
		return []string{p + r.paint(r.styles.text, entry.Content)}
	case agent.EntryThinking:
		return []string{p + r.paint(r.styles.thinking, entry.Content)}
	case agent.EntryToolCall:
		line := "⚙ " + entry.ToolName
		if entry.Summary != "" {
			line += " " + entry.Summary
		}
		return []string{p + r.paint(r.styles.tool, line)}
	case agent.EntryToolResult:
		content := truncate(strings.Join(strings.Fields(entry.Content), " "), maxToolResult)
		style := r.styles.muted
		if entry.IsError {
			style = r.styles.failure
		}
		return []string{p + r.paint(style, "  ↳ "+content)}
	case agent.EntryAsk:
		lines := make([]string, 0, len(entry.Questions)+1)
		lines = append(lines, p+r.paint(r.styles.question, fmt.Sprintf("? Question %s", entry.ToolID)))
		for _, q := range entry.Questions {
			line := "  " + q.Question
			if len(q.Options) > 0 {
				labels := make([]string, len(q.Options))
				for i, o := range q.Options {
					labels[i] = o.Label
				}
				line += " (" + strings.Join(labels, " / ") + ")"
			}
			lines = append(lines, p+line)
		}
		return lines
	case agent.EntryResult:
		return r.resultLines(p, entry)
	case agent.EntryError:
		return []string{p + r.paint(r.styles.failure, "✗ "+entry.Content)}
	case agent.EntrySystem:
		return []string{p + r.paint(r.styles.muted, entry.Content)}
	case agent.EntryRaw:
		return []string{p + entry.Content}
	}
	return nil
}

func (r *Renderer) resultLines(p string, entry agent.Entry) []string {
	var meta []string
	if entry.Duration != "" {
		meta = append(meta, entry.Duration)
	}
	if entry.Cost != "" {
		meta = append(meta, entry.Cost)
	}
	header := "Result"
	if len(meta) > 0 {
		header += " (" + strings.Join(meta, ", ") + ")"
	}
	lines := []string{p + r.paint(r.styles.success, header)}

	body := entry.Content
	if r.markdown != nil {
		if out, err := r.markdown.Render(body); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	return append(lines, body)
}

// truncate cuts s to limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

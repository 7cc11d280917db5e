package render

import "github.com/charmbracelet/lipgloss"

// Palette colors for terminal output.
var (
	colorPrimary   = lipgloss.Color("#A78BFA") // Purple
	colorSecondary = lipgloss.Color("#10B981") // Green
	colorWarning   = lipgloss.Color("#F59E0B") // Amber
	colorError     = lipgloss.Color("#F87171") // Red
	colorMuted     = lipgloss.Color("#9CA3AF") // Gray
	colorInfo      = lipgloss.Color("#60A5FA") // Blue
)

// styles groups the styles used for each kind of line.
type styles struct {
	phase    lipgloss.Style
	child    lipgloss.Style
	status   lipgloss.Style
	text     lipgloss.Style
	thinking lipgloss.Style
	tool     lipgloss.Style
	question lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	muted    lipgloss.Style
}

func newStyles() styles {
	return styles{
		phase:    lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		child:    lipgloss.NewStyle().Foreground(colorInfo),
		status:   lipgloss.NewStyle().Foreground(colorMuted),
		text:     lipgloss.NewStyle(),
		thinking: lipgloss.NewStyle().Italic(true).Foreground(colorMuted),
		tool:     lipgloss.NewStyle().Foreground(colorWarning),
		question: lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		success:  lipgloss.NewStyle().Bold(true).Foreground(colorSecondary),
		failure:  lipgloss.NewStyle().Bold(true).Foreground(colorError),
		muted:    lipgloss.NewStyle().Faint(true),
	}
}

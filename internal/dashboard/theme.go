package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/command-center/internal/model"
)

// Theme defines all colors used by the dashboard.
type Theme struct {
	Primary        lipgloss.Color // title, cursor
	Secondary      lipgloss.Color // selected row text
	Error          lipgloss.Color // error status, failed actions
	Warning        lipgloss.Color // waiting for input
	Success        lipgloss.Color // running
	Info           lipgloss.Color // notifications
	Text           lipgloss.Color
	TextMuted      lipgloss.Color // hints, idle, completed
	BackgroundElem lipgloss.Color // selected row background
	Border         lipgloss.Color
}

// DarkTheme is the default.
func DarkTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#fab283"),
		Secondary:      lipgloss.Color("#5c9cf5"),
		Error:          lipgloss.Color("#e06c75"),
		Warning:        lipgloss.Color("#f5a742"),
		Success:        lipgloss.Color("#7fd88f"),
		Info:           lipgloss.Color("#56b6c2"),
		Text:           lipgloss.Color("#eeeeee"),
		TextMuted:      lipgloss.Color("#808080"),
		BackgroundElem: lipgloss.Color("#1e1e1e"),
		Border:         lipgloss.Color("#484848"),
	}
}

// LightTheme is for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#b35c00"),
		Secondary:      lipgloss.Color("#0550ae"),
		Error:          lipgloss.Color("#cf222e"),
		Warning:        lipgloss.Color("#bf8700"),
		Success:        lipgloss.Color("#116329"),
		Info:           lipgloss.Color("#0969da"),
		Text:           lipgloss.Color("#1f2328"),
		TextMuted:      lipgloss.Color("#656d76"),
		BackgroundElem: lipgloss.Color("#f6f8fa"),
		Border:         lipgloss.Color("#d0d7de"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	selected lipgloss.Style
	running  lipgloss.Style
	waiting  lipgloss.Style
	err      lipgloss.Style
	dim      lipgloss.Style
	text     lipgloss.Style
	info     lipgloss.Style
	preview  lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		header:   lipgloss.NewStyle().Foreground(t.Border),
		selected: lipgloss.NewStyle().Bold(true).Foreground(t.Secondary).Background(t.BackgroundElem),
		running:  lipgloss.NewStyle().Foreground(t.Success),
		waiting:  lipgloss.NewStyle().Foreground(t.Warning),
		err:      lipgloss.NewStyle().Foreground(t.Error),
		dim:      lipgloss.NewStyle().Foreground(t.TextMuted),
		text:     lipgloss.NewStyle().Foreground(t.Text),
		info:     lipgloss.NewStyle().Foreground(t.Info),
		preview: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
	}
}

// statusStyle picks the style a status is rendered in.
func (s styles) statusStyle(st model.Status) lipgloss.Style {
	switch st {
	case model.StatusRunning:
		return s.running
	case model.StatusWaiting:
		return s.waiting
	case model.StatusError:
		return s.err
	default:
		return s.dim
	}
}

func statusIcon(st model.Status) string {
	switch st {
	case model.StatusRunning:
		return "●"
	case model.StatusWaiting:
		return "⚠"
	case model.StatusError:
		return "✗"
	case model.StatusIdle:
		return "○"
	default:
		return "·"
	}
}

package tui

import "github.com/charmbracelet/lipgloss"

// BaseColors defines global UI colors.
type BaseColors struct {
	Foreground string
	Muted      string
	Accent     string
	Border     string
}

// MessageColors defines colors for message bubbles.
type MessageColors struct {
	Own   string
	Other string
}

// ChromeColors defines non-content UI colors.
type ChromeColors struct {
	Header       string
	Footer       string
	SelectedItem string
	Badge        string
}

// BorderColors defines border colors for pane state.
type BorderColors struct {
	ActivePane   string
	InactivePane string
}

// Theme defines the tablee TUI style tokens.
type Theme struct {
	Name string

	Base    BaseColors
	Message MessageColors
	Chrome  ChromeColors
	Borders BorderColors
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default":       DefaultTheme,
	"high-contrast": HighContrastTheme,
}

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name: "default",
	Base: BaseColors{
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
	},
	Message: MessageColors{
		Own:   "81",
		Other: "147",
	},
	Chrome: ChromeColors{
		Header:       "111",
		Footer:       "110",
		SelectedItem: "75",
		Badge:        "203",
	},
	Borders: BorderColors{
		ActivePane:   "75",
		InactivePane: "240",
	},
}

// HighContrastTheme maximizes legibility on washed-out terminals.
var HighContrastTheme = Theme{
	Name: "high-contrast",
	Base: BaseColors{
		Foreground: "231",
		Muted:      "250",
		Accent:     "51",
		Border:     "255",
	},
	Message: MessageColors{
		Own:   "51",
		Other: "213",
	},
	Chrome: ChromeColors{
		Header:       "226",
		Footer:       "226",
		SelectedItem: "51",
		Badge:        "196",
	},
	Borders: BorderColors{
		ActivePane:   "51",
		InactivePane: "250",
	},
}

// ThemeByName resolves a theme, falling back to the default.
func ThemeByName(name string) Theme {
	if theme, ok := Themes[name]; ok {
		return theme
	}
	return DefaultTheme
}

func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Chrome.Header))
}

func (t Theme) footerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Chrome.Footer))
}

func (t Theme) mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Muted))
}

func (t Theme) selectedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Chrome.SelectedItem))
}

func (t Theme) badgeStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Chrome.Badge))
}

func (t Theme) ownMessageStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Message.Own))
}

func (t Theme) otherMessageStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Message.Other))
}

func (t Theme) paneStyle(active bool) lipgloss.Style {
	color := t.Borders.InactivePane
	if active {
		color = t.Borders.ActivePane
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color))
}

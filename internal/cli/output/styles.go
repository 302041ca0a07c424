package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Warning       lipgloss.Style
	Stage         lipgloss.Style
	Success       lipgloss.Style
	Error         lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

func newStyles(color bool) *Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return &Styles{
			Header1:       plain,
			Header2:       plain,
			Bold:          plain,
			Muted:         plain,
			Warning:       plain,
			Stage:         plain,
			Success:       plain,
			Error:         plain,
			StatusSuccess: plain.SetString("✓"),
			StatusFailed:  plain.SetString("✗"),
		}
	}
	return &Styles{
		Header1:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Header2:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:          lipgloss.NewStyle().Bold(true),
		Muted:         lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Warning:       lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Stage:         lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		Success:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).SetString("✓"),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).SetString("✗"),
	}
}

var titleCaser = cases.Title(language.English)

// Title converts snake_case or lower text to Title Case.
func Title(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// FormatHeader returns a markdown header.
func FormatHeader(level int, text string) string {
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// FormatCodeBlock returns a fenced code block.
func FormatCodeBlock(lang, code string) string {
	return "```" + lang + "\n" + strings.TrimRight(code, "\n") + "\n```"
}

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one labelled line in a Banner.
type Field struct {
	Key    string
	Value  string
	Secret bool // rendered highlighted (e.g. the generated password)
}

// Banner is a bordered block printed when a command starts, e.g. the server
// address and credentials after serve binds its port.
type Banner struct {
	Title    string  // e.g., "Web Control Server"
	Subtitle string  // e.g., "webcontrol serve"
	Fields   []Field // Rendered in order
	Width    int     // Terminal width for responsive rendering
}

// NewBanner creates a banner sized to the current terminal.
func NewBanner(title, subtitle string, fields ...Field) *Banner {
	return &Banner{
		Title:    title,
		Subtitle: subtitle,
		Fields:   fields,
		Width:    GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (b *Banner) SetWidth(width int) *Banner {
	b.Width = width
	return b
}

// Add appends a field.
func (b *Banner) Add(key, value string) *Banner {
	b.Fields = append(b.Fields, Field{Key: key, Value: value})
	return b
}

// AddSecret appends a highlighted field.
func (b *Banner) AddSecret(key, value string) *Banner {
	b.Fields = append(b.Fields, Field{Key: key, Value: value, Secret: true})
	return b
}

// Render returns the styled banner as a string
func (b *Banner) Render() string {
	width := b.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	top := []string{BannerTitleStyle.Render(strings.ToUpper(b.Title))}
	if b.Subtitle != "" {
		top = append(top, BannerSubtitleStyle.Render(b.Subtitle))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, top...)

	if len(b.Fields) > 0 {
		dividerWidth := width - 6 // Account for border and padding
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		divider := lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Render(strings.Repeat("─", dividerWidth))

		lines := make([]string, 0, len(b.Fields))
		for _, f := range b.Fields {
			valueStyle := BannerValueStyle
			if f.Secret {
				valueStyle = SecretValueStyle
			}
			lines = append(lines, BannerKeyStyle.Render(f.Key+":")+" "+valueStyle.Render(f.Value))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(lines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2). // Account for border characters
		Render(content)
}

// String implements fmt.Stringer
func (b *Banner) String() string {
	return b.Render()
}

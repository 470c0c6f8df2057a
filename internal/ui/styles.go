package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - success, state
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings
	InfoColor    = lipgloss.Color("#5FAFFF") // Blue - operations
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 100 // Maximum content width before capping
)

// Banner styles
var (
	// BannerTitleStyle is for the banner title (e.g., "WEB CONTROL SERVER")
	BannerTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	// BannerSubtitleStyle is for the line under the title
	BannerSubtitleStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	// BannerKeyStyle is for field names (e.g., "URL:")
	BannerKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2).
			Width(14)

	// BannerValueStyle is for field values
	BannerValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	// SecretValueStyle highlights values the user has to type somewhere else
	SecretValueStyle = lipgloss.NewStyle().
				Foreground(WarningColor).
				Bold(true)
)

// Stream styles, used by the watch client for one line per message.
var (
	TimestampStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// MessageTypeStyle pads the message type into a fixed column.
	MessageTypeStyle = lipgloss.NewStyle().
				Bold(true).
				Width(24)

	DetailStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	DebugStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	InfoStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	WarnStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	RunningMarker = "●"
)

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ColorForType returns the accent color for a server message type.
func ColorForType(msgType string) lipgloss.Color {
	switch msgType {
	case "operation-start":
		return InfoColor
	case "operation-complete", "state-sync":
		return SuccessColor
	case "connection-established", "pong":
		return PrimaryColor
	default:
		return TextColor
	}
}

// LevelStyle returns the style for a log level name.
func LevelStyle(level string) lipgloss.Style {
	switch level {
	case "debug":
		return DebugStyle
	case "warning", "warn":
		return WarnStyle
	case "error":
		return ErrorStyle
	case "success":
		return SuccessStyle
	default:
		return InfoStyle
	}
}

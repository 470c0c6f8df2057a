// Package ui provides terminal output components for the webcontrol CLI.
//
// The components follow a "print and move on" pattern: they render styled
// text with Lipgloss and never take over the terminal.
//
//   - Banner: bordered block listing the fields a command wants the user to
//     see, such as the server URL and the generated password.
//   - Stream styles: per-type and per-level styles used by the watch client
//     to print one line per server message.
//
// # Logging Integration
//
// zap logging is controlled via the WEBCONTROL_LOG_LEVEL environment variable
// or the --log-level flag. When unset, logging is silent so the banner and
// stream output are displayed cleanly.
package ui

// Package console formats the lines garden's CLI commands print to stdout/
// stderr: success/info/warning/error prefixes and the list header/item pair
// `get graph` uses to render a dependency tree.
package console

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/garden-io/garden-core/pkg/stringutil"
	"github.com/garden-io/garden-core/pkg/styles"
	"github.com/garden-io/garden-core/pkg/tty"
)

// isTTY checks if stdout is a terminal
func isTTY() bool {
	return tty.IsStdoutTerminal()
}

// applyStyle conditionally applies styling based on TTY status
func applyStyle(style lipgloss.Style, text string) string {
	if isTTY() {
		return style.Render(text)
	}
	return text
}

// FormatSuccessMessage formats a success message with styling
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats an informational message
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, "ℹ ") + message
}

// FormatWarningMessage formats a warning message
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "⚠ ") + message
}

// FormatErrorMessage formats a simple error message (for stderr output), redacting
// any secret-shaped identifiers a plugin or provider error happened to echo back.
func FormatErrorMessage(message string) string {
	return applyStyle(styles.Error, "✗ ") + stringutil.SanitizeErrorMessage(message)
}

// FormatListHeader formats a section header for lists
func FormatListHeader(header string) string {
	return applyStyle(styles.ListHeader, header)
}

// FormatListItem formats an item in a list
func FormatListItem(item string) string {
	return applyStyle(styles.ListItem, "  • "+item)
}

// Package ui renders replay reports for the terminal
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	xforms "github.com/orbeon/orbeon-forms-sub002"
)

var (
	accentPrimary   = lipgloss.Color("#50E3C2")
	accentSecondary = lipgloss.Color("#F6AE2D")
	mutedText       = lipgloss.Color("#8CA1AE")
	warningText     = lipgloss.Color("#FF6B6B")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentPrimary)

	okStyle = lipgloss.NewStyle().
		Foreground(accentPrimary)

	deferredStyle = lipgloss.NewStyle().
			Foreground(accentSecondary)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedText)

	kindStyle = lipgloss.NewStyle().
			Width(11).
			Foreground(warningText)
)

// Header renders the title of a section
func Header(title string) string {
	return headerStyle.Render(title)
}

// Muted renders secondary information
func Muted(text string) string {
	return mutedStyle.Render(text)
}

// Error renders a fatal problem
func Error(text string) string {
	return errorStyle.Render(text)
}

// Result renders the outcome of applying one response
func Result(name string, res *xforms.Result) string {
	var b strings.Builder
	b.WriteString(Header(name))
	b.WriteString("\n")

	status := okStyle.Render(fmt.Sprintf("  %d applied", res.Applied))
	if n := len(res.Diagnostics); n > 0 {
		status += ", " + errorStyle.Render(fmt.Sprintf("%d error(s)", n))
	}
	if res.Deferred > 0 {
		status += ", " + deferredStyle.Render(fmt.Sprintf("%d group(s) deferred", res.Deferred))
	}
	b.WriteString(status)
	b.WriteString("\n")

	if res.ReplacesPage {
		b.WriteString(deferredStyle.Render("  the page would be replaced"))
		b.WriteString("\n")
	}
	if len(res.TypeChanged) > 0 {
		b.WriteString(Muted("  type changed: " + strings.Join(res.TypeChanged, ", ")))
		b.WriteString("\n")
	}
	for _, d := range res.Diagnostics {
		b.WriteString(Diagnostic(d))
		b.WriteString("\n")
	}
	return b.String()
}

// Diagnostic renders one error on a single line
func Diagnostic(d xforms.Diagnostic) string {
	line := "  " + kindStyle.Render(d.Kind) + " " + d.Message
	if d.File != "" {
		line += Muted(fmt.Sprintf(" (%s:%d:%d)", d.File, d.Line, d.Col))
	}
	return line
}

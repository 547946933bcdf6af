package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// OK prints a success line.
func OK(w io.Writer, msg string) {
	t := Current()
	fmt.Fprintln(w, t.Success.Render(t.SymOK+" "+msg))
}

// Fail prints an error line.
func Fail(w io.Writer, msg string) {
	t := Current()
	fmt.Fprintln(w, t.Error.Render(t.SymFail+" "+msg))
}

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	pct := int(float64(done) / float64(total) * 100)
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// Panel draws a framed box using the current theme.
func Panel(w io.Writer, lines []string) {
	fmt.Fprintln(w, PanelString(strings.Join(lines, "\n")))
}

// PanelString frames inner without printing it.
func PanelString(inner string) string {
	t := Current()
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(inner)
}

// Truncate shortens s to max runes, ending with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max < 4 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

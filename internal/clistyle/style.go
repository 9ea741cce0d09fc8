// Package clistyle provides terminal styling helpers for cmd/tmuxgate, with
// automatic color detection.
package clistyle

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// Style renders CLI output, coloring it only when stdout is a terminal.
type Style struct {
	useColors bool
}

// New detects whether stdout is a terminal and returns a Style accordingly.
func New() *Style {
	return &Style{useColors: term.IsTerminal(int(os.Stdout.Fd()))}
}

func (s *Style) colorize(code, text string) string {
	if !s.useColors {
		return text
	}
	return code + text + ansiReset
}

// Header prints a section header with divider bars.
func (s *Style) Header(title string) {
	bar := strings.Repeat("━", 72)
	fmt.Println()
	fmt.Println(s.colorize(ansiCyan, bar))
	fmt.Println(s.colorize(ansiBold+ansiCyan, "  "+title))
	fmt.Println(s.colorize(ansiCyan, bar))
	fmt.Println()
}

// SubHeader prints a smaller section header framed by thin divider bars.
func (s *Style) SubHeader(title string) {
	bar := strings.Repeat("─", 72)
	fmt.Println()
	fmt.Println(s.colorize(ansiCyan, bar))
	fmt.Println(s.colorize(ansiBold+ansiCyan, "  "+title))
	fmt.Println(s.colorize(ansiCyan, bar))
	fmt.Println()
}

// Success prints a success message with a green checkmark.
func (s *Style) Success(msg string) {
	fmt.Println(s.colorize(ansiGreen, "✓ "+msg))
}

// Warn prints a warning message with a yellow symbol.
func (s *Style) Warn(msg string) {
	fmt.Println(s.colorize(ansiYellow, "⚠ "+msg))
}

// Error prints an error message with a red X.
func (s *Style) Error(msg string) {
	fmt.Println(s.colorize(ansiRed, "✗ "+msg))
}

// Dim returns dimmed text.
func (s *Style) Dim(text string) string { return s.colorize(ansiDim, text) }

// Bold returns bold text.
func (s *Style) Bold(text string) string { return s.colorize(ansiBold, text) }

// Cyan returns cyan text, for URLs, commands, and paths.
func (s *Style) Cyan(text string) string { return s.colorize(ansiCyan, text) }

// Yellow returns yellow text.
func (s *Style) Yellow(text string) string { return s.colorize(ansiYellow, text) }

// Green returns green text.
func (s *Style) Green(text string) string { return s.colorize(ansiGreen, text) }

// Red returns red text.
func (s *Style) Red(text string) string { return s.colorize(ansiRed, text) }

// Info prints dimmed informational lines.
func (s *Style) Info(lines ...string) {
	for _, line := range lines {
		fmt.Println(s.Dim(line))
	}
}

// Print prints text with no trailing newline.
func (s *Style) Print(text string) { fmt.Print(text) }

// Println prints text followed by a newline.
func (s *Style) Println(text string) { fmt.Println(text) }

// Printf prints formatted text.
func (s *Style) Printf(format string, args ...interface{}) { fmt.Printf(format, args...) }

// List prints a numbered list with dimmed numbers.
func (s *Style) List(items []string) {
	for i, item := range items {
		fmt.Printf("  %s %s\n", s.Dim(fmt.Sprintf("%d.", i+1)), item)
	}
}

// Bullet prints a single bullet point.
func (s *Style) Bullet(text string) {
	fmt.Printf("  • %s\n", text)
}

// KeyValue prints an aligned key-value pair for summaries.
func (s *Style) KeyValue(key, value string) {
	fmt.Printf("  %s  %s\n", s.Bold(fmt.Sprintf("%-18s", key+":")), value)
}

// Code prints indented, cyan command/code lines.
func (s *Style) Code(lines ...string) {
	for _, line := range lines {
		fmt.Printf("     %s\n", s.Cyan(line))
	}
}

// Blank prints a blank line.
func (s *Style) Blank() {
	fmt.Println()
}

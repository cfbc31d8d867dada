// Package printer renders CLI output: coloured status lines, mission results
// and structured error messages with suggestions.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY.
	// Users can disable with NO_COLOR environment variable.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes to an output and an error stream.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// Std prints to stdout and stderr.
var Std = &Printer{Out: os.Stdout, Err: os.Stderr}

// New returns a Printer over out and errOut.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

// Success prints a message in green with a checkmark prefix.
func (p *Printer) Success(format string, a ...any) {
	green.Fprintf(p.Out, "✓ %s", fmt.Sprintf(format, a...))
}

// Info prints an informational message in the default color.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Warning prints a message in yellow to the error stream.
func (p *Printer) Warning(format string, a ...any) {
	yellow.Fprintf(p.Err, "⚠️  %s", fmt.Sprintf(format, a...))
}

// Step prints a progress message.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Out, "→ %s", fmt.Sprintf(format, a...))
}

// Result prints a mission answer followed by a faint footer line.
func (p *Printer) Result(answer, footer string) {
	fmt.Fprintln(p.Out, strings.TrimRight(answer, "\n"))
	if footer != "" {
		faint.Fprintf(p.Out, "\n%s\n", footer)
	}
}

// Error prints title, explanation and suggestions to the error stream and
// returns an error carrying only the title, for Cobra (which is silenced).
func (p *Printer) Error(title string, explanation string, suggestions []string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details printed in key order.
func (p *Printer) ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(p.Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(p.Err, "\n")
		for _, k := range keys {
			fmt.Fprintf(p.Err, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(p.Err, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(p.Err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(p.Err, "Either:\n")
			for i, s := range suggestions {
				fmt.Fprintf(p.Err, "  %d. %s\n", i+1, s)
			}
		}
	}

	return fmt.Errorf("%s", title)
}

// Error prints to stderr via Std.
func Error(title string, explanation string, suggestions []string) error {
	return Std.Error(title, explanation, suggestions)
}

// ErrorWithContext prints to stderr via Std.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	return Std.ErrorWithContext(title, explanation, context, suggestions)
}

// Package ui renders command output for the terminal
package ui

import (
	"fmt"
	"io"
	"os"
)

// ASCIILogo is printed by interactive commands
const ASCIILogo = `
  ┌─────────────────────────────────────────────┐
  │  P R O M P T H U N T E R                    │
  │  quota-aware prompt harvester               │
  └─────────────────────────────────────────────┘
`

var (
	out     io.Writer = os.Stdout
	noColor bool
	quiet   bool
)

// SetOutput redirects all printing; nil restores stdout
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetNoColor disables ANSI escapes
func SetNoColor(v bool) {
	noColor = v
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(v bool) {
	quiet = v
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo
func PrintLogo() {
	if quiet {
		return
	}
	fmt.Fprint(out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	if quiet {
		return
	}
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quiet {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, Magenta(msg))
}

// Output returns the current writer for renderers
func Output() io.Writer {
	return out
}

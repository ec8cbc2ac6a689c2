// Package ui provides terminal output helpers for the docrefine CLI.
package ui

import (
	"github.com/fatih/color"
)

var verboseFlag bool

// InitUI initializes the UI with color and verbose settings.
func InitUI(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verboseFlag
}

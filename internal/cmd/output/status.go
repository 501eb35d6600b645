package output

import (
	"github.com/fatih/color"

	"github.com/agentstation/procreport/internal/cmd/emoji"
)

var (
	successColor = color.New(color.FgGreen).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
)

// DisableColor turns off colored status output for the process.
func DisableColor() {
	color.NoColor = true
}

// Success renders a success status label.
func Success(label string) string {
	return successColor(emoji.Success + " " + label)
}

// Failure renders a failure status label.
func Failure(label string) string {
	return errorColor(emoji.Error + " " + label)
}

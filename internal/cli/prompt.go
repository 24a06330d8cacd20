package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/briandowns/spinner"
)

const levelWarn = slog.LevelWarn

// Seams replaced in tests.
var (
	askOne        = survey.AskOne
	isInteractive = stdinIsTerminal
)

// stdinIsTerminal checks if we're running in an interactive terminal
func stdinIsTerminal() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fileInfo.Mode()&os.ModeCharDevice != 0
}

// startSpinner starts a spinner with the given suffix. The spinner stays
// silent when stdout is not a terminal.
func startSpinner(suffix string) *spinner.Spinner {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(colorOutput))
	sp.Suffix = " " + suffix
	sp.Start()
	return sp
}

// confirm asks a yes/no question.
func confirm(message string, def bool) (bool, error) {
	answer := def
	if err := askOne(&survey.Confirm{Message: message, Default: def}, &answer); err != nil {
		return false, err
	}
	return answer, nil
}

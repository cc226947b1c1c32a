package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"finpod/internal/state"
	"finpod/internal/workflow"
)

const statusLabelWidth = 20

func renderCheckLine(label string, passed bool, detail string, colorize bool) string {
	mark := "OK"
	color := text.FgGreen
	if !passed {
		mark = "FAIL"
		color = text.FgRed
	}
	line := fmt.Sprintf("  %-*s [%s] %s", statusLabelWidth, label+":", mark, detail)
	if colorize {
		return color.Sprint(line)
	}
	return line
}

// colorUnitStatus tints a unit status for terminal tables.
func colorUnitStatus(status workflow.UnitStatus, colorize bool) string {
	if !colorize {
		return string(status)
	}
	switch status {
	case workflow.UnitPublished:
		return text.FgGreen.Sprint(status)
	case workflow.UnitFailed:
		return text.FgRed.Sprint(status)
	case workflow.UnitAwaitingInput:
		return text.FgYellow.Sprint(status)
	default:
		return text.FgHiBlack.Sprint(status)
	}
}

// colorStageStatus tints a stored stage status.
func colorStageStatus(status state.Status, colorize bool) string {
	if !colorize {
		return string(status)
	}
	switch status {
	case state.StatusSuccess:
		return text.FgGreen.Sprint(status)
	case state.StatusFailedPermanent:
		return text.FgRed.Sprint(status)
	case state.StatusFailedRetryable, state.StatusInProgress:
		return text.FgYellow.Sprint(status)
	default:
		return string(status)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

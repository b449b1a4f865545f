package cmd

import (
	"errors"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/runner"
)

// ErrConfig marks failures that happen before any cycle runs: unreadable
// config, missing launcher, bad session env file.
var ErrConfig = errors.New("configuration error")

// Exit codes distinguish why a run ended early. A completed run exits 0
// whether its verdict is pass or fail; the verdict lives in the report.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitSafety      = 3
	exitConvergence = 4
)

func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ErrConfig):
		return exitConfig
	case errors.Is(err, runner.ErrSafetyAbort):
		return exitSafety
	case errors.Is(err, runner.ErrConvergenceTimeout):
		return exitConvergence
	default:
		return exitFailure
	}
}

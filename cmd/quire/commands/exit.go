package commands

import (
	"github.com/teranos/quire/errors"
)

// Sentinels distinguishing "the command worked, the result is bad" from
// infrastructure failures, so main can map outcomes onto exit codes.
var (
	// ErrRunFailed: the run finished but stages failed or were blocked
	ErrRunFailed = errors.New("run finished with failures")

	// ErrNotReady: the deliverable assembled but its readiness is conditional
	ErrNotReady = errors.New("deliverable is conditional")
)

// ExitCode maps a command error onto the process exit code:
// 0 success, 1 stage or gate failure, 2 invalid pipeline (cycles included),
// 3 split-integrity violation.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsSplitIntegrityError(err):
		return 3
	case errors.IsCycleError(err):
		return 2
	default:
		return 1
	}
}

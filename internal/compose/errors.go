package compose

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrPoolExhausted means the user's unused pool is smaller than the test,
// even after a history reset. A short test is never returned instead.
var ErrPoolExhausted = errors.New("question pool exhausted")

// InvalidSpecError reports a test specification that can not be satisfied
// by construction.
type InvalidSpecError struct {
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid test specification: %s", e.Reason)
}

// RetakeNotAllowedError is returned while the user is inside the retake
// cooldown. It is an expected outcome, not a failure.
type RetakeNotAllowedError struct {
	Remaining time.Duration
}

func (e *RetakeNotAllowedError) Error() string {
	return fmt.Sprintf("retake not allowed for another %ds", e.RemainingSeconds())
}

// RemainingSeconds rounds the wait up to whole seconds.
func (e *RetakeNotAllowedError) RemainingSeconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

// IsRetakeNotAllowed reports whether err is a cooldown rejection.
func IsRetakeNotAllowed(err error) bool {
	var target *RetakeNotAllowedError
	return errors.As(err, &target)
}

// IsInvalidSpec reports whether err is a specification error.
func IsInvalidSpec(err error) bool {
	var target *InvalidSpecError
	return errors.As(err, &target)
}

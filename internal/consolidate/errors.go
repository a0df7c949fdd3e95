package consolidate

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Scheduler.Start while a job is active.
	ErrAlreadyRunning = errors.New("already have a consolidate-below running")

	// ErrOracleUnavailable means the node did not return usable fee estimates.
	ErrOracleUnavailable = errors.New("fee oracle unavailable")

	// ErrEstimateMissing means the requested confirmation target was absent.
	ErrEstimateMissing = errors.New("fee estimate missing")

	// ErrNoJob is returned by JobStore.Load when nothing is persisted.
	ErrNoJob = errors.New("no consolidate job found")
)

// ValidationError reports bad user input: malformed arguments or a fee rate
// outside the node's acceptable range.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientCoinsError is returned when fewer coins than requested
// survive selection.
type InsufficientCoinsError struct {
	Found  int
	Wanted int
}

func (e *InsufficientCoinsError) Error() string {
	return fmt.Sprintf("not enough UTXOs to consolidate: current:%d wanted:>=%d", e.Found, e.Wanted)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsInsufficientCoins reports whether err is an InsufficientCoinsError.
func IsInsufficientCoins(err error) bool {
	var ic *InsufficientCoinsError
	return errors.As(err, &ic)
}

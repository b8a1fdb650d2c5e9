package battles

import (
	"errors"
	"fmt"
)

// Recoverable rejections. These never corrupt orchestrator state and map to
// 4xx responses at the transport layer.
var (
	ErrBattleNotFound   = errors.New("battle not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrNotAParticipant  = errors.New("user is not a participant of this battle")
	ErrAlreadyReady     = errors.New("readiness already signalled")
	ErrAlreadySubmitted = errors.New("submission already recorded")
	ErrChallengePending = errors.New("a pending challenge already exists")
	ErrInvalidState     = errors.New("operation not allowed in current battle state")
	ErrNoEngine         = errors.New("no scoring engine for this category")
	ErrTimerPending     = errors.New("a timer is already pending for this battle phase")
)

// FatalError marks a logic error rather than a user-caused rejection: a
// double-end slipping past the guard, a missing result at settlement, or a
// persistence/teardown inconsistency. Callers surface these as generic
// internal errors; the wrapped cause is for operators.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fatal battle inconsistency in %s", e.Op)
	}
	return fmt.Sprintf("fatal battle inconsistency in %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatalf(op string, format string, args ...any) error {
	return &FatalError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err indicates an internal inconsistency.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// IsRejection reports whether err is a recoverable, user-surfaced rejection.
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrBattleNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrNotAParticipant),
		errors.Is(err, ErrAlreadyReady),
		errors.Is(err, ErrAlreadySubmitted),
		errors.Is(err, ErrChallengePending),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrNoEngine):
		return true
	}
	return false
}

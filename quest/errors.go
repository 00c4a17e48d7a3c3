package quest

import (
	"errors"
	"fmt"
)

// Validation rejections. They are expected and user-facing; retrying without
// changing input or state yields the same answer.
var (
	ErrUnknownQuest             = errors.New("quest: unknown quest")
	ErrDayZeroLocked            = errors.New("quest: daily quests unlock on day 1")
	ErrPrerequisiteNotMet       = errors.New("quest: prerequisite quest not completed")
	ErrFeatureGateNotMet        = errors.New("quest: required feature not completed")
	ErrInputMissing             = errors.New("quest: input missing")
	ErrAlreadyCompletedToday    = errors.New("quest: already completed today")
	ErrAlreadyCompletedLifetime = errors.New("quest: already completed")
	ErrMaxCompletionsReached    = errors.New("quest: completion limit reached")
)

var rejections = map[error]string{
	ErrUnknownQuest:             "UnknownQuest",
	ErrDayZeroLocked:            "DayZeroLocked",
	ErrPrerequisiteNotMet:       "PrerequisiteNotMet",
	ErrFeatureGateNotMet:        "FeatureGateNotMet",
	ErrInputMissing:             "InputMissing",
	ErrAlreadyCompletedToday:    "AlreadyCompletedToday",
	ErrAlreadyCompletedLifetime: "AlreadyCompletedLifetime",
	ErrMaxCompletionsReached:    "MaxCompletionsReached",
}

// Reason returns the rejection code of err, or "" if err is not a rejection.
func Reason(err error) string {
	for target, code := range rejections {
		if errors.Is(err, target) {
			return code
		}
	}
	return ""
}

// IsRejection reports whether err is a validation rejection.
func IsRejection(err error) bool {
	return Reason(err) != ""
}

// CollaboratorError is a failure reported by a sub-flow writer. It is passed
// to the caller verbatim; nothing is written to the ledger.
type CollaboratorError struct {
	Kind             string
	Message          string
	AlreadyCompleted bool
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("quest: %s sub-flow: %s", e.Kind, e.Message)
}

// StoreError wraps a persistence failure during a completion attempt. The
// store may hold a partially applied attempt; callers re-read before retrying.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("quest: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

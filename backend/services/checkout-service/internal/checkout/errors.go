package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition is returned when an action is not allowed in the current stage.
	ErrIllegalTransition = errors.New("checkout: action not allowed in current stage")
	// ErrSettlementInFlight rejects every action on a session while its payment is outstanding.
	ErrSettlementInFlight = errors.New("checkout: settlement in progress")
	// ErrSettlementFailed wraps ledger failures other than an unknown plan. The session keeps its data.
	ErrSettlementFailed = errors.New("checkout: settlement failed")
)

// ValidationError reports a rejected user input and the field it belongs to.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func illegal(action string, stage Stage) error {
	return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, action, stage)
}

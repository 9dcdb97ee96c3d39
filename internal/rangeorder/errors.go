package rangeorder

import "errors"

// StateError reports an operation that is invalid in the current order state.
type StateError struct {
	Name string
}

func (e *StateError) Error() string { return e.Name }

// AuthorizationError reports a caller lacking the required role.
type AuthorizationError struct {
	Name string
}

func (e *AuthorizationError) Error() string { return e.Name }

var (
	ErrInActivePosition    = &StateError{Name: "InActivePosition"}
	ErrRangeOrderNotFilled = &StateError{Name: "RangeOrderNotFilled"}
	ErrNoActivePosition    = &StateError{Name: "NoActivePosition"}

	ErrUnauthorized        = &AuthorizationError{Name: "UNAUTHORIZED"}
	ErrUnauthorizedFulfill = &AuthorizationError{Name: "UnauthorizedFulfill"}

	ErrInvalidRange  = errors.New("InvalidRange")
	ErrInvalidAmount = errors.New("InvalidAmount")

	ErrInsufficientFunds = errors.New("InsufficientFunds")
)

// ErrorName returns the stable name of an engine error, or "" for other errors.
func ErrorName(err error) string {
	var stateErr *StateError
	if errors.As(err, &stateErr) {
		return stateErr.Name
	}
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return authErr.Name
	}
	switch {
	case errors.Is(err, ErrInvalidRange):
		return ErrInvalidRange.Error()
	case errors.Is(err, ErrInvalidAmount):
		return ErrInvalidAmount.Error()
	case errors.Is(err, ErrInsufficientFunds):
		return ErrInsufficientFunds.Error()
	}
	return ""
}

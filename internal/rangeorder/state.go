package rangeorder

import "rangeHedger/internal/model"

// State is the externally visible order state.
type State string

const (
	StateInactive       State = "INACTIVE"
	StateActiveUnfilled State = "ACTIVE_UNFILLED"
	StateActiveFilled   State = "ACTIVE_FILLED"
)

func stateOf(pos model.Position, tick int) State {
	switch {
	case !pos.Active():
		return StateInactive
	case pos.Filled(tick):
		return StateActiveFilled
	default:
		return StateActiveUnfilled
	}
}

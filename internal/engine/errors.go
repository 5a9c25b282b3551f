package engine

import "errors"

// ErrInvalidSlotState is returned when a slot operation's precondition does
// not hold, e.g. checking or cancelling a slot with no live order. Callers
// get an explicit error instead of acting on stale slot fields.
var ErrInvalidSlotState = errors.New("engine: slot is not in a valid state for this operation")

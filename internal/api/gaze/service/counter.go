package gazeService

import "GazeGate/internal/entity"

// Tick advances the confirmation state by one poll. A looking decision extends the run, any
// other decision resets it to zero.
func Tick(decision entity.GazeDecision, state entity.ConfirmationState, threshold int) entity.ConfirmationState {
	count := 0
	if decision.IsLooking {
		count = state.ConsecutiveLookCount + 1
	}

	return entity.ConfirmationState{
		ConsecutiveLookCount: count,
		Confirmed:            count >= threshold,
	}
}

func remaining(state entity.ConfirmationState, threshold int) int {
	if left := threshold - state.ConsecutiveLookCount; left > 0 {
		return left
	}
	return 0
}

package model

type AdmissionState string

const (
	StateNotEntered AdmissionState = "NOT_ENTERED"
	StateInside     AdmissionState = "INSIDE"
	StateExited     AdmissionState = "EXITED"
)

// StateAfter derives the admission state from the latest stateful event.
// A nil event, or one that does not move state, means the holder never entered.
func StateAfter(latest *CheckEvent) AdmissionState {
	if latest == nil {
		return StateNotEntered
	}
	switch latest.Status {
	case CheckStatusEntry, CheckStatusReentry:
		return StateInside
	case CheckStatusExit:
		return StateExited
	default:
		return StateNotEntered
	}
}

// Decision is the outcome of one transition.
type Decision struct {
	Status CheckStatus
	Next   AdmissionState
	Reason string
}

// Decide applies the gate transition table.
func Decide(state AdmissionState, dir Direction, p AttendancePolicy) Decision {
	switch state {
	case StateNotEntered:
		if dir == DirectionOut {
			return Decision{CheckStatusDuplicate, StateNotEntered, ReasonNotEntered}
		}
		if !p.CheckInAllowed {
			return Decision{CheckStatusInvalid, StateNotEntered, ReasonPolicyDenied}
		}
		return Decision{CheckStatusEntry, StateInside, ReasonAdmitted}

	case StateInside:
		if dir == DirectionIn {
			return Decision{CheckStatusDuplicate, StateInside, ReasonAlreadyInside}
		}
		if !p.CheckOutAllowed {
			return Decision{CheckStatusInvalid, StateInside, ReasonPolicyDenied}
		}
		return Decision{CheckStatusExit, StateExited, ReasonExited}

	case StateExited:
		if dir == DirectionOut {
			return Decision{CheckStatusDuplicate, StateExited, ReasonAlreadyExited}
		}
		if !p.ReentryAllowed {
			return Decision{CheckStatusInvalid, StateExited, ReasonPolicyDenied}
		}
		return Decision{CheckStatusReentry, StateInside, ReasonReadmitted}
	}
	// Unknown state: deny without moving.
	return Decision{CheckStatusInvalid, state, ReasonPolicyDenied}
}

package core

import (
	"fmt"

	"github.com/agriai/agriai-server/internal/store"
)

var callOrder = map[store.CallStatus]int{
	store.CallStatusNotRequested:    0,
	store.CallStatusFarmerRequested: 1,
	store.CallStatusExpertAccepted:  2,
	store.CallStatusInProgress:      3,
	store.CallStatusEnded:           4,
}

// ParseCallStatus validates a requested call status.
func ParseCallStatus(s string) (store.CallStatus, error) {
	status := store.CallStatus(s)
	if _, ok := callOrder[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCallStatus, s)
	}
	return status, nil
}

// IsBackwards reports whether moving from one status to another goes against
// the call lifecycle. Such transitions are still applied; callers only log them.
func IsBackwards(from, to store.CallStatus) bool {
	f, okFrom := callOrder[from]
	t, okTo := callOrder[to]
	if !okFrom || !okTo {
		return false
	}
	return t < f
}

// CallEventFor returns the notification for an appointment that has just
// entered its current CallStatus. The boolean is false when the transition
// notifies nobody, or when the farmer it would address is unknown.
func CallEventFor(appt store.Appointment) (Event, bool) {
	hasFarmer := appt.FarmerUserID != nil && *appt.FarmerUserID != ""

	switch appt.CallStatus {
	case store.CallStatusFarmerRequested:
		if appt.ExpertUserID == "" {
			return nil, false
		}
		return CallRequested{Appointment: appt}, true
	case store.CallStatusExpertAccepted:
		if !hasFarmer {
			return nil, false
		}
		return CallAccepted{Appointment: appt}, true
	case store.CallStatusEnded:
		if !hasFarmer {
			return nil, false
		}
		return CallEnded{Appointment: appt}, true
	default:
		return nil, false
	}
}

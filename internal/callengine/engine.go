package callengine

import (
	"context"

	"github.com/agriai/agriai-server/internal/store"
)

// JoinInfo contains information needed to join a call.
type JoinInfo struct {
	URL      string `json:"url"`       // WebSocket URL (e.g., ws://localhost:7880)
	Token    string `json:"token"`     // JWT token for LiveKit
	RoomName string `json:"room_name"` // LiveKit room name, same as the session token
	Identity string `json:"identity"`  // User identity in the room
}

// Engine abstracts the media backend for appointment calls.
type Engine interface {
	// OpenSession reserves a media session for the appointment.
	// The returned token is persisted as the appointment's session token.
	OpenSession(ctx context.Context, appt *store.Appointment) (sessionToken string, err error)

	// CloseSession releases the media session.
	CloseSession(ctx context.Context, appt *store.Appointment) error

	// GenerateJoinInfo creates join credentials for one party of the call.
	GenerateJoinInfo(ctx context.Context, appt *store.Appointment, userID, displayName string) (*JoinInfo, error)
}

package livekit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/agriai/agriai-server/internal/callengine"
	"github.com/agriai/agriai-server/internal/store"
)

// ErrNoSession is returned when join credentials are requested before a
// session token exists.
var ErrNoSession = errors.New("appointment has no call session")

// LiveKitEngine implements callengine.Engine using LiveKit as the media backend.
type LiveKitEngine struct {
	apiKey    string
	apiSecret string
	wsURL     string
	tokenTTL  time.Duration
}

// New creates a new LiveKitEngine.
func New(apiKey, apiSecret, wsURL string) *LiveKitEngine {
	return &LiveKitEngine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
		tokenTTL:  time.Hour,
	}
}

// OpenSession names the LiveKit room for the appointment.
// LiveKit creates rooms on-demand when the first participant joins.
func (e *LiveKitEngine) OpenSession(_ context.Context, appt *store.Appointment) (string, error) {
	return fmt.Sprintf("agriai-call-%s", appt.ID), nil
}

// CloseSession is a no-op: LiveKit rooms expire once empty.
func (e *LiveKitEngine) CloseSession(_ context.Context, _ *store.Appointment) error {
	return nil
}

// GenerateJoinInfo creates join credentials for a user to join the call.
func (e *LiveKitEngine) GenerateJoinInfo(_ context.Context, appt *store.Appointment, userID, displayName string) (*callengine.JoinInfo, error) {
	if appt.SessionToken == nil || *appt.SessionToken == "" {
		return nil, ErrNoSession
	}
	room := *appt.SessionToken
	identity := "user-" + userID

	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     room,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(displayName).
		SetValidFor(e.tokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &callengine.JoinInfo{
		URL:      e.wsURL,
		Token:    token,
		RoomName: room,
		Identity: identity,
	}, nil
}

// Ensure LiveKitEngine implements callengine.Engine
var _ callengine.Engine = (*LiveKitEngine)(nil)

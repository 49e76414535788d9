package livekit

import (
	"context"
	"errors"
	"testing"

	"github.com/livekit/protocol/auth"

	"github.com/agriai/agriai-server/internal/store"
)

func TestSessionAndJoinInfo(t *testing.T) {
	ctx := context.Background()
	engine := New("devkey", "devsecret-devsecret-devsecret-00", "ws://localhost:7880")
	appt := &store.Appointment{ID: "A1", ExpertUserID: "E1"}

	if _, err := engine.GenerateJoinInfo(ctx, appt, "E1", "Expert"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	session, err := engine.OpenSession(ctx, appt)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if session != "agriai-call-A1" {
		t.Fatalf("unexpected session token %q", session)
	}
	appt.SessionToken = &session

	info, err := engine.GenerateJoinInfo(ctx, appt, "E1", "Expert")
	if err != nil {
		t.Fatalf("join info: %v", err)
	}
	if info.RoomName != session || info.Identity != "user-E1" || info.URL != "ws://localhost:7880" {
		t.Fatalf("unexpected join info: %+v", info)
	}

	verifier, err := auth.ParseAPIToken(info.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if verifier.Identity() != "user-E1" {
		t.Fatalf("unexpected identity %q", verifier.Identity())
	}
}

package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/callengine"
	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/store"
)

// Common errors for appointment operations.
var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidAppointment  = errors.New("invalid appointment")
	ErrInvalidCallStatus   = errors.New("invalid call status")
	ErrNotParticipant      = errors.New("not a participant in this appointment")
	ErrCallsDisabled       = errors.New("calls are not enabled")
)

// Notifier receives call-status transitions after they are persisted.
type Notifier interface {
	PublishCallStatusChanged(appt store.Appointment, status store.CallStatus, sessionToken *string)
}

// Service provides appointment and call-signaling business logic.
type Service struct {
	store  store.AppointmentStore
	notify Notifier
	engine callengine.Engine
	log    *zerolog.Logger
}

// New creates a new appointment service.
// engine can be nil if LiveKit is not enabled.
func New(st store.AppointmentStore, notify Notifier, engine callengine.Engine, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:  st,
		notify: notify,
		engine: engine,
		log:    logger,
	}
}

// Create books an appointment with an expert. The call starts as not_requested.
func (s *Service) Create(ctx context.Context, appt *store.Appointment) error {
	appt.FarmerName = strings.TrimSpace(appt.FarmerName)
	appt.Issue = strings.TrimSpace(appt.Issue)
	if appt.FarmerName == "" || appt.ExpertUserID == "" || appt.Issue == "" || len(appt.Crops) == 0 {
		return fmt.Errorf("%w: farmerName, expertUserId, issue and crops are required", ErrInvalidAppointment)
	}
	appt.CallStatus = store.CallStatusNotRequested
	appt.SessionToken = nil

	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		return fmt.Errorf("save appointment: %w", err)
	}
	s.log.Info().Str("appointment_id", appt.ID).Str("expert_id", appt.ExpertUserID).Msg("appointment created")
	return nil
}

// Get returns an appointment by id.
func (s *Service) Get(ctx context.Context, id string) (*store.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListForExpert returns the appointments booked with an expert.
func (s *Service) ListForExpert(ctx context.Context, expertUserID string) ([]*store.Appointment, error) {
	appts, err := s.store.ListAppointmentsForExpert(ctx, expertUserID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// UpdatePreferredTime records the farmer's preferred slot.
func (s *Service) UpdatePreferredTime(ctx context.Context, id, preferredTime string) (*store.Appointment, error) {
	if strings.TrimSpace(preferredTime) == "" {
		return nil, fmt.Errorf("%w: preferredTime is required", ErrInvalidAppointment)
	}
	appt, err := s.store.UpdatePreferredTime(ctx, id, preferredTime)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("update preferred time: %w", err)
	}
	return appt, nil
}

// UpdateCallStatus drives the call-signaling state machine. Any of the five
// statuses is accepted from any state; a value outside them is rejected and
// the record is left untouched. The notification is best-effort and never
// fails the update.
func (s *Service) UpdateCallStatus(ctx context.Context, id, requested string, sessionToken *string) (*store.Appointment, error) {
	status, err := core.ParseCallStatus(requested)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCallStatus, requested)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if core.IsBackwards(current.CallStatus, status) {
		s.log.Warn().
			Str("appointment_id", id).
			Str("from", string(current.CallStatus)).
			Str("to", string(status)).
			Msg("backwards call status transition")
	}

	if sessionToken != nil && *sessionToken == "" {
		sessionToken = nil
	}
	if status == store.CallStatusFarmerRequested && sessionToken == nil && s.engine != nil {
		token, err := s.engine.OpenSession(ctx, current)
		if err != nil {
			s.log.Error().Err(err).Str("appointment_id", id).Msg("open call session")
		} else {
			sessionToken = &token
		}
	}

	updated, err := s.store.UpdateCallStatus(ctx, id, status, sessionToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("update call status: %w", err)
	}

	if status == store.CallStatusEnded && s.engine != nil {
		if err := s.engine.CloseSession(ctx, updated); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", id).Msg("close call session")
		}
	}

	s.log.Info().
		Str("appointment_id", id).
		Str("call_status", string(status)).
		Msg("call status updated")
	s.notify.PublishCallStatusChanged(*updated, status, sessionToken)
	return updated, nil
}

// JoinInfo returns media credentials for one of the two parties.
func (s *Service) JoinInfo(ctx context.Context, id, userID string) (*callengine.JoinInfo, error) {
	if s.engine == nil {
		return nil, ErrCallsDisabled
	}
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var displayName string
	switch {
	case appt.ExpertUserID == userID:
		displayName = "Expert"
	case appt.FarmerUserID != nil && *appt.FarmerUserID == userID:
		displayName = appt.FarmerName
	default:
		return nil, ErrNotParticipant
	}

	info, err := s.engine.GenerateJoinInfo(ctx, appt, userID, displayName)
	if err != nil {
		return nil, fmt.Errorf("generate join info: %w", err)
	}
	return info, nil
}

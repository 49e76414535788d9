package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/service/appointments"
	"github.com/agriai/agriai-server/internal/store"
)

// AppointmentHandlers provides HTTP handlers for appointments and call signaling.
type AppointmentHandlers struct {
	service *appointments.Service
	log     *zerolog.Logger
}

// NewAppointmentHandlers creates a new appointment handlers instance.
func NewAppointmentHandlers(svc *appointments.Service, logger *zerolog.Logger) *AppointmentHandlers {
	return &AppointmentHandlers{
		service: svc,
		log:     logger,
	}
}

// CreateAppointmentRequest represents the request body for booking an expert.
type CreateAppointmentRequest struct {
	FarmerName    string   `json:"farmerName" binding:"required"`
	FarmerUserID  *string  `json:"farmerUserId"`
	ExpertUserID  string   `json:"expertUserId" binding:"required"`
	Crops         []string `json:"crops" binding:"required,min=1"`
	Issue         string   `json:"issue" binding:"required"`
	Location      string   `json:"location"`
	Languages     []string `json:"languages"`
	PreferredTime *string  `json:"preferredTime"`
}

// PreferredTimeRequest represents the request body for rescheduling.
type PreferredTimeRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required"`
	PreferredTime string `json:"preferredTime" binding:"required"`
}

// CallStatusRequest drives the call-signaling state machine.
// RoomName carries the optional session token.
type CallStatusRequest struct {
	AppointmentID string  `json:"appointmentId" binding:"required"`
	CallStatus    string  `json:"callStatus" binding:"required"`
	RoomName      *string `json:"roomName"`
}

// CreateAppointment books an appointment. The caller is the farmer unless
// farmerUserId is given explicitly.
// POST /api/appointments
func (h *AppointmentHandlers) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create appointment request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	farmer := req.FarmerUserID
	if farmer == nil {
		if uid := currentUserID(c); uid != "" {
			farmer = &uid
		}
	}

	appt := &store.Appointment{
		FarmerName:    req.FarmerName,
		FarmerUserID:  farmer,
		ExpertUserID:  req.ExpertUserID,
		Crops:         req.Crops,
		Issue:         req.Issue,
		Location:      req.Location,
		Languages:     req.Languages,
		PreferredTime: req.PreferredTime,
	}
	if err := h.service.Create(c.Request.Context(), appt); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

// ListForExpert returns the appointments booked with an expert.
// GET /api/appointments/expert/:expertId
func (h *AppointmentHandlers) ListForExpert(c *gin.Context) {
	list, err := h.service.ListForExpert(c.Request.Context(), c.Param("expertId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if list == nil {
		list = []*store.Appointment{}
	}
	c.JSON(http.StatusOK, list)
}

// UpdatePreferredTime records a new preferred slot.
// PUT /api/appointments/preferred-time
func (h *AppointmentHandlers) UpdatePreferredTime(c *gin.Context) {
	var req PreferredTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	appt, err := h.service.UpdatePreferredTime(c.Request.Context(), req.AppointmentID, req.PreferredTime)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// UpdateCallStatus applies a call-signaling transition.
// PUT /api/appointments/call-status
func (h *AppointmentHandlers) UpdateCallStatus(c *gin.Context) {
	var req CallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	appt, err := h.service.UpdateCallStatus(c.Request.Context(), req.AppointmentID, req.CallStatus, req.RoomName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// JoinCall returns media credentials for the caller.
// GET /api/appointments/:id/call/join
func (h *AppointmentHandlers) JoinCall(c *gin.Context) {
	info, err := h.service.JoinInfo(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *AppointmentHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appointments.ErrInvalidAppointment), errors.Is(err, appointments.ErrInvalidCallStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, appointments.ErrAppointmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "appointment not found"})
	case errors.Is(err, appointments.ErrNotParticipant):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, appointments.ErrCallsDisabled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("appointment request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

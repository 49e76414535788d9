package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/core"
)

// APIHandlers provides operational endpoints for the realtime layer.
type APIHandlers struct {
	dispatcher *core.Dispatcher
	log        *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(dispatcher *core.Dispatcher, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		dispatcher: dispatcher,
		log:        logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatsResponse describes the live state of the realtime layer.
type StatsResponse struct {
	Connections   int    `json:"connections"`
	Rooms         int    `json:"rooms"`
	Running       bool   `json:"running"`
	DroppedEvents uint64 `json:"droppedEvents"`
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Stats reports connection, room and drop counters.
// GET /api/realtime/stats
func (h *APIHandlers) Stats(c *gin.Context) {
	clients, rooms := h.dispatcher.Hub().Stats()
	c.JSON(http.StatusOK, StatsResponse{
		Connections:   clients,
		Rooms:         rooms,
		Running:       h.dispatcher.Running(),
		DroppedEvents: h.dispatcher.Dropped(),
	})
}

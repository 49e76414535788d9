package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/auth"
	"github.com/agriai/agriai-server/internal/config"
	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/service/appointments"
	"github.com/agriai/agriai-server/internal/service/orders"
)

// Services are the collaborators the HTTP layer routes to.
type Services struct {
	Dispatcher   *core.Dispatcher
	Auth         *auth.Service
	Orders       *orders.Service
	Appointments *appointments.Service
}

// NewServer builds an HTTP server with the websocket endpoint and REST routes.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(svc, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler serves the websocket endpoint from a plain mux and every other
// path through the gin router. The upgrade must see the raw ResponseWriter:
// gin's writer refuses to hijack once the 101 headers are written.
func NewHandler(svc Services, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(svc.Dispatcher, svc.Auth, cfg, logger))
	mux.Handle("/", NewRouter(svc, logger))
	return mux
}

// NewRouter registers the REST routes on a gin engine.
func NewRouter(svc Services, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(svc.Dispatcher, logger)
	orderHandlers := NewOrderHandlers(svc.Orders, logger)
	appointmentHandlers := NewAppointmentHandlers(svc.Appointments, logger)

	router.GET("/health", apiHandlers.Health)

	api := router.Group("/api", AuthMiddleware(svc.Auth, logger))
	{
		api.POST("/orders", orderHandlers.CreateOrder)
		api.GET("/orders", orderHandlers.ListMyOrders)
		api.POST("/orders/:id/cancel", orderHandlers.CancelOrder)

		api.POST("/appointments", appointmentHandlers.CreateAppointment)
		api.GET("/appointments/expert/:expertId", appointmentHandlers.ListForExpert)
		api.PUT("/appointments/preferred-time", appointmentHandlers.UpdatePreferredTime)
		api.PUT("/appointments/call-status", appointmentHandlers.UpdateCallStatus)
		api.GET("/appointments/:id/call/join", appointmentHandlers.JoinCall)
	}

	admin := api.Group("", RequireAdmin())
	{
		admin.PUT("/orders/:id/status", orderHandlers.UpdateOrderStatus)
		admin.PATCH("/orders/:id/status", orderHandlers.UpdateOrderStatus)
		admin.GET("/realtime/stats", apiHandlers.Stats)
	}

	return router
}

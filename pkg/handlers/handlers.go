package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hoangteo0103/ticket-reservations/pkg/api"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/admin"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/availability"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/checkins"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/reservations"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/respond"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/websockets"
	"github.com/hoangteo0103/ticket-reservations/pkg/middleware"
)

// ApiHandler implements the server interface by composing the per-resource handlers.
type ApiHandler struct {
	*reservations.ReservationsHandler
	*availability.AvailabilityHandler
	*admin.AdminHandler
	*checkins.CheckInsHandler
}

// Dependencies are the services the HTTP surface calls into.
type Dependencies struct {
	Holds     reservations.HoldService
	Completer reservations.Completer
	Snapshots availability.SnapshotReader
	Admin     admin.ReservationAdmin
	Cache     admin.CacheAdmin
	CheckIns  checkins.CheckInLedger
	Logger    *slog.Logger
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(deps Dependencies) *ApiHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ApiHandler{
		ReservationsHandler: reservations.NewReservationsHandler(deps.Holds, deps.Completer, logger),
		AvailabilityHandler: availability.NewAvailabilityHandler(deps.Snapshots, logger),
		AdminHandler:        admin.NewAdminHandler(deps.Admin, deps.Cache, logger),
		CheckInsHandler:     checkins.NewCheckInsHandler(deps.CheckIns, logger),
	}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)

// NewRouter mounts the API, the health check and, when ws is not nil, the
// availability subscription endpoint.
func NewRouter(handler api.ServerInterface, ws *websockets.Handler, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.Tracing)
	router.Use(middleware.NewStructuredLogger(logger))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.Data(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if ws != nil {
		router.Handle("/ws", ws)
	}

	api.HandlerFromMux(handler, router)
	return router
}

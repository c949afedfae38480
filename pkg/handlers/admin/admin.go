package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hoangteo0103/ticket-reservations/pkg/api"
	"github.com/hoangteo0103/ticket-reservations/pkg/availability"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/respond"
	"github.com/hoangteo0103/ticket-reservations/pkg/mapping"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	rsv "github.com/hoangteo0103/ticket-reservations/pkg/reservations"
)

// ReservationAdmin lists and sweeps holds across all buyers.
type ReservationAdmin interface {
	ListAll(ctx context.Context, filter rsv.ListFilter) (*rsv.Page, error)
	SweepExpired(ctx context.Context) (int, error)
}

// CacheAdmin drops cached availability figures.
type CacheAdmin interface {
	InvalidateAll()
	Cached() int
}

// Make sure we conform to the interfaces
var (
	_ ReservationAdmin = (*rsv.Manager)(nil)
	_ CacheAdmin       = (*availability.Tracker)(nil)
)

// AdminHandler holds the dependencies for administrative handlers.
type AdminHandler struct {
	Reservations ReservationAdmin
	Cache        CacheAdmin
	Logger       *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reservations ReservationAdmin, cache CacheAdmin, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{Reservations: reservations, Cache: cache, Logger: logger}
}

// AdminListReservations pages through every hold, optionally filtered.
func (h *AdminHandler) AdminListReservations(w http.ResponseWriter, r *http.Request, params api.AdminListReservationsParams) {
	var filter rsv.ListFilter
	if params.EventId != nil {
		filter.EventID = *params.EventId
	}
	if params.Status != nil {
		filter.Status = models.ReservationStatus(*params.Status)
	}
	if params.Page != nil {
		filter.Page = *params.Page
	}
	if params.PageSize != nil {
		filter.PageSize = *params.PageSize
	}

	page, err := h.Reservations.ListAll(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	respond.Data(w, http.StatusOK, mapping.ToApiReservationPage(page))
}

// AdminSweepExpired releases every overdue hold now.
func (h *AdminHandler) AdminSweepExpired(w http.ResponseWriter, r *http.Request) {
	released, err := h.Reservations.SweepExpired(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	h.Logger.InfoContext(r.Context(), "manual expiration sweep", "released", released)
	respond.Data(w, http.StatusOK, api.SweepResult{Released: released})
}

// AdminInvalidateAvailability drops every cached availability figure.
func (h *AdminHandler) AdminInvalidateAvailability(w http.ResponseWriter, r *http.Request) {
	dropped := h.Cache.Cached()
	h.Cache.InvalidateAll()

	h.Logger.InfoContext(r.Context(), "availability cache invalidated", "entries", dropped)
	respond.Data(w, http.StatusOK, api.InvalidationResult{Invalidated: dropped})
}

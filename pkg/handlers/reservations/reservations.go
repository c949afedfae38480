package reservations

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hoangteo0103/ticket-reservations/pkg/api"
	"github.com/hoangteo0103/ticket-reservations/pkg/fulfillment"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/respond"
	"github.com/hoangteo0103/ticket-reservations/pkg/mapping"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	rsv "github.com/hoangteo0103/ticket-reservations/pkg/reservations"
)

// HoldService is the part of the reservation manager the handlers call.
type HoldService interface {
	Reserve(ctx context.Context, in rsv.ReserveInput) (*models.Reservation, error)
	View(r *models.Reservation) *models.ReservationView
	Get(ctx context.Context, id string) (*models.ReservationView, error)
	Cancel(ctx context.Context, id string) error
	ListForBuyer(ctx context.Context, buyer string, status models.ReservationStatus, limit, offset int) ([]models.ReservationView, error)
}

// Completer finalizes a hold into a sale.
type Completer interface {
	Complete(ctx context.Context, orderID, paymentProof string) (*fulfillment.Outcome, error)
}

// Make sure we conform to the interfaces
var (
	_ HoldService = (*rsv.Manager)(nil)
	_ Completer   = (*fulfillment.Orchestrator)(nil)
)

// ReservationsHandler holds the dependencies for reservation handlers.
type ReservationsHandler struct {
	Holds     HoldService
	Completer Completer
	Logger    *slog.Logger
}

// NewReservationsHandler creates a new ReservationsHandler.
func NewReservationsHandler(holds HoldService, completer Completer, logger *slog.Logger) *ReservationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationsHandler{Holds: holds, Completer: completer, Logger: logger}
}

// CreateReservation places a hold.
func (h *ReservationsHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var newReservation api.NewReservation
	if err := respond.Decode(r, &newReservation); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	created, err := h.Holds.Reserve(r.Context(), mapping.ToDomainReserveInput(&newReservation))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	respond.Data(w, http.StatusCreated, mapping.ToApiReservation(h.Holds.View(created)))
}

// ListReservations lists a buyer's holds.
func (h *ReservationsHandler) ListReservations(w http.ResponseWriter, r *http.Request, params api.ListReservationsParams) {
	var status models.ReservationStatus
	if params.Status != nil {
		status = models.ReservationStatus(*params.Status)
	}
	limit, offset := 0, 0
	if params.Limit != nil {
		limit = *params.Limit
	}
	if params.Offset != nil {
		offset = *params.Offset
	}

	views, err := h.Holds.ListForBuyer(r.Context(), params.Buyer, status, limit, offset)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	respond.Data(w, http.StatusOK, mapping.ToApiReservations(views))
}

// GetReservation returns one hold with its remaining time.
func (h *ReservationsHandler) GetReservation(w http.ResponseWriter, r *http.Request, reservationId string) {
	view, err := h.Holds.Get(r.Context(), reservationId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	respond.Data(w, http.StatusOK, mapping.ToApiReservation(view))
}

// CancelReservation releases a hold at the buyer's request.
func (h *ReservationsHandler) CancelReservation(w http.ResponseWriter, r *http.Request, reservationId string) {
	if err := h.Holds.Cancel(r.Context(), reservationId); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	view, err := h.Holds.Get(r.Context(), reservationId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.Data(w, http.StatusOK, mapping.ToApiReservation(view))
}

// CompleteReservation turns a hold into a sale. Degraded sales still answer 200
// and list what did not complete.
func (h *ReservationsHandler) CompleteReservation(w http.ResponseWriter, r *http.Request, reservationId string) {
	var body api.CompleteReservation
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	outcome, err := h.Completer.Complete(r.Context(), reservationId, body.PaymentProof)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if outcome.Degraded() {
		h.Logger.WarnContext(r.Context(), "sale completed with degradations",
			"reservation_id", reservationId,
			"degradations", len(outcome.Degradations),
		)
	}

	respond.Data(w, http.StatusOK, mapping.ToApiCompletion(outcome))
}

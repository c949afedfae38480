package availability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hoangteo0103/ticket-reservations/pkg/availability"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/respond"
	"github.com/hoangteo0103/ticket-reservations/pkg/mapping"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// SnapshotReader serves availability figures.
type SnapshotReader interface {
	Get(ctx context.Context, eventID, ticketTypeID string) (*models.AvailabilitySnapshot, error)
}

// Make sure we conform to the interface
var _ SnapshotReader = (*availability.Tracker)(nil)

// AvailabilityHandler holds the dependencies for availability handlers.
type AvailabilityHandler struct {
	Snapshots SnapshotReader
	Logger    *slog.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(snapshots SnapshotReader, logger *slog.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityHandler{Snapshots: snapshots, Logger: logger}
}

// GetAvailability returns the current figures for a ticket type.
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request, eventId string, ticketTypeId string) {
	snap, err := h.Snapshots.Get(r.Context(), eventId, ticketTypeId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	respond.Data(w, http.StatusOK, mapping.ToApiAvailability(snap))
}

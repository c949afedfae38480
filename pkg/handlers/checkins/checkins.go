package checkins

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hoangteo0103/ticket-reservations/pkg/api"
	"github.com/hoangteo0103/ticket-reservations/pkg/checkin"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers/respond"
	"github.com/hoangteo0103/ticket-reservations/pkg/mapping"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// CheckInLedger records and reads venue entries.
type CheckInLedger interface {
	RecordCheckIn(ctx context.Context, tokenID string, info checkin.VerifyingInfo) (*models.CheckInRecord, bool, error)
	Get(ctx context.Context, tokenID string) (*models.CheckInRecord, error)
	ListForEvent(ctx context.Context, eventID string) ([]models.CheckInRecord, error)
}

// Make sure we conform to the interface
var _ CheckInLedger = (*checkin.Ledger)(nil)

// CheckInsHandler holds the dependencies for check-in handlers.
type CheckInsHandler struct {
	Ledger CheckInLedger
	Logger *slog.Logger
}

// NewCheckInsHandler creates a new CheckInsHandler.
func NewCheckInsHandler(ledger CheckInLedger, logger *slog.Logger) *CheckInsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckInsHandler{Ledger: ledger, Logger: logger}
}

// RecordCheckIn checks a ticket in. A repeated check-in answers 200 with the
// original record instead of 201.
func (h *CheckInsHandler) RecordCheckIn(w http.ResponseWriter, r *http.Request) {
	var body api.NewCheckIn
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	record, already, err := h.Ledger.RecordCheckIn(r.Context(), body.TokenId, checkin.VerifyingInfo{
		Agent:          body.VerifyingAgent,
		PresentedOwner: body.PresentedOwner,
		EventID:        body.EventId,
	})
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	status := http.StatusCreated
	if already {
		status = http.StatusOK
	}
	respond.Data(w, status, api.CheckInResult{CheckIn: *mapping.ToApiCheckIn(record), AlreadyCheckedIn: already})
}

// GetCheckIn returns the check-in of one ticket.
func (h *CheckInsHandler) GetCheckIn(w http.ResponseWriter, r *http.Request, tokenId string) {
	record, err := h.Ledger.Get(r.Context(), tokenId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	respond.Data(w, http.StatusOK, mapping.ToApiCheckIn(record))
}

// ListEventCheckIns returns every check-in recorded for an event.
func (h *CheckInsHandler) ListEventCheckIns(w http.ResponseWriter, r *http.Request, eventId string) {
	records, err := h.Ledger.ListForEvent(r.Context(), eventId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	respond.Data(w, http.StatusOK, mapping.ToApiCheckIns(records))
}

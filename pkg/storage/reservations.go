package storage

import (
	"context"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// ReservationFilter narrows a reservation scan. Zero-valued fields do not filter.
type ReservationFilter struct {
	EventID      string
	TicketTypeID string
	BuyerAddress string
	Status       models.ReservationStatus
	// ExpiresBefore keeps reservations whose ExpiresAt is not after this instant.
	ExpiresBefore time.Time
}

// Match reports whether r satisfies the filter.
func (f ReservationFilter) Match(r *models.Reservation) bool {
	if f.EventID != "" && r.EventID != f.EventID {
		return false
	}
	if f.TicketTypeID != "" && r.TicketTypeID != f.TicketTypeID {
		return false
	}
	if f.BuyerAddress != "" && r.BuyerAddress != f.BuyerAddress {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.ExpiresBefore.IsZero() && r.ExpiresAt.After(f.ExpiresBefore) {
		return false
	}
	return true
}

// ReservationReader defines the interface for reading reservation data.
type ReservationReader interface {
	// GetReservation retrieves a reservation by its ID. It returns ErrNotFound when absent.
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)

	// ScanReservations returns every reservation matching the filter, in no particular order.
	ScanReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error)
}

// ReservationWriter defines the interface for creating reservations and moving them through their lifecycle.
type ReservationWriter interface {
	// PutReservation stores a new reservation. It returns ErrAlreadyExists if the ID is taken.
	PutReservation(ctx context.Context, r *models.Reservation) error

	// TransitionReservation atomically moves a reservation from one status to another and
	// returns the updated record. It returns ErrConditionFailed if the current status is not from.
	TransitionReservation(ctx context.Context, id string, from, to models.ReservationStatus, at time.Time) (*models.Reservation, error)
}

// ReservationStore combines the reader and writer interfaces.
type ReservationStore interface {
	ReservationReader
	ReservationWriter
}

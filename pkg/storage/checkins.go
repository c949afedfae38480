package storage

import (
	"context"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// CheckInStore holds at most one check-in record per token.
type CheckInStore interface {
	// CreateCheckIn stores a record if none exists for its token. It returns ErrAlreadyExists otherwise.
	CreateCheckIn(ctx context.Context, record *models.CheckInRecord) error

	// GetCheckIn retrieves the record for a token. It returns ErrNotFound when absent.
	GetCheckIn(ctx context.Context, tokenID string) (*models.CheckInRecord, error)

	// ListCheckInsByEvent retrieves every record for an event.
	ListCheckInsByEvent(ctx context.Context, eventID string) ([]models.CheckInRecord, error)
}

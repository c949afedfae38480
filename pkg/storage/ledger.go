package storage

import (
	"context"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// SupplyLedger is the authoritative store of total and sold units per inventory bucket.
type SupplyLedger interface {
	// GetSupply retrieves the ledger row for an event's ticket type.
	GetSupply(ctx context.Context, eventID, ticketTypeID string) (*models.Supply, error)

	// IncrementSold adds quantity to the sold count of an event's ticket type.
	IncrementSold(ctx context.Context, eventID, ticketTypeID string, quantity int) error
}

// SupplyWriter seeds ledger rows.
type SupplyWriter interface {
	// CreateSupply writes a ledger row only if none exists for its key, and
	// returns ErrAlreadyExists otherwise. Startup seeding goes through here so a
	// restart never touches a live sold count.
	CreateSupply(ctx context.Context, supply *models.Supply) error

	// PutSupply replaces a ledger row unconditionally. Tooling and tests only.
	PutSupply(ctx context.Context, supply *models.Supply) error
}

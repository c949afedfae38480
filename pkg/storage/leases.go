package storage

import (
	"context"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// LeaseStore keeps named leases that at most one owner holds at a time.
type LeaseStore interface {
	// AcquireLease writes lease if its name is free, already held by
	// lease.Owner, or held under a lease that expired at or before now.
	// It returns ErrConditionFailed when another owner holds a live lease.
	AcquireLease(ctx context.Context, lease *models.WriterLease, now time.Time) error

	// ReleaseLease deletes the named lease if owner still holds it.
	ReleaseLease(ctx context.Context, name, owner string) error
}

// Package lease keeps a single process as the writer of new holds.
//
// Hold capacity is checked against a process-local cache under a
// process-local lock, so only one process may place holds at a time. That
// process keeps a named lease in the store. The lease is renewed lazily, on
// the first Ensure after half its TTL has passed, so an idle writer lets it
// lapse and a successor can take over once it expires.
package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

const (
	// WriterName is the lease every hold-placing process competes for.
	WriterName = "reservation-writer"

	DefaultTTL = 30 * time.Second
)

// ErrHeldElsewhere is returned by Ensure when another owner holds a live lease.
var ErrHeldElsewhere = errors.New("writer lease is held by another instance")

// Lease is one owner's claim on a named lease.
type Lease struct {
	store  storage.LeaseStore
	name   string
	owner  string
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	held    bool
	renewAt time.Time
}

// New creates a Lease for owner. Nothing is written until Ensure.
func New(store storage.LeaseStore, name, owner string, ttl time.Duration, clk clock.Clock, logger *slog.Logger) *Lease {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Lease{store: store, name: name, owner: owner, ttl: ttl, clock: clk, logger: logger}
}

// Owner returns the owner this Lease writes.
func (l *Lease) Owner() string {
	return l.owner
}

// Ensure returns nil while this owner holds the lease, acquiring or renewing
// it when due. It returns ErrHeldElsewhere when another owner holds it.
func (l *Lease) Ensure(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.held && now.Before(l.renewAt) {
		return nil
	}

	err := l.store.AcquireLease(ctx, &models.WriterLease{Name: l.name, Owner: l.owner, ExpiresAt: now.Add(l.ttl)}, now)
	if err != nil {
		wasHeld := l.held
		l.held = false
		if errors.Is(err, storage.ErrConditionFailed) {
			if wasHeld {
				l.logger.WarnContext(ctx, "writer lease taken over", "lease", l.name, "owner", l.owner)
			}
			return ErrHeldElsewhere
		}
		return fmt.Errorf("failed to renew writer lease: %w", err)
	}

	if !l.held {
		l.logger.InfoContext(ctx, "writer lease acquired", "lease", l.name, "owner", l.owner, "ttl", l.ttl.String())
	}
	l.held = true
	l.renewAt = now.Add(l.ttl / 2)
	return nil
}

// Release gives the lease up so a successor does not wait out the TTL.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return nil
	}
	l.held = false
	if err := l.store.ReleaseLease(ctx, l.name, l.owner); err != nil {
		return fmt.Errorf("failed to release writer lease: %w", err)
	}
	return nil
}

// Package availability maintains the derived "available units" figure per
// inventory bucket.
//
// The cache is a read optimization only. Oversell prevention rests on the
// reservation manager's per-key critical section; the tracker just has to
// never hand that critical section a figure computed before the latest
// state change on the key. Every entry therefore carries a generation: any
// state change bumps it, and a recompute that started under an older
// generation is returned to its caller but never stored.
//
// Holds can also be settled by other processes sharing the store (the expiry
// and reconciliation functions), which cannot reach this cache. Entries are
// therefore also dropped once they are older than the tracker's max age.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxAge bounds how long a cached snapshot is served without a source read.
const DefaultMaxAge = 5 * time.Second

type generation struct {
	epoch uint64
	key   uint64
}

// Tracker computes and caches AvailabilitySnapshots.
type Tracker struct {
	ledger       storage.SupplyLedger
	reservations storage.ReservationReader
	clock        clock.Clock
	logger       *slog.Logger

	maxAge time.Duration

	mu      sync.Mutex
	entries map[models.InventoryKey]entry
	gens    map[models.InventoryKey]uint64
	epoch   uint64
	// lastSupply keeps the most recent ledger read per key, surviving
	// invalidation, for use when the ledger is unreachable.
	lastSupply map[models.InventoryKey]models.Supply
	// settling counts units of completed holds whose sold count increment has
	// not landed yet. They stay counted as held until it does or is abandoned.
	settling map[models.InventoryKey]int

	group singleflight.Group
}

type entry struct {
	snap models.AvailabilitySnapshot
	// loadedAt is when the snapshot was last read from source. Patches made by
	// Reserve do not move it.
	loadedAt time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxAge sets how long a snapshot may be served from cache.
func WithMaxAge(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.maxAge = d
		}
	}
}

// NewTracker creates a Tracker.
func NewTracker(ledger storage.SupplyLedger, reservations storage.ReservationReader, clk clock.Clock, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		ledger:       ledger,
		reservations: reservations,
		clock:        clk,
		logger:       logger,
		maxAge:       DefaultMaxAge,
		entries:      make(map[models.InventoryKey]entry),
		gens:         make(map[models.InventoryKey]uint64),
		lastSupply:   make(map[models.InventoryKey]models.Supply),
		settling:     make(map[models.InventoryKey]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get returns the snapshot for an event's ticket type, recomputing it on a cache miss.
func (t *Tracker) Get(ctx context.Context, eventID, ticketTypeID string) (*models.AvailabilitySnapshot, error) {
	key := models.InventoryKey{EventID: eventID, TicketTypeID: ticketTypeID}

	t.mu.Lock()
	if e, ok := t.entries[key]; ok && t.clock.Now().Sub(e.loadedAt) < t.maxAge {
		t.mu.Unlock()
		return &e.snap, nil
	}
	gen := generation{epoch: t.epoch, key: t.gens[key]}
	t.mu.Unlock()

	flight := fmt.Sprintf("%s#%d.%d", key, gen.epoch, gen.key)
	v, err, _ := t.group.Do(flight, func() (interface{}, error) {
		return t.recompute(ctx, key, gen)
	})
	if err != nil {
		return nil, err
	}
	snap := v.(models.AvailabilitySnapshot)
	return &snap, nil
}

func (t *Tracker) recompute(ctx context.Context, key models.InventoryKey, gen generation) (models.AvailabilitySnapshot, error) {
	stale := false
	supply, err := t.ledger.GetSupply(ctx, key.EventID, key.TicketTypeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.AvailabilitySnapshot{}, apperrors.New(apperrors.NotFound, "no supply for %s", key)
		}
		t.mu.Lock()
		last, ok := t.lastSupply[key]
		t.mu.Unlock()
		if !ok {
			return models.AvailabilitySnapshot{}, apperrors.Wrap(apperrors.AvailabilityUnknown, err, "availability for %s is unknown", key)
		}
		t.logger.WarnContext(ctx, "ledger read failed, using last known supply", "key", key.String(), "error", err)
		supply = &last
		stale = true
	}

	now := t.clock.Now()
	active, err := t.reservations.ScanReservations(ctx, storage.ReservationFilter{
		EventID:      key.EventID,
		TicketTypeID: key.TicketTypeID,
		Status:       models.RESERVED,
	})
	if err != nil {
		return models.AvailabilitySnapshot{}, apperrors.Wrap(apperrors.AvailabilityUnknown, err, "availability for %s is unknown", key)
	}

	t.mu.Lock()
	held := t.settling[key]
	t.mu.Unlock()
	for _, r := range active {
		// Overdue holds can no longer be completed, so they do not consume supply
		// even before the scheduler or sweep marks them expired.
		if r.ExpiresAt.After(now) {
			held += r.Quantity
		}
	}

	snap := models.AvailabilitySnapshot{
		EventID:             key.EventID,
		TicketTypeID:        key.TicketTypeID,
		TotalSupply:         supply.TotalSupply,
		SoldCount:           supply.SoldCount,
		ActiveReservedCount: held,
		UnitPrice:           supply.UnitPrice,
		ComputedAt:          now,
		Stale:               stale,
	}
	snap.Recount()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !stale {
		t.lastSupply[key] = *supply
		if t.epoch == gen.epoch && t.gens[key] == gen.key {
			t.entries[key] = entry{snap: snap, loadedAt: now}
		}
	}
	return snap, nil
}

// Reserve records quantity newly held on key in the cached entry, if any.
// Callers must hold the key's critical section and must already have stored the hold.
func (t *Tracker) Reserve(key models.InventoryKey, quantity int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gens[key]++
	e, ok := t.entries[key]
	if !ok {
		return
	}
	e.snap.ActiveReservedCount += quantity
	e.snap.ComputedAt = t.clock.Now()
	e.snap.Recount()
	t.entries[key] = e
}

// Settling counts quantity on key as held until done is called, and drops the
// cached entry both now and then. It covers a completed hold whose sold count
// increment is still being retried.
func (t *Tracker) Settling(key models.InventoryKey, quantity int) (done func()) {
	t.mu.Lock()
	t.settling[key] += quantity
	t.gens[key]++
	delete(t.entries, key)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.settling[key] -= quantity
			if t.settling[key] <= 0 {
				delete(t.settling, key)
			}
			t.gens[key]++
			delete(t.entries, key)
		})
	}
}

// Invalidate drops the cached entry for key so the next Get recomputes from source.
func (t *Tracker) Invalidate(key models.InventoryKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gens[key]++
	delete(t.entries, key)
}

// InvalidateAll clears the whole cache.
func (t *Tracker) InvalidateAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.epoch++
	clear(t.entries)
}

// Cached reports how many keys currently have a cached snapshot.
func (t *Tracker) Cached() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

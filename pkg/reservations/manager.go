// Package reservations owns the hold state machine.
//
// Every status change on a hold happens under the critical section of its
// (event, ticket type) key, and every store write is conditional on the hold
// still being reserved, so the status field settles races between the timer,
// the sweep, cancel and complete.
package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/availability"
	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
	"github.com/hoangteo0103/ticket-reservations/pkg/keylock"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/scheduler"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultHoldDuration = 15 * time.Minute
	DefaultMaxQuantity  = 5

	defaultPageSize = 20
	maxPageSize     = 100
)

// Manager creates, lists and settles reservations.
type Manager struct {
	store     storage.ReservationStore
	ledger    storage.SupplyLedger
	tracker   *availability.Tracker
	scheduler scheduler.Scheduler
	clock     clock.Clock
	locks     *keylock.Map
	logger    *slog.Logger
	tracer    trace.Tracer

	holdDuration  time.Duration
	maxQuantity   int
	ledgerBackOff func() backoff.BackOff
	observer      Observer
	writerCheck   func(ctx context.Context) error
}

// Observer is told about every key whose availability a hold change affected.
// It runs after the key lock is released.
type Observer func(ctx context.Context, key models.InventoryKey)

// Option configures a Manager.
type Option func(*Manager)

// WithHoldDuration sets how long a hold stays valid.
func WithHoldDuration(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.holdDuration = d
		}
	}
}

// WithMaxQuantity sets the largest quantity a single hold may take.
func WithMaxQuantity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxQuantity = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLedgerBackOff sets the retry policy for sold count increments.
func WithLedgerBackOff(policy func() backoff.BackOff) Option {
	return func(m *Manager) {
		if policy != nil {
			m.ledgerBackOff = policy
		}
	}
}

// WithObserver registers a callback for availability changes.
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		m.observer = observer
	}
}

// WithWriterCheck makes Reserve call check first and refuse the hold when it
// fails. It gates hold placement on this process being the single writer.
func WithWriterCheck(check func(ctx context.Context) error) Option {
	return func(m *Manager) {
		m.writerCheck = check
	}
}

func defaultLedgerBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

// NewManager creates a Manager. The scheduler's timers must call Release.
func NewManager(store storage.ReservationStore, ledger storage.SupplyLedger, tracker *availability.Tracker, sched scheduler.Scheduler, clk clock.Clock, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		ledger:        ledger,
		tracker:       tracker,
		scheduler:     sched,
		clock:         clk,
		locks:         keylock.New(),
		logger:        slog.Default(),
		tracer:        otel.Tracer("github.com/hoangteo0103/ticket-reservations/pkg/reservations"),
		holdDuration:  DefaultHoldDuration,
		maxQuantity:   DefaultMaxQuantity,
		ledgerBackOff: defaultLedgerBackOff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) changed(ctx context.Context, key models.InventoryKey) {
	if m.observer != nil {
		m.observer(ctx, key)
	}
}

// HoldDuration returns the configured hold duration.
func (m *Manager) HoldDuration() time.Duration {
	return m.holdDuration
}

// ReserveInput is the request to hold tickets.
type ReserveInput struct {
	EventID      string
	TicketTypeID string
	Quantity     int
	BuyerAddress string
}

func (m *Manager) validate(in ReserveInput) error {
	switch {
	case strings.TrimSpace(in.EventID) == "":
		return apperrors.New(apperrors.InvalidArgument, "event id is required")
	case strings.TrimSpace(in.TicketTypeID) == "":
		return apperrors.New(apperrors.InvalidArgument, "ticket type id is required")
	case strings.TrimSpace(in.BuyerAddress) == "":
		return apperrors.New(apperrors.InvalidArgument, "buyer address is required")
	case in.Quantity < 1 || in.Quantity > m.maxQuantity:
		return apperrors.New(apperrors.InvalidArgument, "quantity must be between 1 and %d", m.maxQuantity)
	}
	return nil
}

// Reserve places a hold on in.Quantity tickets if that many are available.
func (m *Manager) Reserve(ctx context.Context, in ReserveInput) (*models.Reservation, error) {
	ctx, span := m.tracer.Start(ctx, "reservations.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", in.EventID),
		attribute.String("ticket_type.id", in.TicketTypeID),
		attribute.Int("reservation.quantity", in.Quantity),
	)

	if err := m.validate(in); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r, err := m.reserve(ctx, in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("reservation.id", r.Id))

	if err := m.scheduler.Arm(ctx, r.Id, r.ExpiresAt); err != nil {
		// The hold is stored with its deadline; the sweep will release it.
		m.logger.ErrorContext(ctx, "failed to arm expiry timer", "reservation_id", r.Id, "error", err)
	}

	m.changed(ctx, r.Key())
	span.SetStatus(codes.Ok, "reserved")
	return r, nil
}

func (m *Manager) reserve(ctx context.Context, in ReserveInput) (*models.Reservation, error) {
	if m.writerCheck != nil {
		if err := m.writerCheck(ctx); err != nil {
			return nil, apperrors.Wrap(apperrors.AvailabilityUnknown, err, "this instance cannot place holds")
		}
	}

	key := models.InventoryKey{EventID: in.EventID, TicketTypeID: in.TicketTypeID}
	unlock := m.locks.Lock(key.String())
	defer unlock()

	snap, err := m.tracker.Get(ctx, in.EventID, in.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if snap.Stale {
		return nil, apperrors.New(apperrors.AvailabilityUnknown, "supply ledger unavailable for %s", key)
	}
	if snap.AvailableCount < in.Quantity {
		return nil, apperrors.New(apperrors.InsufficientInventory, "requested %d tickets but only %d available", in.Quantity, snap.AvailableCount)
	}

	now := m.clock.Now()
	r := &models.Reservation{
		Id:           uuid.NewString(),
		EventID:      in.EventID,
		TicketTypeID: in.TicketTypeID,
		Quantity:     in.Quantity,
		BuyerAddress: in.BuyerAddress,
		UnitPrice:    snap.UnitPrice,
		TotalPrice:   snap.UnitPrice * int64(in.Quantity),
		Status:       models.RESERVED,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.holdDuration),
		UpdatedAt:    now,
	}
	if err := m.store.PutReservation(ctx, r); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err, "failed to store reservation")
	}
	m.tracker.Reserve(key, in.Quantity)

	m.logger.InfoContext(ctx, "reservation created",
		"reservation_id", r.Id,
		"key", key.String(),
		"quantity", r.Quantity,
		"available", snap.AvailableCount-in.Quantity,
	)
	return r, nil
}

func (m *Manager) load(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := m.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.New(apperrors.NotFound, "reservation %s not found", id)
		}
		return nil, apperrors.Wrap(apperrors.Internal, err, "failed to load reservation")
	}
	return r, nil
}

func invalidState(r *models.Reservation) error {
	return apperrors.New(apperrors.InvalidState, "reservation %s is %s", r.Id, r.Status)
}

// transition moves a reserved hold to status under its key lock and invalidates
// the key. It returns storage.ErrConditionFailed if the hold already left reserved.
func (m *Manager) transition(ctx context.Context, r *models.Reservation, to models.ReservationStatus) (*models.Reservation, error) {
	updated, err := m.store.TransitionReservation(ctx, r.Id, models.RESERVED, to, m.clock.Now())
	if err != nil {
		return nil, err
	}
	m.tracker.Invalidate(r.Key())
	return updated, nil
}

// Cancel releases a reserved hold at the buyer's request.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	r, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != models.RESERVED {
		return invalidState(r)
	}

	unlock := m.locks.Lock(r.Key().String())
	_, err = m.transition(ctx, r, models.CANCELLED)
	unlock()
	if err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return m.settledElsewhere(ctx, r)
		}
		return apperrors.Wrap(apperrors.Internal, err, "failed to cancel reservation")
	}

	m.scheduler.Disarm(id)
	m.logger.InfoContext(ctx, "reservation cancelled", "reservation_id", id, "key", r.Key().String())
	m.changed(ctx, r.Key())
	return nil
}

// settledElsewhere reports the status a hold reached through a concurrent path.
func (m *Manager) settledElsewhere(ctx context.Context, r *models.Reservation) error {
	current, err := m.load(ctx, r.Id)
	if err != nil {
		return err
	}
	return invalidState(current)
}

// Get returns a reservation with its remaining hold time.
func (m *Manager) Get(ctx context.Context, id string) (*models.ReservationView, error) {
	r, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.View(r), nil
}

// View adds the server-computed time left to r. Only reserved holds have time left.
func (m *Manager) View(r *models.Reservation) *models.ReservationView {
	v := &models.ReservationView{Reservation: *r}
	if r.Status == models.RESERVED {
		if left := r.ExpiresAt.Sub(m.clock.Now()); left > 0 {
			v.TimeLeftSeconds = int64(left / time.Second)
		}
	}
	return v
}

// ListForBuyer returns a buyer's reservations, newest first.
func (m *Manager) ListForBuyer(ctx context.Context, buyer string, status models.ReservationStatus, limit, offset int) ([]models.ReservationView, error) {
	if strings.TrimSpace(buyer) == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "buyer address is required")
	}
	if status != "" && !status.Valid() {
		return nil, apperrors.New(apperrors.InvalidArgument, "unknown status %q", status)
	}
	if offset < 0 {
		return nil, apperrors.New(apperrors.InvalidArgument, "offset must not be negative")
	}
	limit = clampPageSize(limit)

	items, err := m.store.ScanReservations(ctx, storage.ReservationFilter{BuyerAddress: buyer, Status: status})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err, "failed to list reservations")
	}
	return m.views(paginate(items, offset, limit)), nil
}

// ListFilter narrows an administrative listing. Page is 1-based.
type ListFilter struct {
	EventID  string
	Status   models.ReservationStatus
	Page     int
	PageSize int
}

// Page is one page of an administrative listing.
type Page struct {
	Items    []models.ReservationView
	Total    int
	Page     int
	PageSize int
}

// ListAll returns every reservation matching filter, newest first.
func (m *Manager) ListAll(ctx context.Context, filter ListFilter) (*Page, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.New(apperrors.InvalidArgument, "unknown status %q", filter.Status)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	filter.PageSize = clampPageSize(filter.PageSize)

	items, err := m.store.ScanReservations(ctx, storage.ReservationFilter{EventID: filter.EventID, Status: filter.Status})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err, "failed to list reservations")
	}
	return &Page{
		Items:    m.views(paginate(items, (filter.Page-1)*filter.PageSize, filter.PageSize)),
		Total:    len(items),
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func clampPageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

// paginate orders items newest first, breaking ties by id, and slices out one page.
func paginate(items []models.Reservation, offset, limit int) []models.Reservation {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].Id > items[j].Id
	})
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (m *Manager) views(items []models.Reservation) []models.ReservationView {
	out := make([]models.ReservationView, 0, len(items))
	for i := range items {
		out = append(out, *m.View(&items[i]))
	}
	return out
}

// Release expires a hold whose deadline has passed. It is the callback of both
// the timer and the sweep, so a hold that is unknown, already settled or not
// yet due is a silent no-op reported as false.
func (m *Manager) Release(ctx context.Context, id string) (bool, error) {
	r, err := m.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load reservation %s: %w", id, err)
	}
	if r.Status != models.RESERVED || m.clock.Now().Before(r.ExpiresAt) {
		return false, nil
	}

	unlock := m.locks.Lock(r.Key().String())
	_, err = m.transition(ctx, r, models.EXPIRED)
	unlock()
	if err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to expire reservation %s: %w", id, err)
	}

	m.scheduler.Disarm(id)
	m.logger.InfoContext(ctx, "reservation expired", "reservation_id", id, "key", r.Key().String())
	m.changed(ctx, r.Key())
	return true, nil
}

// SweepExpired releases every reserved hold whose deadline has passed and
// returns how many it released. Failures on individual holds do not stop the sweep.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	due, err := m.store.ScanReservations(ctx, storage.ReservationFilter{
		Status:        models.RESERVED,
		ExpiresBefore: m.clock.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan due reservations: %w", err)
	}

	released := 0
	var errs []error
	for _, r := range due {
		ok, err := m.Release(ctx, r.Id)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to release due reservation", "reservation_id", r.Id, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			released++
		}
	}
	return released, errors.Join(errs...)
}

// Finalized is the result of completing a hold. LedgerErr is set when the
// sold count could not be incremented; the sale stands regardless.
type Finalized struct {
	Reservation *models.Reservation
	LedgerErr   error
}

// Finalize completes a reserved hold once accept approves it. Checks run in
// order: existence, status, deadline (an overdue hold is driven to expired),
// then accept. The first sold count increment runs in the same critical
// section as the transition. If it fails, the units are marked settling on
// the tracker before the lock is released and the increment is retried
// outside it, so no reader sees a completed hold that is neither held nor sold.
func (m *Manager) Finalize(ctx context.Context, id string, accept func(*models.Reservation) error) (*Finalized, error) {
	r, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RESERVED {
		return nil, invalidState(r)
	}

	key := r.Key()
	settled := false
	unlock := m.locks.Lock(key.String())
	defer func() {
		unlock()
		if settled {
			m.scheduler.Disarm(id)
			m.changed(ctx, key)
		}
	}()

	if !m.clock.Now().Before(r.ExpiresAt) {
		_, err := m.transition(ctx, r, models.EXPIRED)
		switch {
		case err == nil:
			settled = true
		case !errors.Is(err, storage.ErrConditionFailed):
			m.logger.ErrorContext(ctx, "failed to expire overdue reservation", "reservation_id", id, "error", err)
		}
		return nil, apperrors.New(apperrors.Expired, "reservation %s expired at %s", id, r.ExpiresAt.Format(time.RFC3339))
	}

	if accept != nil {
		if err := accept(r); err != nil {
			return nil, err
		}
	}

	completed, err := m.transition(ctx, r, models.COMPLETED)
	if err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return nil, m.settledElsewhere(ctx, r)
		}
		return nil, apperrors.Wrap(apperrors.Internal, err, "failed to complete reservation")
	}
	settled = true

	bg := context.WithoutCancel(ctx)
	ledgerErr := m.ledger.IncrementSold(bg, key.EventID, key.TicketTypeID, r.Quantity)
	if ledgerErr != nil && !errors.Is(ledgerErr, storage.ErrNotFound) {
		done := m.tracker.Settling(key, r.Quantity)
		unlock()
		ledgerErr = m.retryIncrementSold(bg, key, r.Quantity, ledgerErr)
		done()
	} else {
		// The transition already invalidated; the ledger write must also be visible.
		m.tracker.Invalidate(key)
	}
	if ledgerErr != nil {
		m.logger.ErrorContext(ctx, "CRITICAL: reservation completed but sold count was not incremented",
			"reservation_id", id,
			"key", key.String(),
			"quantity", r.Quantity,
			"error", ledgerErr,
		)
	}

	m.logger.InfoContext(ctx, "reservation completed", "reservation_id", id, "key", key.String())
	return &Finalized{Reservation: completed, LedgerErr: ledgerErr}, nil
}

// retryIncrementSold repeats a failed sold count increment under the ledger
// backoff policy. It returns the last error once the policy gives up.
func (m *Manager) retryIncrementSold(ctx context.Context, key models.InventoryKey, quantity int, err error) error {
	b := backoff.WithContext(m.ledgerBackOff(), ctx)
	b.Reset()
	for {
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		m.logger.WarnContext(ctx, "retrying sold count increment", "key", key.String(), "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		err = m.ledger.IncrementSold(ctx, key.EventID, key.TicketTypeID, quantity)
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
}

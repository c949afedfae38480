package fulfillment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/availability"
	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
	"github.com/hoangteo0103/ticket-reservations/pkg/issuance"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/reservations"
	"github.com/hoangteo0103/ticket-reservations/pkg/scheduler"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validProof = "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"

type mockIssuer struct {
	mock.Mock
}

func (m *mockIssuer) Issue(ctx context.Context, req issuance.Request) (*issuance.Result, error) {
	ret := m.Called(ctx, req)
	var res *issuance.Result
	if v := ret.Get(0); v != nil {
		res = v.(*issuance.Result)
	}
	return res, ret.Error(1)
}

type mockTicketSink struct {
	mock.Mock
}

func (m *mockTicketSink) SaveTickets(ctx context.Context, tickets []models.Ticket) error {
	return m.Called(ctx, tickets).Error(0)
}

type fixture struct {
	orch    *Orchestrator
	store   *memory.Store
	manager *reservations.Manager
	tracker *availability.Tracker
	issuer  *mockIssuer
	clock   *clock.Manual
}

// newFixture wires the engine over a memory store. A nil sink persists tickets to the store.
func newFixture(t *testing.T, sink storage.TicketSink) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutSupply(ctx, &models.Supply{EventID: "e", TicketTypeID: "t", TotalSupply: 100, SoldCount: 70, UnitPrice: 50}))

	clk := clock.NewManual(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	tracker := availability.NewTracker(store, store, clk, nil)
	timers := scheduler.NewLocalScheduler(clk, nil)
	t.Cleanup(timers.Stop)
	manager := reservations.NewManager(store, store, tracker, timers, clk)
	timers.Bind(manager.Release)

	issuer := new(mockIssuer)
	if sink == nil {
		sink = store
	}
	orch := NewOrchestrator(manager, issuer, store, sink, clk, WithIssueBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}))
	return &fixture{orch: orch, store: store, manager: manager, tracker: tracker, issuer: issuer, clock: clk}
}

func (f *fixture) hold(t *testing.T, quantity int) *models.Reservation {
	t.Helper()
	r, err := f.manager.Reserve(context.Background(), reservations.ReserveInput{EventID: "e", TicketTypeID: "t", Quantity: quantity, BuyerAddress: "buyer"})
	require.NoError(t, err)
	return r
}

func TestShapePolicy(t *testing.T) {
	cases := []struct {
		name  string
		proof string
		ok    bool
	}{
		{"Hex With Prefix", validProof, true},
		{"Hex Without Prefix", strings.TrimPrefix(validProof, "0x"), true},
		{"Long Opaque Token", "sig_3kd93kDk20dkeKDk3lD0", true},
		{"Exactly Twenty Characters", "abcdefghijklmnopqrst", false},
		{"Short", "paid", false},
		{"Empty", "", false},
		{"Whitespace Inside", "this is a long sentence of words", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ShapePolicy{}.Verify(context.Background(), &models.Reservation{}, tc.proof)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrPaymentRejected)
			}
		})
	}
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.hold(t, 2)
		f.issuer.On("Issue", mock.Anything, issuance.Request{
			OrderID: r.Id, BuyerAddress: "buyer", EventID: "e", TicketTypeID: "t", Quantity: 2,
		}).Return(&issuance.Result{TokenIDs: []string{"tok-1", "tok-2"}, TransactionRef: "tx-1"}, nil).Once()

		out, err := f.orch.Complete(ctx, r.Id, validProof)

		require.NoError(t, err)
		assert.False(t, out.Degraded())
		assert.Equal(t, models.COMPLETED, out.Reservation.Status)
		assert.Equal(t, []string{"tok-1", "tok-2"}, out.Sale.TokenIDs)
		assert.Equal(t, "tx-1", out.Sale.TransactionRef)

		sale, err := f.store.GetSale(ctx, r.Id)
		require.NoError(t, err)
		assert.Equal(t, out.Sale.TokenIDs, sale.TokenIDs)
		ticket, err := f.store.GetTicket(ctx, "tok-2")
		require.NoError(t, err)
		assert.Equal(t, "buyer", ticket.OwnerAddress)
		assert.False(t, ticket.Placeholder)

		snap, err := f.tracker.Get(ctx, "e", "t")
		require.NoError(t, err)
		assert.Equal(t, 72, snap.SoldCount)
		assert.Equal(t, 28, snap.AvailableCount)
		f.issuer.AssertExpectations(t)
	})

	t.Run("Second Complete Is Invalid State", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.hold(t, 1)
		f.issuer.On("Issue", mock.Anything, mock.Anything).Return(&issuance.Result{TokenIDs: []string{"tok-1"}, TransactionRef: "tx"}, nil).Once()
		_, err := f.orch.Complete(ctx, r.Id, validProof)
		require.NoError(t, err)

		_, err = f.orch.Complete(ctx, r.Id, validProof)

		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
		f.issuer.AssertNumberOfCalls(t, "Issue", 1)
	})

	t.Run("Not Found", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.orch.Complete(ctx, "missing", validProof)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Expired Wins Over Bad Proof", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.hold(t, 1)
		f.clock.Advance(16 * time.Minute)

		_, err := f.orch.Complete(ctx, r.Id, "bad")

		assert.ErrorIs(t, err, apperrors.ErrExpired)
		stored, err := f.store.GetReservation(ctx, r.Id)
		require.NoError(t, err)
		assert.Equal(t, models.EXPIRED, stored.Status)
		f.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	})

	t.Run("Payment Rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.hold(t, 1)

		_, err := f.orch.Complete(ctx, r.Id, "short")

		assert.ErrorIs(t, err, apperrors.ErrPaymentRejected)
		stored, err := f.store.GetReservation(ctx, r.Id)
		require.NoError(t, err)
		assert.Equal(t, models.RESERVED, stored.Status)
		_, err = f.store.GetSale(ctx, r.Id)
		assert.Error(t, err)
	})

	t.Run("Issuance Fails", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.hold(t, 2)
		f.issuer.On("Issue", mock.Anything, mock.Anything).Return(nil, errors.New("chain unavailable"))

		out, err := f.orch.Complete(ctx, r.Id, validProof)

		require.NoError(t, err)
		require.Len(t, out.Degradations, 1)
		assert.Equal(t, apperrors.IssuanceDegraded, out.Degradations[0].Kind)
		assert.Equal(t, issuance.PlaceholderTokens(r.Id, 2), out.Sale.TokenIDs)
		assert.True(t, out.Sale.Degraded)
		assert.Equal(t, models.COMPLETED, out.Reservation.Status)
		f.issuer.AssertNumberOfCalls(t, "Issue", 3)

		ticket, err := f.store.GetTicket(ctx, out.Sale.TokenIDs[0])
		require.NoError(t, err)
		assert.True(t, ticket.Placeholder)
	})

	t.Run("Issuance Recovers On Retry", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.hold(t, 1)
		f.issuer.On("Issue", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
		f.issuer.On("Issue", mock.Anything, mock.Anything).Return(&issuance.Result{TokenIDs: []string{"tok-1"}, TransactionRef: "tx"}, nil).Once()

		out, err := f.orch.Complete(ctx, r.Id, validProof)

		require.NoError(t, err)
		assert.False(t, out.Degraded())
		assert.Equal(t, []string{"tok-1"}, out.Sale.TokenIDs)
	})

	t.Run("Persistence Sink Fails", func(t *testing.T) {
		sink := new(mockTicketSink)
		sink.On("SaveTickets", mock.Anything, mock.Anything).Return(errors.New("write timeout")).Once()
		f := newFixture(t, sink)
		r := f.hold(t, 1)
		f.issuer.On("Issue", mock.Anything, mock.Anything).Return(&issuance.Result{TokenIDs: []string{"tok-1"}, TransactionRef: "tx"}, nil).Once()

		out, err := f.orch.Complete(ctx, r.Id, validProof)

		require.NoError(t, err)
		require.Len(t, out.Degradations, 1)
		assert.Equal(t, apperrors.PersistenceDegraded, out.Degradations[0].Kind)
		assert.Equal(t, models.COMPLETED, out.Reservation.Status)
		sale, err := f.store.GetSale(ctx, r.Id)
		require.NoError(t, err)
		assert.Equal(t, []string{"tok-1"}, sale.TokenIDs)
		sink.AssertExpectations(t)
	})
}

package reservations

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/api"
	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/fulfillment"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	rsv "github.com/hoangteo0103/ticket-reservations/pkg/reservations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHolds struct {
	mock.Mock
}

func (m *mockHolds) Reserve(ctx context.Context, in rsv.ReserveInput) (*models.Reservation, error) {
	ret := m.Called(ctx, in)
	r, _ := ret.Get(0).(*models.Reservation)
	return r, ret.Error(1)
}

func (m *mockHolds) View(r *models.Reservation) *models.ReservationView {
	return &models.ReservationView{Reservation: *r, TimeLeftSeconds: 900}
}

func (m *mockHolds) Get(ctx context.Context, id string) (*models.ReservationView, error) {
	ret := m.Called(ctx, id)
	v, _ := ret.Get(0).(*models.ReservationView)
	return v, ret.Error(1)
}

func (m *mockHolds) Cancel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockHolds) ListForBuyer(ctx context.Context, buyer string, status models.ReservationStatus, limit, offset int) ([]models.ReservationView, error) {
	ret := m.Called(ctx, buyer, status, limit, offset)
	v, _ := ret.Get(0).([]models.ReservationView)
	return v, ret.Error(1)
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, orderID, paymentProof string) (*fulfillment.Outcome, error) {
	ret := m.Called(ctx, orderID, paymentProof)
	o, _ := ret.Get(0).(*fulfillment.Outcome)
	return o, ret.Error(1)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *api.ErrorBody  `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	if data != nil && env.Success {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func testReservation() *models.Reservation {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return &models.Reservation{
		Id: "r-1", EventID: "e", TicketTypeID: "t", Quantity: 2, BuyerAddress: "buyer",
		UnitPrice: 50, TotalPrice: 100, Status: models.RESERVED,
		CreatedAt: now, ExpiresAt: now.Add(15 * time.Minute), UpdatedAt: now,
	}
}

func TestCreateReservation(t *testing.T) {
	newReservation := api.NewReservation{EventId: "e", TicketTypeId: "t", Quantity: 2, BuyerAddress: "buyer"}

	t.Run("Success", func(t *testing.T) {
		holds := new(mockHolds)
		h := NewReservationsHandler(holds, new(mockCompleter), nil)
		holds.On("Reserve", mock.Anything, rsv.ReserveInput{EventID: "e", TicketTypeID: "t", Quantity: 2, BuyerAddress: "buyer"}).
			Return(testReservation(), nil)

		body, _ := json.Marshal(newReservation)
		req := httptest.NewRequest(http.MethodPost, "/reservations", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		h.CreateReservation(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var got api.Reservation
		env := decode(t, rr, &got)
		assert.True(t, env.Success)
		assert.Equal(t, "r-1", got.Id)
		assert.Equal(t, int64(100), got.TotalPrice)
		assert.Equal(t, int64(900), got.TimeLeftSeconds)
		assert.Equal(t, api.Reserved, got.Status)
		holds.AssertExpectations(t)
	})

	t.Run("Insufficient Inventory", func(t *testing.T) {
		holds := new(mockHolds)
		h := NewReservationsHandler(holds, new(mockCompleter), nil)
		holds.On("Reserve", mock.Anything, mock.Anything).
			Return(nil, apperrors.New(apperrors.InsufficientInventory, "requested 2 tickets but only 1 available"))

		body, _ := json.Marshal(newReservation)
		req := httptest.NewRequest(http.MethodPost, "/reservations", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		h.CreateReservation(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		env := decode(t, rr, nil)
		assert.False(t, env.Success)
		assert.Equal(t, "InsufficientInventory", env.Error.Kind)
		assert.Equal(t, "requested 2 tickets but only 1 available", env.Error.Message)
	})

	t.Run("Invalid Body", func(t *testing.T) {
		holds := new(mockHolds)
		h := NewReservationsHandler(holds, new(mockCompleter), nil)

		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader("{"))
		rr := httptest.NewRecorder()

		h.CreateReservation(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		holds.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	})
}

func TestListReservations(t *testing.T) {
	holds := new(mockHolds)
	h := NewReservationsHandler(holds, new(mockCompleter), nil)
	status := api.Reserved
	limit := 5
	holds.On("ListForBuyer", mock.Anything, "buyer", models.RESERVED, 5, 0).
		Return([]models.ReservationView{{Reservation: *testReservation(), TimeLeftSeconds: 600}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/reservations?buyer=buyer", nil)
	rr := httptest.NewRecorder()

	h.ListReservations(rr, req, api.ListReservationsParams{Buyer: "buyer", Status: &status, Limit: &limit})

	assert.Equal(t, http.StatusOK, rr.Code)
	var got []api.Reservation
	decode(t, rr, &got)
	require.Len(t, got, 1)
	assert.Equal(t, int64(600), got[0].TimeLeftSeconds)
	holds.AssertExpectations(t)
}

func TestGetReservation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		holds := new(mockHolds)
		h := NewReservationsHandler(holds, new(mockCompleter), nil)
		holds.On("Get", mock.Anything, "r-1").Return(&models.ReservationView{Reservation: *testReservation(), TimeLeftSeconds: 42}, nil)

		req := httptest.NewRequest(http.MethodGet, "/reservations/r-1", nil)
		rr := httptest.NewRecorder()

		h.GetReservation(rr, req, "r-1")

		assert.Equal(t, http.StatusOK, rr.Code)
		var got api.Reservation
		decode(t, rr, &got)
		assert.Equal(t, int64(42), got.TimeLeftSeconds)
	})

	t.Run("Not Found", func(t *testing.T) {
		holds := new(mockHolds)
		h := NewReservationsHandler(holds, new(mockCompleter), nil)
		holds.On("Get", mock.Anything, "missing").Return(nil, apperrors.New(apperrors.NotFound, "reservation missing not found"))

		req := httptest.NewRequest(http.MethodGet, "/reservations/missing", nil)
		rr := httptest.NewRecorder()

		h.GetReservation(rr, req, "missing")

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCancelReservation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		holds := new(mockHolds)
		h := NewReservationsHandler(holds, new(mockCompleter), nil)
		cancelled := testReservation()
		cancelled.Status = models.CANCELLED
		holds.On("Cancel", mock.Anything, "r-1").Return(nil)
		holds.On("Get", mock.Anything, "r-1").Return(&models.ReservationView{Reservation: *cancelled}, nil)

		req := httptest.NewRequest(http.MethodDelete, "/reservations/r-1", nil)
		rr := httptest.NewRecorder()

		h.CancelReservation(rr, req, "r-1")

		assert.Equal(t, http.StatusOK, rr.Code)
		var got api.Reservation
		decode(t, rr, &got)
		assert.Equal(t, api.Cancelled, got.Status)
		holds.AssertExpectations(t)
	})

	t.Run("Invalid State", func(t *testing.T) {
		holds := new(mockHolds)
		h := NewReservationsHandler(holds, new(mockCompleter), nil)
		holds.On("Cancel", mock.Anything, "r-1").Return(apperrors.New(apperrors.InvalidState, "reservation r-1 is completed"))

		req := httptest.NewRequest(http.MethodDelete, "/reservations/r-1", nil)
		rr := httptest.NewRecorder()

		h.CancelReservation(rr, req, "r-1")

		assert.Equal(t, http.StatusConflict, rr.Code)
		holds.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestCompleteReservation(t *testing.T) {
	proof := "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"

	t.Run("Degraded Sale Still Succeeds", func(t *testing.T) {
		completer := new(mockCompleter)
		h := NewReservationsHandler(new(mockHolds), completer, nil)
		completed := testReservation()
		completed.Status = models.COMPLETED
		completer.On("Complete", mock.Anything, "r-1", proof).Return(&fulfillment.Outcome{
			Sale:         &models.SaleRecord{OrderID: "r-1", TokenIDs: []string{"pending-a", "pending-b"}, Degraded: true},
			Reservation:  completed,
			Degradations: []fulfillment.Degradation{{Kind: apperrors.IssuanceDegraded, Reason: "token issuance failed"}},
		}, nil)

		body, _ := json.Marshal(api.CompleteReservation{PaymentProof: proof})
		req := httptest.NewRequest(http.MethodPost, "/reservations/r-1/complete", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		h.CompleteReservation(rr, req, "r-1")

		assert.Equal(t, http.StatusOK, rr.Code)
		var got api.Completion
		decode(t, rr, &got)
		assert.Equal(t, []string{"pending-a", "pending-b"}, got.Sale.TokenIds)
		assert.Equal(t, api.Completed, got.Reservation.Status)
		require.Len(t, got.Degradations, 1)
		assert.Equal(t, "IssuanceDegraded", got.Degradations[0].Kind)
	})

	t.Run("Expired", func(t *testing.T) {
		completer := new(mockCompleter)
		h := NewReservationsHandler(new(mockHolds), completer, nil)
		completer.On("Complete", mock.Anything, "r-1", "x").Return(nil, apperrors.New(apperrors.Expired, "reservation r-1 expired"))

		req := httptest.NewRequest(http.MethodPost, "/reservations/r-1/complete", strings.NewReader(`{"paymentProof":"x"}`))
		rr := httptest.NewRecorder()

		h.CompleteReservation(rr, req, "r-1")

		assert.Equal(t, http.StatusGone, rr.Code)
		env := decode(t, rr, nil)
		assert.Equal(t, "Expired", env.Error.Kind)
	})

	t.Run("Payment Rejected", func(t *testing.T) {
		completer := new(mockCompleter)
		h := NewReservationsHandler(new(mockHolds), completer, nil)
		completer.On("Complete", mock.Anything, "r-1", "short").Return(nil, apperrors.New(apperrors.PaymentRejected, "payment proof rejected"))

		req := httptest.NewRequest(http.MethodPost, "/reservations/r-1/complete", strings.NewReader(`{"paymentProof":"short"}`))
		rr := httptest.NewRecorder()

		h.CompleteReservation(rr, req, "r-1")

		assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	})
}

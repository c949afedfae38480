package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hoangteo0103/ticket-reservations/pkg/api"
	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
	"github.com/hoangteo0103/ticket-reservations/pkg/config"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProof = "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"

type harness struct {
	t      *testing.T
	router http.Handler
	clock  *clock.Manual
	infra  *Infrastructure
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutSupply(ctx, &models.Supply{EventID: "e", TicketTypeID: "t", TotalSupply: 100, SoldCount: 70, UnitPrice: 50}))

	clk := clock.NewManual(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	infra, err := New(ctx, defaultConfig(t), nil, Options{Clock: clk, Store: store})
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Shutdown(context.Background()) })

	return &harness{t: t, router: infra.Router(), clock: clk, infra: infra}
}

// defaultConfig parses an environment that sets nothing the engine reads.
func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse(env.Options{Environment: map[string]string{"SERVICE_NAME": "ticket-reservations"}})
	require.NoError(t, err)
	return cfg
}

// do sends a request and decodes the envelope data into out when the call succeeded.
func (h *harness) do(method, path string, body interface{}, out interface{}) (int, *api.ErrorBody) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *api.ErrorBody  `json:"error"`
	}
	require.NoError(h.t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	if env.Success && out != nil {
		require.NoError(h.t, json.Unmarshal(env.Data, out))
	}
	return rr.Code, env.Error
}

func (h *harness) reserve(quantity int) api.Reservation {
	h.t.Helper()
	var r api.Reservation
	code, _ := h.do(http.MethodPost, "/reservations", api.NewReservation{EventId: "e", TicketTypeId: "t", Quantity: quantity, BuyerAddress: "buyer"}, &r)
	require.Equal(h.t, http.StatusCreated, code)
	return r
}

func (h *harness) availability() api.Availability {
	h.t.Helper()
	var a api.Availability
	code, _ := h.do(http.MethodGet, "/availability/e/t", nil, &a)
	require.Equal(h.t, http.StatusOK, code)
	return a
}

func TestPurchaseFlow(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 30, h.availability().AvailableCount)

	hold := h.reserve(2)
	assert.Equal(t, api.Reserved, hold.Status)
	assert.Equal(t, int64(100), hold.TotalPrice)
	assert.Equal(t, int64(900), hold.TimeLeftSeconds)

	a := h.availability()
	assert.Equal(t, 28, a.AvailableCount)
	assert.Equal(t, 2, a.ActiveReservedCount)

	var completion api.Completion
	code, _ := h.do(http.MethodPost, "/reservations/"+hold.Id+"/complete", api.CompleteReservation{PaymentProof: validProof}, &completion)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, api.Completed, completion.Reservation.Status)
	require.Len(t, completion.Sale.TokenIds, 2)
	assert.Empty(t, completion.Degradations)

	a = h.availability()
	assert.Equal(t, 72, a.SoldCount)
	assert.Equal(t, 0, a.ActiveReservedCount)
	assert.Equal(t, 28, a.AvailableCount)

	code, errBody := h.do(http.MethodPost, "/reservations/"+hold.Id+"/complete", api.CompleteReservation{PaymentProof: validProof}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "InvalidState", errBody.Kind)

	token := completion.Sale.TokenIds[0]
	var result api.CheckInResult
	code, _ = h.do(http.MethodPost, "/checkins", api.NewCheckIn{TokenId: token, VerifyingAgent: "gate-1", PresentedOwner: "BUYER"}, &result)
	require.Equal(t, http.StatusCreated, code)
	assert.False(t, result.AlreadyCheckedIn)
	assert.Equal(t, "e", result.CheckIn.EventId)

	code, _ = h.do(http.MethodPost, "/checkins", api.NewCheckIn{TokenId: token, VerifyingAgent: "gate-2"}, &result)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, result.AlreadyCheckedIn)
	assert.Equal(t, "gate-1", result.CheckIn.VerifyingAgent)

	var checkIns []api.CheckIn
	code, _ = h.do(http.MethodGet, "/events/e/checkins", nil, &checkIns)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, checkIns, 1)

	code, errBody = h.do(http.MethodPost, "/checkins", api.NewCheckIn{TokenId: "forged", VerifyingAgent: "gate-1"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "VerificationFailed", errBody.Kind)
}

func TestHoldLifecycle(t *testing.T) {
	t.Run("Insufficient Inventory", func(t *testing.T) {
		h := newHarness(t)
		for i := 0; i < 5; i++ {
			h.reserve(5)
		}
		h.reserve(4)

		code, errBody := h.do(http.MethodPost, "/reservations", api.NewReservation{EventId: "e", TicketTypeId: "t", Quantity: 2, BuyerAddress: "buyer"}, nil)

		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "InsufficientInventory", errBody.Kind)
		assert.Equal(t, 1, h.availability().AvailableCount)
	})

	t.Run("Quantity Above Default Limit", func(t *testing.T) {
		h := newHarness(t)
		h.reserve(5)

		code, errBody := h.do(http.MethodPost, "/reservations", api.NewReservation{EventId: "e", TicketTypeId: "t", Quantity: 6, BuyerAddress: "buyer"}, nil)

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "InvalidArgument", errBody.Kind)
		assert.Equal(t, 25, h.availability().AvailableCount)
	})

	t.Run("Cancel Returns Units", func(t *testing.T) {
		h := newHarness(t)
		hold := h.reserve(4)

		var cancelled api.Reservation
		code, _ := h.do(http.MethodDelete, "/reservations/"+hold.Id, nil, &cancelled)

		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, api.Cancelled, cancelled.Status)
		assert.Equal(t, 30, h.availability().AvailableCount)

		code, errBody := h.do(http.MethodDelete, "/reservations/"+hold.Id, nil, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "InvalidState", errBody.Kind)
	})

	t.Run("Complete After Deadline Expires", func(t *testing.T) {
		h := newHarness(t)
		hold := h.reserve(3)
		h.clock.Advance(15 * time.Minute)

		code, errBody := h.do(http.MethodPost, "/reservations/"+hold.Id+"/complete", api.CompleteReservation{PaymentProof: validProof}, nil)

		assert.Equal(t, http.StatusGone, code)
		assert.Equal(t, "Expired", errBody.Kind)
		var got api.Reservation
		code, _ = h.do(http.MethodGet, "/reservations/"+hold.Id, nil, &got)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, api.Expired, got.Status)
		assert.Equal(t, 30, h.availability().AvailableCount)
	})

	t.Run("Bad Proof Leaves Hold Reserved", func(t *testing.T) {
		h := newHarness(t)
		hold := h.reserve(1)

		code, errBody := h.do(http.MethodPost, "/reservations/"+hold.Id+"/complete", api.CompleteReservation{PaymentProof: "paid"}, nil)

		assert.Equal(t, http.StatusPaymentRequired, code)
		assert.Equal(t, "PaymentRejected", errBody.Kind)
		var got api.Reservation
		h.do(http.MethodGet, "/reservations/"+hold.Id, nil, &got)
		assert.Equal(t, api.Reserved, got.Status)
	})

	t.Run("Unknown Reservation", func(t *testing.T) {
		h := newHarness(t)

		code, errBody := h.do(http.MethodGet, "/reservations/missing", nil, nil)

		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "NotFound", errBody.Kind)
	})
}

func TestAdminEndpoints(t *testing.T) {
	h := newHarness(t)
	first := h.reserve(2)
	h.reserve(1)
	h.clock.Advance(20 * time.Minute)
	h.reserve(5)

	var sweep api.SweepResult
	code, _ := h.do(http.MethodPost, "/admin/reservations/sweep", nil, &sweep)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, sweep.Released)

	var got api.Reservation
	h.do(http.MethodGet, "/reservations/"+first.Id, nil, &got)
	assert.Equal(t, api.Expired, got.Status)
	assert.Equal(t, int64(0), got.TimeLeftSeconds)

	var page api.ReservationPage
	code, _ = h.do(http.MethodGet, "/admin/reservations?status=expired&pageSize=1", nil, &page)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)

	var mine []api.Reservation
	code, _ = h.do(http.MethodGet, "/reservations?buyer=buyer&status=reserved", nil, &mine)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, mine, 1)

	var invalidated api.InvalidationResult
	code, _ = h.do(http.MethodPost, "/admin/availability/invalidate", nil, &invalidated)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 25, h.availability().AvailableCount)
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t)

	t.Run("Missing Buyer", func(t *testing.T) {
		code, errBody := h.do(http.MethodGet, "/reservations", nil, nil)

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "InvalidArgument", errBody.Kind)
	})

	t.Run("Malformed Limit", func(t *testing.T) {
		code, _ := h.do(http.MethodGet, "/reservations?buyer=b&limit=many", nil, nil)

		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Health", func(t *testing.T) {
		var status map[string]string
		code, _ := h.do(http.MethodGet, "/healthz", nil, &status)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", status["status"])
	})
}

func TestParseSupply(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		s, err := ParseSupply("gala/vip=100@5000")

		require.NoError(t, err)
		assert.Equal(t, &models.Supply{EventID: "gala", TicketTypeID: "vip", TotalSupply: 100, UnitPrice: 5000}, s)
	})

	for _, entry := range []string{"gala=100@5", "gala/vip=100", "gala/vip=x@5", "gala/vip=10@-1", "/vip=1@1"} {
		t.Run("Rejects "+entry, func(t *testing.T) {
			_, err := ParseSupply(entry)
			assert.Error(t, err)
		})
	}

	t.Run("Seeds Store", func(t *testing.T) {
		store := memory.New()

		err := SeedSupply(context.Background(), store, []string{"gala/vip=100@5000", "gala/ga=900@1500"})

		require.NoError(t, err)
		s, err := store.GetSupply(context.Background(), "gala", "ga")
		require.NoError(t, err)
		assert.Equal(t, 900, s.TotalSupply)
	})

	t.Run("Restart Keeps Sold Count", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New()
		clk := clock.NewManual(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
		cfg := defaultConfig(t)
		cfg.SupplySeed = []string{"e/t=100@50"}

		first, err := New(ctx, cfg, nil, Options{Clock: clk, Store: store})
		require.NoError(t, err)
		h := &harness{t: t, router: first.Router(), clock: clk, infra: first}
		hold := h.reserve(2)
		code, _ := h.do(http.MethodPost, "/reservations/"+hold.Id+"/complete", api.CompleteReservation{PaymentProof: validProof}, nil)
		require.Equal(t, http.StatusOK, code)
		require.NoError(t, first.Shutdown(ctx))

		second, err := New(ctx, cfg, nil, Options{Clock: clk, Store: store})
		require.NoError(t, err)
		t.Cleanup(func() { _ = second.Shutdown(context.Background()) })

		supply, err := store.GetSupply(ctx, "e", "t")
		require.NoError(t, err)
		assert.Equal(t, 2, supply.SoldCount)
		snap, err := second.Tracker.Get(ctx, "e", "t")
		require.NoError(t, err)
		assert.Equal(t, 98, snap.AvailableCount)
	})
}

func TestSingleWriter(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutSupply(ctx, &models.Supply{EventID: "e", TicketTypeID: "t", TotalSupply: 100, SoldCount: 70, UnitPrice: 50}))
	clk := clock.NewManual(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	first, err := New(ctx, defaultConfig(t), nil, Options{Clock: clk, Store: store})
	require.NoError(t, err)
	second, err := New(ctx, defaultConfig(t), nil, Options{Clock: clk, Store: store})
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Shutdown(context.Background()) })
	a := &harness{t: t, router: first.Router(), clock: clk, infra: first}
	b := &harness{t: t, router: second.Router(), clock: clk, infra: second}

	a.reserve(2)
	code, errBody := b.do(http.MethodPost, "/reservations", api.NewReservation{EventId: "e", TicketTypeId: "t", Quantity: 1, BuyerAddress: "buyer"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "AvailabilityUnknown", errBody.Kind)

	require.NoError(t, first.Shutdown(ctx))
	b.reserve(1)
	assert.Equal(t, 27, b.availability().AvailableCount)
}

func TestHeadless(t *testing.T) {
	cfg := &config.Config{HoldDuration: time.Minute, MaxQuantity: 1, SweepInterval: time.Minute, StoreBackend: config.BackendMemory}

	infra, err := New(context.Background(), cfg, nil, Options{Headless: true})

	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Shutdown(context.Background()) })
	assert.Nil(t, infra.Hub)
	assert.Nil(t, infra.Writer)
	assert.NotNil(t, infra.Scheduler)
}

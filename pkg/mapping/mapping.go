package mapping

import (
	"net/http"

	"github.com/hoangteo0103/ticket-reservations/pkg/api"
	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/fulfillment"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/reservations"
)

// ToApiReservation converts a domain reservation view to an API Reservation model.
func ToApiReservation(v *models.ReservationView) *api.Reservation {
	return &api.Reservation{
		Id:              v.Id,
		EventId:         v.EventID,
		TicketTypeId:    v.TicketTypeID,
		Quantity:        v.Quantity,
		BuyerAddress:    v.BuyerAddress,
		UnitPrice:       v.UnitPrice,
		TotalPrice:      v.TotalPrice,
		Status:          api.ReservationStatus(v.Status),
		CreatedAt:       v.CreatedAt,
		ExpiresAt:       v.ExpiresAt,
		UpdatedAt:       v.UpdatedAt,
		TimeLeftSeconds: v.TimeLeftSeconds,
	}
}

// ToApiReservations converts a list of views, never returning nil.
func ToApiReservations(views []models.ReservationView) []api.Reservation {
	out := make([]api.Reservation, len(views))
	for i := range views {
		out[i] = *ToApiReservation(&views[i])
	}
	return out
}

// ToApiReservationPage converts an administrative listing page.
func ToApiReservationPage(p *reservations.Page) *api.ReservationPage {
	return &api.ReservationPage{
		Items:    ToApiReservations(p.Items),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}

// ToDomainReserveInput converts an API NewReservation to the manager's input.
func ToDomainReserveInput(in *api.NewReservation) reservations.ReserveInput {
	return reservations.ReserveInput{
		EventID:      in.EventId,
		TicketTypeID: in.TicketTypeId,
		Quantity:     in.Quantity,
		BuyerAddress: in.BuyerAddress,
	}
}

// ToApiSale converts a domain SaleRecord to an API Sale model.
func ToApiSale(s *models.SaleRecord) *api.Sale {
	tokenIDs := s.TokenIDs
	if tokenIDs == nil {
		tokenIDs = []string{}
	}
	return &api.Sale{
		OrderId:        s.OrderID,
		EventId:        s.EventID,
		TicketTypeId:   s.TicketTypeID,
		BuyerAddress:   s.BuyerAddress,
		TransactionRef: s.TransactionRef,
		TokenIds:       tokenIDs,
		Degraded:       s.Degraded,
		FinalizedAt:    s.FinalizedAt,
	}
}

// ToApiCompletion converts a fulfillment outcome. The reservation is reported
// without time left, since it is no longer held.
func ToApiCompletion(o *fulfillment.Outcome) *api.Completion {
	c := &api.Completion{
		Sale:        *ToApiSale(o.Sale),
		Reservation: *ToApiReservation(&models.ReservationView{Reservation: *o.Reservation}),
	}
	for _, d := range o.Degradations {
		c.Degradations = append(c.Degradations, api.Degradation{Kind: string(d.Kind), Reason: d.Reason})
	}
	return c
}

// ToApiAvailability converts an availability snapshot.
func ToApiAvailability(s *models.AvailabilitySnapshot) *api.Availability {
	return &api.Availability{
		EventId:             s.EventID,
		TicketTypeId:        s.TicketTypeID,
		TotalSupply:         s.TotalSupply,
		SoldCount:           s.SoldCount,
		ActiveReservedCount: s.ActiveReservedCount,
		AvailableCount:      s.AvailableCount,
		UnitPrice:           s.UnitPrice,
		ComputedAt:          s.ComputedAt,
		Stale:               s.Stale,
	}
}

// ToApiCheckIn converts a domain CheckInRecord to an API CheckIn model.
func ToApiCheckIn(r *models.CheckInRecord) *api.CheckIn {
	return &api.CheckIn{
		TokenId:        r.TokenID,
		EventId:        r.EventID,
		CheckedInAt:    r.CheckedInAt,
		VerifyingAgent: r.VerifyingAgent,
		TransactionRef: r.TransactionRef,
		PresentedOwner: r.PresentedOwner,
		Verified:       r.Verified,
	}
}

// ToApiCheckIns converts a list of check-ins, never returning nil.
func ToApiCheckIns(records []models.CheckInRecord) []api.CheckIn {
	out := make([]api.CheckIn, len(records))
	for i := range records {
		out[i] = *ToApiCheckIn(&records[i])
	}
	return out
}

// HTTPStatus maps a failure kind to its response status code.
func HTTPStatus(kind apperrors.Kind) int {
	switch kind {
	case apperrors.InvalidArgument:
		return http.StatusBadRequest
	case apperrors.PaymentRejected:
		return http.StatusPaymentRequired
	case apperrors.NotFound:
		return http.StatusNotFound
	case apperrors.InsufficientInventory, apperrors.InvalidState:
		return http.StatusConflict
	case apperrors.Expired:
		return http.StatusGone
	case apperrors.VerificationFailed:
		return http.StatusUnprocessableEntity
	case apperrors.AvailabilityUnknown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

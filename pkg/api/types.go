// Package api defines the HTTP contract of the reservation service: request and
// response bodies, the response envelope and the chi server wiring.
package api

import (
	"time"
)

// ReservationStatus defines model for ReservationStatus.
type ReservationStatus string

// Defines values for ReservationStatus.
const (
	Reserved  ReservationStatus = "reserved"
	Completed ReservationStatus = "completed"
	Cancelled ReservationStatus = "cancelled"
	Expired   ReservationStatus = "expired"
)

// NewReservation defines model for NewReservation.
type NewReservation struct {
	EventId      string `json:"eventId"`
	TicketTypeId string `json:"ticketTypeId"`
	Quantity     int    `json:"quantity"`
	BuyerAddress string `json:"buyerAddress"`
}

// Reservation defines model for Reservation.
type Reservation struct {
	Id              string            `json:"id"`
	EventId         string            `json:"eventId"`
	TicketTypeId    string            `json:"ticketTypeId"`
	Quantity        int               `json:"quantity"`
	BuyerAddress    string            `json:"buyerAddress"`
	UnitPrice       int64             `json:"unitPrice"`
	TotalPrice      int64             `json:"totalPrice"`
	Status          ReservationStatus `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	ExpiresAt       time.Time         `json:"expiresAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	TimeLeftSeconds int64             `json:"timeLeftSeconds"`
}

// ReservationPage defines model for ReservationPage.
type ReservationPage struct {
	Items    []Reservation `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// CompleteReservation defines model for CompleteReservation.
type CompleteReservation struct {
	PaymentProof string `json:"paymentProof"`
}

// Sale defines model for Sale.
type Sale struct {
	OrderId        string    `json:"orderId"`
	EventId        string    `json:"eventId"`
	TicketTypeId   string    `json:"ticketTypeId"`
	BuyerAddress   string    `json:"buyerAddress"`
	TransactionRef string    `json:"transactionRef"`
	TokenIds       []string  `json:"tokenIds"`
	Degraded       bool      `json:"degraded"`
	FinalizedAt    time.Time `json:"finalizedAt"`
}

// Degradation defines model for Degradation.
type Degradation struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Completion defines model for Completion.
type Completion struct {
	Sale         Sale          `json:"sale"`
	Reservation  Reservation   `json:"reservation"`
	Degradations []Degradation `json:"degradations,omitempty"`
}

// Availability defines model for Availability.
type Availability struct {
	EventId             string    `json:"eventId"`
	TicketTypeId        string    `json:"ticketTypeId"`
	TotalSupply         int       `json:"totalSupply"`
	SoldCount           int       `json:"soldCount"`
	ActiveReservedCount int       `json:"activeReservedCount"`
	AvailableCount      int       `json:"availableCount"`
	UnitPrice           int64     `json:"unitPrice"`
	ComputedAt          time.Time `json:"computedAt"`
	Stale               bool      `json:"stale"`
}

// SweepResult defines model for SweepResult.
type SweepResult struct {
	Released int `json:"released"`
}

// InvalidationResult defines model for InvalidationResult.
type InvalidationResult struct {
	Invalidated int `json:"invalidated"`
}

// NewCheckIn defines model for NewCheckIn.
type NewCheckIn struct {
	TokenId        string `json:"tokenId"`
	VerifyingAgent string `json:"verifyingAgent"`
	PresentedOwner string `json:"presentedOwner,omitempty"`
	EventId        string `json:"eventId,omitempty"`
}

// CheckIn defines model for CheckIn.
type CheckIn struct {
	TokenId        string    `json:"tokenId"`
	EventId        string    `json:"eventId"`
	CheckedInAt    time.Time `json:"checkedInAt"`
	VerifyingAgent string    `json:"verifyingAgent"`
	TransactionRef string    `json:"transactionRef"`
	PresentedOwner string    `json:"presentedOwner"`
	Verified       bool      `json:"verified"`
}

// CheckInResult defines model for CheckInResult.
type CheckInResult struct {
	CheckIn          CheckIn `json:"checkIn"`
	AlreadyCheckedIn bool    `json:"alreadyCheckedIn"`
}

// ErrorBody defines model for ErrorBody.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Envelope wraps every response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ListReservationsParams defines parameters for ListReservations.
type ListReservationsParams struct {
	Buyer  string             `form:"buyer" json:"buyer"`
	Status *ReservationStatus `form:"status,omitempty" json:"status,omitempty"`
	Limit  *int               `form:"limit,omitempty" json:"limit,omitempty"`
	Offset *int               `form:"offset,omitempty" json:"offset,omitempty"`
}

// AdminListReservationsParams defines parameters for AdminListReservations.
type AdminListReservationsParams struct {
	EventId  *string            `form:"eventId,omitempty" json:"eventId,omitempty"`
	Status   *ReservationStatus `form:"status,omitempty" json:"status,omitempty"`
	Page     *int               `form:"page,omitempty" json:"page,omitempty"`
	PageSize *int               `form:"pageSize,omitempty" json:"pageSize,omitempty"`
}

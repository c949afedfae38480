package models

import (
	"time"
)

// ReservationStatus defines the possible states of a reservation.
type ReservationStatus string

const (
	RESERVED  ReservationStatus = "reserved"
	COMPLETED ReservationStatus = "completed"
	CANCELLED ReservationStatus = "cancelled"
	EXPIRED   ReservationStatus = "expired"
)

// Valid reports whether s is one of the known reservation statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case RESERVED, COMPLETED, CANCELLED, EXPIRED:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s ReservationStatus) Terminal() bool {
	return s == COMPLETED || s == CANCELLED || s == EXPIRED
}

// InventoryKey identifies one sellable bucket of tickets.
type InventoryKey struct {
	EventID      string
	TicketTypeID string
}

func (k InventoryKey) String() string {
	return k.EventID + "/" + k.TicketTypeID
}

// Reservation represents a time-boxed hold on a quantity of tickets.
// It includes dynamodbav tags for marshalling.
type Reservation struct {
	Id           string            `json:"id" dynamodbav:"id"`
	EventID      string            `json:"event_id" dynamodbav:"event_id"`
	TicketTypeID string            `json:"ticket_type_id" dynamodbav:"ticket_type_id"`
	Quantity     int               `json:"quantity" dynamodbav:"quantity"`
	BuyerAddress string            `json:"buyer_address" dynamodbav:"buyer_address"`
	UnitPrice    int64             `json:"unit_price" dynamodbav:"unit_price"`
	TotalPrice   int64             `json:"total_price" dynamodbav:"total_price"`
	Status       ReservationStatus `json:"status" dynamodbav:"status"`
	CreatedAt    time.Time         `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at" dynamodbav:"expires_at"`
	UpdatedAt    time.Time         `json:"updated_at" dynamodbav:"updated_at"`
}

// Key returns the inventory bucket the reservation draws from.
func (r *Reservation) Key() InventoryKey {
	return InventoryKey{EventID: r.EventID, TicketTypeID: r.TicketTypeID}
}

// ReservationView is a Reservation plus server-computed fields.
type ReservationView struct {
	Reservation
	TimeLeftSeconds int64 `json:"time_left_seconds"`
}

// Supply is the authoritative ledger row for one inventory bucket.
type Supply struct {
	EventID      string `json:"event_id" dynamodbav:"event_id"`
	TicketTypeID string `json:"ticket_type_id" dynamodbav:"ticket_type_id"`
	TotalSupply  int    `json:"total_supply" dynamodbav:"total_supply"`
	SoldCount    int    `json:"sold_count" dynamodbav:"sold_count"`
	UnitPrice    int64  `json:"unit_price" dynamodbav:"unit_price"`
}

// AvailabilitySnapshot is the derived, cached availability of one inventory bucket.
type AvailabilitySnapshot struct {
	EventID             string    `json:"event_id"`
	TicketTypeID        string    `json:"ticket_type_id"`
	TotalSupply         int       `json:"total_supply"`
	SoldCount           int       `json:"sold_count"`
	ActiveReservedCount int       `json:"active_reserved_count"`
	AvailableCount      int       `json:"available_count"`
	UnitPrice           int64     `json:"unit_price"`
	ComputedAt          time.Time `json:"computed_at"`
	// Stale is set when the ledger could not be read and the last known
	// ledger figures were used instead.
	Stale bool `json:"stale"`
}

// Recount recomputes AvailableCount from the other counters, clamped at zero.
func (s *AvailabilitySnapshot) Recount() {
	available := s.TotalSupply - s.SoldCount - s.ActiveReservedCount
	if available < 0 {
		available = 0
	}
	s.AvailableCount = available
}

// SaleRecord is written once, when a reservation becomes completed.
type SaleRecord struct {
	OrderID        string    `json:"order_id" dynamodbav:"order_id"`
	EventID        string    `json:"event_id" dynamodbav:"event_id"`
	TicketTypeID   string    `json:"ticket_type_id" dynamodbav:"ticket_type_id"`
	BuyerAddress   string    `json:"buyer_address" dynamodbav:"buyer_address"`
	TransactionRef string    `json:"transaction_ref" dynamodbav:"transaction_ref"`
	TokenIDs       []string  `json:"token_ids" dynamodbav:"token_ids"`
	Degraded       bool      `json:"degraded" dynamodbav:"degraded"`
	FinalizedAt    time.Time `json:"finalized_at" dynamodbav:"finalized_at"`
}

// Ticket is the per-unit ownership record forwarded to the persistence sink.
type Ticket struct {
	TokenID        string    `json:"token_id" dynamodbav:"token_id"`
	OrderID        string    `json:"order_id" dynamodbav:"order_id"`
	EventID        string    `json:"event_id" dynamodbav:"event_id"`
	TicketTypeID   string    `json:"ticket_type_id" dynamodbav:"ticket_type_id"`
	OwnerAddress   string    `json:"owner_address" dynamodbav:"owner_address"`
	TransactionRef string    `json:"transaction_ref" dynamodbav:"transaction_ref"`
	UnitPrice      int64     `json:"unit_price" dynamodbav:"unit_price"`
	Placeholder    bool      `json:"placeholder" dynamodbav:"placeholder"`
	IssuedAt       time.Time `json:"issued_at" dynamodbav:"issued_at"`
}

// CheckInRecord records the first successful presentation of a token.
type CheckInRecord struct {
	TokenID        string    `json:"token_id" dynamodbav:"token_id"`
	EventID        string    `json:"event_id" dynamodbav:"event_id"`
	CheckedInAt    time.Time `json:"checked_in_at" dynamodbav:"checked_in_at"`
	VerifyingAgent string    `json:"verifying_agent" dynamodbav:"verifying_agent"`
	TransactionRef string    `json:"transaction_ref" dynamodbav:"transaction_ref"`
	PresentedOwner string    `json:"presented_owner" dynamodbav:"presented_owner"`
	Verified       bool      `json:"verified" dynamodbav:"verified"`
}

// WriterLease names the one process allowed to place holds. ExpiresAt is
// stored as epoch seconds so the table can also expire it with a TTL.
type WriterLease struct {
	Name      string    `json:"name" dynamodbav:"name"`
	Owner     string    `json:"owner" dynamodbav:"owner"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"`
}

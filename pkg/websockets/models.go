package websockets

import "time"

// MessageType defines the type of a WebSocket message.
type MessageType string

const (
	// MessageTypeAvailabilityUpdate carries a fresh availability figure for one ticket type.
	MessageTypeAvailabilityUpdate MessageType = "availabilityUpdate"
)

// Message represents a generic WebSocket message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// AvailabilityUpdatePayload is the payload for an availabilityUpdate message.
type AvailabilityUpdatePayload struct {
	EventID        string    `json:"eventId"`
	TicketTypeID   string    `json:"ticketTypeId"`
	AvailableCount int       `json:"availableCount"`
	TotalSupply    int       `json:"totalSupply"`
	SoldCount      int       `json:"soldCount"`
	ComputedAt     time.Time `json:"computedAt"`
}

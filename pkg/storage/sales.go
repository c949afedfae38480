package storage

import (
	"context"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// SaleStore records finalized sales.
type SaleStore interface {
	// PutSale stores a sale record. It returns ErrAlreadyExists if the order already has one.
	PutSale(ctx context.Context, sale *models.SaleRecord) error

	// GetSale retrieves the sale record for an order. It returns ErrNotFound when absent.
	GetSale(ctx context.Context, orderID string) (*models.SaleRecord, error)
}

// TicketSink durably records issued tickets.
type TicketSink interface {
	SaveTickets(ctx context.Context, tickets []models.Ticket) error
}

// TicketReader looks up issued tickets by token.
type TicketReader interface {
	// GetTicket retrieves a ticket by its token ID. It returns ErrNotFound when absent.
	GetTicket(ctx context.Context, tokenID string) (*models.Ticket, error)
}

// TicketStore combines the sink and reader interfaces.
type TicketStore interface {
	TicketSink
	TicketReader
}

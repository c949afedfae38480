// Package sink forwards finalized tickets to durable destinations.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

// Fanout writes tickets to every sink and reports all failures together.
// Every sink is attempted even when an earlier one fails.
type Fanout []storage.TicketSink

// Make sure we conform to the interface
var _ storage.TicketSink = Fanout(nil)

func (f Fanout) SaveTickets(ctx context.Context, tickets []models.Ticket) error {
	var errs []error
	for i, s := range f {
		if err := s.SaveTickets(ctx, tickets); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

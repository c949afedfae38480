package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
)

// ExpiryConsumer handles delivered expiry messages. A message that arrives
// before its deadline is re-armed; a due one releases the hold.
type ExpiryConsumer struct {
	release ReleaseFunc
	rearm   Scheduler
	clock   clock.Clock
	logger  *slog.Logger
}

// NewExpiryConsumer creates an ExpiryConsumer.
func NewExpiryConsumer(release ReleaseFunc, rearm Scheduler, clk clock.Clock, logger *slog.Logger) *ExpiryConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryConsumer{release: release, rearm: rearm, clock: clk, logger: logger}
}

// Handle processes one message body. An error means the message should be redelivered.
func (c *ExpiryConsumer) Handle(ctx context.Context, body string) error {
	var msg ExpiryMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		// Malformed bodies are dropped, not redelivered.
		c.logger.ErrorContext(ctx, "dropping malformed expiry message", "error", err)
		return nil
	}

	if !msg.Due(c.clock.Now()) {
		if err := c.rearm.Arm(ctx, msg.ReservationID, msg.Deadline); err != nil {
			return fmt.Errorf("failed to re-arm reservation %s: %w", msg.ReservationID, err)
		}
		c.logger.InfoContext(ctx, "expiry message arrived early, re-armed", "reservation_id", msg.ReservationID, "deadline", msg.Deadline)
		return nil
	}

	released, err := c.release(ctx, msg.ReservationID)
	if err != nil {
		return fmt.Errorf("failed to release reservation %s: %w", msg.ReservationID, err)
	}
	c.logger.InfoContext(ctx, "expiry message processed", "reservation_id", msg.ReservationID, "released", released)
	return nil
}

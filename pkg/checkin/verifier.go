package checkin

import (
	"context"
	"errors"
	"strings"

	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

// TicketVerifier verifies tokens against the issued ticket records.
type TicketVerifier struct {
	Tickets storage.TicketReader
}

// Make sure we conform to the interface
var _ Verifier = (*TicketVerifier)(nil)

// VerifyToken requires the ticket to exist and, when given, the presented
// owner and event to match it. Owner addresses compare case-insensitively.
func (v *TicketVerifier) VerifyToken(ctx context.Context, tokenID string, info VerifyingInfo) (*Verification, error) {
	ticket, err := v.Tickets.GetTicket(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.New(apperrors.VerificationFailed, "token %s was never issued", tokenID)
		}
		return nil, err
	}
	if info.PresentedOwner != "" && !strings.EqualFold(info.PresentedOwner, ticket.OwnerAddress) {
		return nil, apperrors.New(apperrors.VerificationFailed, "token %s is not owned by the presenter", tokenID)
	}
	if info.EventID != "" && info.EventID != ticket.EventID {
		return nil, apperrors.New(apperrors.VerificationFailed, "token %s is for a different event", tokenID)
	}
	return &Verification{EventID: ticket.EventID, TransactionRef: ticket.TransactionRef}, nil
}

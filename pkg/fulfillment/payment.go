package fulfillment

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// PaymentVerifier decides whether a payment proof settles a reservation.
type PaymentVerifier interface {
	Verify(ctx context.Context, r *models.Reservation, proof string) error
}

var txRefPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// minOpaqueProofLength is the length an opaque proof must exceed.
const minOpaqueProofLength = 20

// ShapePolicy accepts a proof that looks like a 32 byte hex transaction
// reference, or an opaque token longer than 20 characters without whitespace.
// It checks shape only and proves nothing about payment; real verification
// belongs to the payment provider.
type ShapePolicy struct{}

// Make sure we conform to the interface
var _ PaymentVerifier = ShapePolicy{}

func (ShapePolicy) Verify(ctx context.Context, r *models.Reservation, proof string) error {
	proof = strings.TrimSpace(proof)
	if txRefPattern.MatchString(proof) {
		return nil
	}
	if len(proof) > minOpaqueProofLength && !strings.ContainsFunc(proof, unicode.IsSpace) {
		return nil
	}
	return apperrors.New(apperrors.PaymentRejected, "payment proof is neither a transaction reference nor a signature")
}

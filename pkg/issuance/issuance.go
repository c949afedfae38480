// Package issuance mints one ownership token per sold ticket.
package issuance

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// Request asks for Quantity tokens owned by BuyerAddress.
type Request struct {
	OrderID      string `json:"order_id"`
	BuyerAddress string `json:"buyer_address"`
	EventID      string `json:"event_id"`
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}

// Result lists the minted token ids and the reference of the minting transaction.
type Result struct {
	TokenIDs       []string `json:"token_ids"`
	TransactionRef string   `json:"transaction_ref"`
}

// Issuer mints tokens.
type Issuer interface {
	Issue(ctx context.Context, req Request) (*Result, error)
}

// LocalIssuer mints random base58 token ids in process. It backs local
// development when no issuance service is configured.
type LocalIssuer struct{}

// Make sure we conform to the interface
var _ Issuer = LocalIssuer{}

func (LocalIssuer) Issue(ctx context.Context, req Request) (*Result, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("invalid quantity %d", req.Quantity)
	}
	res := &Result{TokenIDs: make([]string, 0, req.Quantity)}
	for i := 0; i < req.Quantity; i++ {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate token id: %w", err)
		}
		res.TokenIDs = append(res.TokenIDs, base58.Encode(buf))
	}
	ref := make([]byte, 32)
	if _, err := rand.Read(ref); err != nil {
		return nil, fmt.Errorf("failed to generate transaction ref: %w", err)
	}
	res.TransactionRef = "0x" + hex.EncodeToString(ref)
	return res, nil
}

// PlaceholderTokens derives n deterministic token ids for an order whose
// issuance failed. The same order always yields the same ids.
func PlaceholderTokens(orderID string, n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var idx [8]byte
		binary.BigEndian.PutUint64(idx[:], uint64(i))
		sum := sha256.Sum256(append([]byte(orderID), idx[:]...))
		ids = append(ids, "pending-"+base58.Encode(sum[:16]))
	}
	return ids
}

// PlaceholderTransactionRef is the transaction reference recorded when issuance failed.
func PlaceholderTransactionRef(orderID string) string {
	return "pending:" + orderID
}

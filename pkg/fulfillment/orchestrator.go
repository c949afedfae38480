// Package fulfillment turns a paid reservation into a sale.
//
// Payment acceptance is the commit point. Everything after it (token
// issuance, the sold count, persistence) is best effort: a failure there is
// reported as a Degradation on the Outcome and never rolls the sale back.
package fulfillment

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
	"github.com/hoangteo0103/ticket-reservations/pkg/issuance"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/reservations"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Finalizer settles a reserved hold. *reservations.Manager implements it.
type Finalizer interface {
	Finalize(ctx context.Context, id string, accept func(*models.Reservation) error) (*reservations.Finalized, error)
}

// Degradation is a step after the commit point that did not complete.
type Degradation struct {
	Kind   apperrors.Kind `json:"kind"`
	Reason string         `json:"reason"`
}

// Outcome is the result of a completed sale.
type Outcome struct {
	Sale         *models.SaleRecord
	Reservation  *models.Reservation
	Tickets      []models.Ticket
	Degradations []Degradation
}

// Degraded reports whether any step after the commit point failed.
func (o *Outcome) Degraded() bool {
	return len(o.Degradations) > 0
}

func (o *Outcome) degrade(kind apperrors.Kind, reason string) {
	o.Degradations = append(o.Degradations, Degradation{Kind: kind, Reason: reason})
}

// Orchestrator completes reservations.
type Orchestrator struct {
	finalizer Finalizer
	verifier  PaymentVerifier
	issuer    issuance.Issuer
	sales     storage.SaleStore
	tickets   storage.TicketSink
	clock     clock.Clock
	logger    *slog.Logger
	tracer    trace.Tracer

	issueBackOff func() backoff.BackOff
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithVerifier replaces the default ShapePolicy.
func WithVerifier(v PaymentVerifier) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIssueBackOff sets the retry policy for token issuance.
func WithIssueBackOff(policy func() backoff.BackOff) Option {
	return func(o *Orchestrator) { o.issueBackOff = policy }
}

func defaultIssueBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(finalizer Finalizer, issuer issuance.Issuer, sales storage.SaleStore, tickets storage.TicketSink, clk clock.Clock, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		finalizer:    finalizer,
		verifier:     ShapePolicy{},
		issuer:       issuer,
		sales:        sales,
		tickets:      tickets,
		clock:        clk,
		logger:       slog.Default(),
		tracer:       otel.Tracer("github.com/hoangteo0103/ticket-reservations/pkg/fulfillment"),
		issueBackOff: defaultIssueBackOff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Complete settles orderID with paymentProof. It fails with NotFound,
// InvalidState, Expired or PaymentRejected, in that order of precedence;
// once the proof is accepted it always returns an Outcome.
func (o *Orchestrator) Complete(ctx context.Context, orderID, paymentProof string) (*Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "fulfillment.complete")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	done, err := o.finalizer.Finalize(ctx, orderID, func(r *models.Reservation) error {
		return o.verifier.Verify(ctx, r, paymentProof)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// The sale is committed; downstream calls run to completion regardless of the caller.
	ctx = context.WithoutCancel(ctx)

	r := done.Reservation
	out := &Outcome{Reservation: r}
	if done.LedgerErr != nil {
		out.degrade(apperrors.LedgerDegraded, "sold count update failed")
	}

	tokenIDs, txRef, placeholder := o.issue(ctx, r)
	if placeholder {
		out.degrade(apperrors.IssuanceDegraded, "token issuance failed, placeholder ids assigned")
	}

	now := o.clock.Now()
	out.Sale = &models.SaleRecord{
		OrderID:        r.Id,
		EventID:        r.EventID,
		TicketTypeID:   r.TicketTypeID,
		BuyerAddress:   r.BuyerAddress,
		TransactionRef: txRef,
		TokenIDs:       tokenIDs,
		Degraded:       placeholder,
		FinalizedAt:    now,
	}
	for _, id := range tokenIDs {
		out.Tickets = append(out.Tickets, models.Ticket{
			TokenID:        id,
			OrderID:        r.Id,
			EventID:        r.EventID,
			TicketTypeID:   r.TicketTypeID,
			OwnerAddress:   r.BuyerAddress,
			TransactionRef: txRef,
			UnitPrice:      r.UnitPrice,
			Placeholder:    placeholder,
			IssuedAt:       now,
		})
	}

	if err := o.sales.PutSale(ctx, out.Sale); err != nil {
		o.logger.ErrorContext(ctx, "CRITICAL: sale completed but sale record was not stored", "order_id", r.Id, "error", err)
		out.degrade(apperrors.PersistenceDegraded, "sale record not stored")
	}
	if err := o.tickets.SaveTickets(ctx, out.Tickets); err != nil {
		o.logger.ErrorContext(ctx, "CRITICAL: sale completed but tickets were not persisted", "order_id", r.Id, "error", err)
		out.degrade(apperrors.PersistenceDegraded, "ticket records not persisted")
	}

	span.SetAttributes(attribute.Int("sale.degradations", len(out.Degradations)))
	span.SetStatus(codes.Ok, "completed")
	o.logger.InfoContext(ctx, "sale completed",
		"order_id", r.Id,
		"tokens", len(tokenIDs),
		"degraded", out.Degraded(),
	)
	return out, nil
}

// issue mints the order's tokens, retrying transient failures. When issuance
// cannot succeed it falls back to placeholder ids and reports placeholder=true.
func (o *Orchestrator) issue(ctx context.Context, r *models.Reservation) (tokenIDs []string, txRef string, placeholder bool) {
	req := issuance.Request{
		OrderID:      r.Id,
		BuyerAddress: r.BuyerAddress,
		EventID:      r.EventID,
		TicketTypeID: r.TicketTypeID,
		Quantity:     r.Quantity,
	}

	var res *issuance.Result
	op := func() error {
		var err error
		res, err = o.issuer.Issue(ctx, req)
		return err
	}
	notify := func(err error, wait time.Duration) {
		o.logger.WarnContext(ctx, "retrying token issuance", "order_id", r.Id, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(o.issueBackOff(), ctx), notify); err != nil {
		o.logger.ErrorContext(ctx, "token issuance failed, assigning placeholder ids", "order_id", r.Id, "error", err)
		return issuance.PlaceholderTokens(r.Id, r.Quantity), issuance.PlaceholderTransactionRef(r.Id), true
	}
	return res.TokenIDs, res.TransactionRef, false
}

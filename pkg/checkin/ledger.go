// Package checkin records that an issued ticket was presented at the door.
//
// A token is checked in at most once. Repeating a check-in is a valid
// outcome that returns the original record unchanged.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
	"github.com/hoangteo0103/ticket-reservations/pkg/keylock"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

// VerifyingInfo describes who is checking a token in and what was presented.
type VerifyingInfo struct {
	Agent          string
	PresentedOwner string
	EventID        string
}

// Verification is the outcome of a successful token verification.
type Verification struct {
	EventID        string
	TransactionRef string
}

// Verifier checks a token's validity and ownership.
type Verifier interface {
	VerifyToken(ctx context.Context, tokenID string, info VerifyingInfo) (*Verification, error)
}

// Ledger records check-ins.
type Ledger struct {
	store    storage.CheckInStore
	verifier Verifier
	clock    clock.Clock
	locks    *keylock.Map
	logger   *slog.Logger
}

// NewLedger creates a Ledger.
func NewLedger(store storage.CheckInStore, verifier Verifier, clk clock.Clock, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:    store,
		verifier: verifier,
		clock:    clk,
		locks:    keylock.New(),
		logger:   logger,
	}
}

// RecordCheckIn checks tokenID in. When the token was already checked in it
// returns the existing record and alreadyCheckedIn=true without verifying again.
func (l *Ledger) RecordCheckIn(ctx context.Context, tokenID string, info VerifyingInfo) (record *models.CheckInRecord, alreadyCheckedIn bool, err error) {
	if strings.TrimSpace(tokenID) == "" {
		return nil, false, apperrors.New(apperrors.InvalidArgument, "token id is required")
	}

	unlock := l.locks.Lock(tokenID)
	defer unlock()

	existing, err := l.existing(ctx, tokenID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	v, err := l.verifier.VerifyToken(ctx, tokenID, info)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.VerificationFailed {
			return nil, false, err
		}
		return nil, false, apperrors.Wrap(apperrors.VerificationFailed, err, "token %s could not be verified", tokenID)
	}

	record = &models.CheckInRecord{
		TokenID:        tokenID,
		EventID:        v.EventID,
		CheckedInAt:    l.clock.Now(),
		VerifyingAgent: info.Agent,
		TransactionRef: v.TransactionRef,
		PresentedOwner: info.PresentedOwner,
		Verified:       true,
	}
	if err := l.store.CreateCheckIn(ctx, record); err != nil {
		if !errors.Is(err, storage.ErrAlreadyExists) {
			return nil, false, apperrors.Wrap(apperrors.Internal, err, "failed to store check-in")
		}
		// Another process checked the token in first.
		existing, err := l.existing(ctx, tokenID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, apperrors.New(apperrors.Internal, "check-in for %s vanished", tokenID)
		}
		return existing, true, nil
	}

	l.logger.InfoContext(ctx, "ticket checked in", "token_id", tokenID, "event_id", record.EventID, "agent", info.Agent)
	return record, false, nil
}

func (l *Ledger) existing(ctx context.Context, tokenID string) (*models.CheckInRecord, error) {
	record, err := l.store.GetCheckIn(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.Internal, err, "failed to read check-in")
	}
	return record, nil
}

// Get returns the check-in record for a token.
func (l *Ledger) Get(ctx context.Context, tokenID string) (*models.CheckInRecord, error) {
	record, err := l.existing(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperrors.New(apperrors.NotFound, "token %s has not been checked in", tokenID)
	}
	return record, nil
}

// ListForEvent returns an event's check-ins, oldest first.
func (l *Ledger) ListForEvent(ctx context.Context, eventID string) ([]models.CheckInRecord, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "event id is required")
	}
	records, err := l.store.ListCheckInsByEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, fmt.Errorf("event %s: %w", eventID, err), "failed to list check-ins")
	}
	return records, nil
}

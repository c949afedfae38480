// Package scheduler arms and fires the timed release of reservation holds.
//
// Timers are an optimization: a hold's durable ExpiresAt plus the periodic
// Sweeper are what guarantee release after a restart. Whatever fires, the
// release itself must be idempotent, because the hold may already have been
// completed or cancelled by then.
package scheduler

import (
	"context"
	"time"
)

// ReleaseFunc expires a reservation if it is still reserved and due. It reports
// whether a transition happened; a hold that is no longer reserved is not an error.
type ReleaseFunc func(ctx context.Context, reservationID string) (bool, error)

// Scheduler defines the interface for a component that schedules the release of a hold.
type Scheduler interface {
	// Arm schedules a one-shot release of the reservation at deadline.
	Arm(ctx context.Context, reservationID string, deadline time.Time) error

	// Disarm cancels a pending release. It reports whether a pending timer was cancelled.
	Disarm(reservationID string) bool
}

// TimerState is the lifecycle of one armed release.
type TimerState string

const (
	Armed               TimerState = "armed"
	Fired               TimerState = "fired"
	CancelledBeforeFire TimerState = "cancelled-before-fire"
)

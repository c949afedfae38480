package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
)

type timer struct {
	t     *time.Timer
	state TimerState
}

// LocalScheduler fires releases from in-process timers. Pending timers are
// lost on restart; the Sweeper covers that case.
type LocalScheduler struct {
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	release ReleaseFunc
	timers  map[string]*timer

	// history keeps the final state of recently finished timers for inspection.
	history      map[string]TimerState
	historyOrder []string
}

const historyLimit = 1024

// NewLocalScheduler creates a LocalScheduler. Bind must be called before any timer fires.
func NewLocalScheduler(clk clock.Clock, logger *slog.Logger) *LocalScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalScheduler{
		clock:   clk,
		logger:  logger,
		timers:  make(map[string]*timer),
		history: make(map[string]TimerState),
	}
}

// Make sure we conform to the interface
var _ Scheduler = (*LocalScheduler)(nil)

// Bind sets the release callback invoked when a timer fires.
func (s *LocalScheduler) Bind(release ReleaseFunc) {
	s.mu.Lock()
	s.release = release
	s.mu.Unlock()
}

// Arm schedules a release at deadline, replacing any pending timer for the reservation.
func (s *LocalScheduler) Arm(ctx context.Context, reservationID string, deadline time.Time) error {
	delay := deadline.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[reservationID]; ok {
		existing.t.Stop()
	}
	entry := &timer{state: Armed}
	entry.t = time.AfterFunc(delay, func() { s.fire(reservationID, entry) })
	s.timers[reservationID] = entry
	return nil
}

func (s *LocalScheduler) fire(reservationID string, entry *timer) {
	s.mu.Lock()
	if current, ok := s.timers[reservationID]; !ok || current != entry {
		s.mu.Unlock()
		return
	}
	entry.state = Fired
	delete(s.timers, reservationID)
	s.remember(reservationID, Fired)
	release := s.release
	s.mu.Unlock()

	if release == nil {
		s.logger.Error("timer fired with no release bound", "reservation_id", reservationID)
		return
	}

	released, err := release(context.Background(), reservationID)
	if err != nil {
		s.logger.Error("timed release failed", "reservation_id", reservationID, "error", err)
		return
	}
	s.logger.Debug("timed release fired", "reservation_id", reservationID, "released", released)
}

// Disarm stops the pending timer for the reservation, if any.
func (s *LocalScheduler) Disarm(reservationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.timers[reservationID]
	if !ok {
		return false
	}
	entry.t.Stop()
	entry.state = CancelledBeforeFire
	delete(s.timers, reservationID)
	s.remember(reservationID, CancelledBeforeFire)
	return true
}

// remember records a finished timer's state. Callers must hold s.mu.
func (s *LocalScheduler) remember(reservationID string, state TimerState) {
	if _, ok := s.history[reservationID]; !ok {
		s.historyOrder = append(s.historyOrder, reservationID)
	}
	s.history[reservationID] = state
	for len(s.historyOrder) > historyLimit {
		delete(s.history, s.historyOrder[0])
		s.historyOrder = s.historyOrder[1:]
	}
}

// State returns the timer state for a reservation, or "" if it was never armed here.
func (s *LocalScheduler) State(reservationID string) TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.timers[reservationID]; ok {
		return entry.state
	}
	return s.history[reservationID]
}

// Pending returns the number of armed timers.
func (s *LocalScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer. Used on shutdown.
func (s *LocalScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.timers {
		entry.t.Stop()
		delete(s.timers, id)
	}
}

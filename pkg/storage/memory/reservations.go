package memory

import (
	"context"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

func (s *Store) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ScanReservations(ctx context.Context, filter storage.ReservationFilter) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Reservation
	for _, r := range s.reservations {
		if filter.Match(&r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) PutReservation(ctx context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[r.Id]; ok {
		return storage.ErrAlreadyExists
	}
	s.reservations[r.Id] = *r
	return nil
}

func (s *Store) TransitionReservation(ctx context.Context, id string, from, to models.ReservationStatus, at time.Time) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if r.Status != from {
		return nil, storage.ErrConditionFailed
	}
	r.Status = to
	r.UpdatedAt = at
	s.reservations[id] = r
	return &r, nil
}

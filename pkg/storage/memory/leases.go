package memory

import (
	"context"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

func (s *Store) AcquireLease(ctx context.Context, lease *models.WriterLease, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leases[lease.Name]
	if ok && current.Owner != lease.Owner && current.ExpiresAt.After(now) {
		return storage.ErrConditionFailed
	}
	s.leases[lease.Name] = *lease
	return nil
}

func (s *Store) ReleaseLease(ctx context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.leases[name]; ok && current.Owner == owner {
		delete(s.leases, name)
	}
	return nil
}

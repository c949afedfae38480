package memory

import (
	"context"
	"sort"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

func (s *Store) CreateCheckIn(ctx context.Context, record *models.CheckInRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkIns[record.TokenID]; ok {
		return storage.ErrAlreadyExists
	}
	s.checkIns[record.TokenID] = *record
	return nil
}

func (s *Store) GetCheckIn(ctx context.Context, tokenID string) (*models.CheckInRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.checkIns[tokenID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &record, nil
}

func (s *Store) ListCheckInsByEvent(ctx context.Context, eventID string) ([]models.CheckInRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CheckInRecord
	for _, record := range s.checkIns {
		if record.EventID == eventID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedInAt.Before(out[j].CheckedInAt) })
	return out, nil
}

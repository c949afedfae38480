package memory

import (
	"context"
	"fmt"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

func (s *Store) GetSupply(ctx context.Context, eventID, ticketTypeID string) (*models.Supply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supply, ok := s.supply[models.InventoryKey{EventID: eventID, TicketTypeID: ticketTypeID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &supply, nil
}

func (s *Store) IncrementSold(ctx context.Context, eventID, ticketTypeID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.InventoryKey{EventID: eventID, TicketTypeID: ticketTypeID}
	supply, ok := s.supply[key]
	if !ok {
		return fmt.Errorf("supply for %s: %w", key, storage.ErrNotFound)
	}
	supply.SoldCount += quantity
	s.supply[key] = supply
	return nil
}

// PutSupply seeds or replaces a ledger row.
func (s *Store) PutSupply(ctx context.Context, supply *models.Supply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supply[models.InventoryKey{EventID: supply.EventID, TicketTypeID: supply.TicketTypeID}] = *supply
	return nil
}

// CreateSupply adds a ledger row unless one exists.
func (s *Store) CreateSupply(ctx context.Context, supply *models.Supply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.InventoryKey{EventID: supply.EventID, TicketTypeID: supply.TicketTypeID}
	if _, ok := s.supply[key]; ok {
		return fmt.Errorf("supply for %s: %w", key, storage.ErrAlreadyExists)
	}
	s.supply[key] = *supply
	return nil
}

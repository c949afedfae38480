package memory

import (
	"context"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

func (s *Store) PutSale(ctx context.Context, sale *models.SaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[sale.OrderID]; ok {
		return storage.ErrAlreadyExists
	}
	cp := *sale
	cp.TokenIDs = append([]string(nil), sale.TokenIDs...)
	s.sales[sale.OrderID] = cp
	return nil
}

func (s *Store) GetSale(ctx context.Context, orderID string) (*models.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	sale.TokenIDs = append([]string(nil), sale.TokenIDs...)
	return &sale, nil
}

func (s *Store) SaveTickets(ctx context.Context, tickets []models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tickets {
		s.tickets[t.TokenID] = t
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, tokenID string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[tokenID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

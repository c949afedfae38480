// Package memory provides an in-process implementation of the storage interfaces.
// It backs local development and the engine's tests; it is not durable.
package memory

import (
	"sync"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

// Store implements the Storage interface with maps guarded by a single RWMutex.
type Store struct {
	mu           sync.RWMutex
	reservations map[string]models.Reservation
	supply       map[models.InventoryKey]models.Supply
	sales        map[string]models.SaleRecord
	tickets      map[string]models.Ticket
	checkIns     map[string]models.CheckInRecord
	connections  map[string]struct{}
	leases       map[string]models.WriterLease
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		reservations: make(map[string]models.Reservation),
		supply:       make(map[models.InventoryKey]models.Supply),
		sales:        make(map[string]models.SaleRecord),
		tickets:      make(map[string]models.Ticket),
		checkIns:     make(map[string]models.CheckInRecord),
		connections:  make(map[string]struct{}),
		leases:       make(map[string]models.WriterLease),
	}
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage         = (*Store)(nil)
	_ storage.SupplyWriter    = (*Store)(nil)
	_ storage.ConnectionStore = (*Store)(nil)
	_ storage.LeaseStore      = (*Store)(nil)
)

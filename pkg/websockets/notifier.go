package websockets

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
)

// DefaultNotifyQueueSize is how many distinct keys may wait for publication.
const DefaultNotifyQueueSize = 256

// SnapshotReader reads the current availability of a ticket type.
type SnapshotReader interface {
	Get(ctx context.Context, eventID, ticketTypeID string) (*models.AvailabilitySnapshot, error)
}

type notification struct {
	ctx context.Context
	key models.InventoryKey
}

// AvailabilityNotifier publishes availability updates after holds change.
// Notify only enqueues the key; a single worker reads the snapshot and
// publishes it. A key already waiting in the queue is not queued twice, and
// keys arriving while the queue is full are dropped with a warning.
type AvailabilityNotifier struct {
	snapshots SnapshotReader
	publisher Publisher
	logger    *slog.Logger

	queue chan notification
	done  chan struct{}

	mu      sync.Mutex
	pending map[models.InventoryKey]struct{}
	closed  bool
}

// NewAvailabilityNotifier creates an AvailabilityNotifier and starts its worker.
// Close stops it.
func NewAvailabilityNotifier(snapshots SnapshotReader, publisher Publisher, logger *slog.Logger) *AvailabilityNotifier {
	return NewAvailabilityNotifierWithQueue(snapshots, publisher, logger, DefaultNotifyQueueSize)
}

// NewAvailabilityNotifierWithQueue is NewAvailabilityNotifier with a custom queue size.
func NewAvailabilityNotifierWithQueue(snapshots SnapshotReader, publisher Publisher, logger *slog.Logger, size int) *AvailabilityNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if size < 1 {
		size = 1
	}
	n := &AvailabilityNotifier{
		snapshots: snapshots,
		publisher: publisher,
		logger:    logger,
		queue:     make(chan notification, size),
		done:      make(chan struct{}),
		pending:   make(map[models.InventoryKey]struct{}),
	}
	go n.run()
	return n
}

// Notify queues an availability update for key. It never blocks.
func (n *AvailabilityNotifier) Notify(ctx context.Context, key models.InventoryKey) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	if _, ok := n.pending[key]; ok {
		return
	}
	select {
	case n.queue <- notification{ctx: context.WithoutCancel(ctx), key: key}:
		n.pending[key] = struct{}{}
	default:
		n.logger.WarnContext(ctx, "availability update queue full, dropping update", "key", key.String())
	}
}

// Close stops accepting updates, publishes those already queued and waits for the worker.
func (n *AvailabilityNotifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
}

func (n *AvailabilityNotifier) run() {
	defer close(n.done)
	for item := range n.queue {
		// Cleared before reading so a change during publication queues a fresh update.
		n.mu.Lock()
		delete(n.pending, item.key)
		n.mu.Unlock()

		n.publish(item.ctx, item.key)
	}
}

func (n *AvailabilityNotifier) publish(ctx context.Context, key models.InventoryKey) {
	snap, err := n.snapshots.Get(ctx, key.EventID, key.TicketTypeID)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to read availability for update", "key", key.String(), "error", err)
		return
	}

	msg := Message{
		Type: MessageTypeAvailabilityUpdate,
		Payload: AvailabilityUpdatePayload{
			EventID:        snap.EventID,
			TicketTypeID:   snap.TicketTypeID,
			AvailableCount: snap.AvailableCount,
			TotalSupply:    snap.TotalSupply,
			SoldCount:      snap.SoldCount,
			ComputedAt:     snap.ComputedAt,
		},
	}
	if err := n.publisher.Publish(ctx, msg); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish availability update", "key", key.String(), "error", err)
	}
}

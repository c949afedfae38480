package websockets

import "context"

// NoOpPublisher discards every message. It is used when no push channel is configured.
type NoOpPublisher struct{}

// Publish does nothing.
func (p *NoOpPublisher) Publish(ctx context.Context, message Message) error {
	return nil
}

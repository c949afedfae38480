package websockets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

// AllConnectionsGetter defines an interface for getting all connection IDs.
type AllConnectionsGetter interface {
	GetAllConnections(ctx context.Context) ([]string, error)
}

// ConnectionPoster is the subset of the API Gateway management client the publisher uses.
type ConnectionPoster interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// DefaultPublisher pushes messages to clients connected through an API Gateway WebSocket API.
type DefaultPublisher struct {
	store       AllConnectionsGetter
	connManager ConnectionManager
	apiGwClient ConnectionPoster
	logger      *slog.Logger
}

// Make sure we conform to the interface
var _ Publisher = (*DefaultPublisher)(nil)

// NewPublisher creates a DefaultPublisher posting through the given API Gateway endpoint.
func NewPublisher(cfg aws.Config, store AllConnectionsGetter, connManager ConnectionManager, apiEndpoint string, logger *slog.Logger) *DefaultPublisher {
	apiGwClient := apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(apiEndpoint)
	})
	return NewPublisherWithClient(apiGwClient, store, connManager, logger)
}

// NewPublisherWithClient creates a DefaultPublisher around an existing client.
func NewPublisherWithClient(client ConnectionPoster, store AllConnectionsGetter, connManager ConnectionManager, logger *slog.Logger) *DefaultPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultPublisher{
		store:       store,
		connManager: connManager,
		apiGwClient: client,
		logger:      logger,
	}
}

// Publish sends a message to all connected clients. Gone connections are removed.
func (p *DefaultPublisher) Publish(ctx context.Context, message Message) error {
	connectionIDs, err := p.store.GetAllConnections(ctx)
	if err != nil {
		return fmt.Errorf("failed to get all connections: %w", err)
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	for _, connectionID := range connectionIDs {
		_, err := p.apiGwClient.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(connectionID),
			Data:         payload,
		})

		if err != nil {
			var goneErr *apigwtypes.GoneException
			if errors.As(err, &goneErr) {
				p.logger.Info("stale connection found, deleting", "connectionId", connectionID)
				if err := p.connManager.RemoveConnection(ctx, connectionID); err != nil {
					p.logger.Error("failed to delete stale connection", "error", err)
				}
			} else {
				p.logger.Error("failed to post to connection", "connectionId", connectionID, "error", err)
			}
		}
	}

	return nil
}

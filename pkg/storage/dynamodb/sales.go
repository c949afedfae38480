package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

// maxBatchWriteItems is the DynamoDB limit on requests per BatchWriteItem call.
const maxBatchWriteItems = 25

// PutSale stores the sale record for an order. An order has at most one.
func (s *Store) PutSale(ctx context.Context, sale *models.SaleRecord) error {
	item, err := attributevalue.MarshalMap(sale)
	if err != nil {
		return fmt.Errorf("failed to marshal sale: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.SalesTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to put sale: %w", err)
	}

	return nil
}

// GetSale retrieves the sale record for an order.
func (s *Store) GetSale(ctx context.Context, orderID string) (*models.SaleRecord, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.SalesTableName),
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sale from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var sale models.SaleRecord
	if err := attributevalue.UnmarshalMap(result.Item, &sale); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sale: %w", err)
	}

	return &sale, nil
}

// SaveTickets writes ticket records in batches, retrying unprocessed items.
func (s *Store) SaveTickets(ctx context.Context, tickets []models.Ticket) error {
	for start := 0; start < len(tickets); start += maxBatchWriteItems {
		end := min(start+maxBatchWriteItems, len(tickets))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, t := range tickets[start:end] {
			item, err := attributevalue.MarshalMap(t)
			if err != nil {
				return fmt.Errorf("failed to marshal ticket %s: %w", t.TokenID, err)
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		if err := s.batchWrite(ctx, map[string][]types.WriteRequest{s.TicketsTableName: requests}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) batchWrite(ctx context.Context, pending map[string][]types.WriteRequest) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	op := func() error {
		result, err := s.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("failed to batch write tickets: %w", err)
		}
		if len(result.UnprocessedItems) > 0 {
			pending = result.UnprocessedItems
			return fmt.Errorf("%d tables with unprocessed ticket writes", len(pending))
		}
		return nil
	}
	return backoff.Retry(op, policy)
}

// GetTicket retrieves a ticket by its token ID.
func (s *Store) GetTicket(ctx context.Context, tokenID string) (*models.Ticket, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TicketsTableName),
		Key: map[string]types.AttributeValue{
			"token_id": &types.AttributeValueMemberS{Value: tokenID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var ticket models.Ticket
	if err := attributevalue.UnmarshalMap(result.Item, &ticket); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket: %w", err)
	}

	return &ticket, nil
}


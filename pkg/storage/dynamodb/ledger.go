package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

func supplyKey(eventID, ticketTypeID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"event_id":       &types.AttributeValueMemberS{Value: eventID},
		"ticket_type_id": &types.AttributeValueMemberS{Value: ticketTypeID},
	}
}

// GetSupply retrieves the ledger row for an event's ticket type.
func (s *Store) GetSupply(ctx context.Context, eventID, ticketTypeID string) (*models.Supply, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.SupplyTableName),
		Key:            supplyKey(eventID, ticketTypeID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get supply from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var supply models.Supply
	if err := attributevalue.UnmarshalMap(result.Item, &supply); err != nil {
		return nil, fmt.Errorf("failed to unmarshal supply: %w", err)
	}

	return &supply, nil
}

// IncrementSold atomically adds quantity to the sold count.
func (s *Store) IncrementSold(ctx context.Context, eventID, ticketTypeID string, quantity int) error {
	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.SupplyTableName),
		Key:                 supplyKey(eventID, ticketTypeID),
		UpdateExpression:    aws.String("SET sold_count = sold_count + :quantity"),
		ConditionExpression: aws.String("attribute_exists(event_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":quantity": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", quantity)},
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return fmt.Errorf("supply for %s/%s: %w", eventID, ticketTypeID, storage.ErrNotFound)
		}
		return fmt.Errorf("failed to increment sold count: %w", err)
	}

	return nil
}

// PutSupply seeds or replaces a ledger row.
func (s *Store) PutSupply(ctx context.Context, supply *models.Supply) error {
	item, err := attributevalue.MarshalMap(supply)
	if err != nil {
		return fmt.Errorf("failed to marshal supply: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.SupplyTableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put supply: %w", err)
	}

	return nil
}

// CreateSupply writes a ledger row unless one already exists for the key.
func (s *Store) CreateSupply(ctx context.Context, supply *models.Supply) error {
	item, err := attributevalue.MarshalMap(supply)
	if err != nil {
		return fmt.Errorf("failed to marshal supply: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.SupplyTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(event_id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return fmt.Errorf("supply for %s/%s: %w", supply.EventID, supply.TicketTypeID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create supply: %w", err)
	}

	return nil
}

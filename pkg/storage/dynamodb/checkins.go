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

const checkInEventIndex = "event_id-checked_in_at-index"

// CreateCheckIn stores a check-in record if the token has none.
func (s *Store) CreateCheckIn(ctx context.Context, record *models.CheckInRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal check-in: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.CheckInsTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(token_id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to put check-in: %w", err)
	}

	return nil
}

// GetCheckIn retrieves the check-in record for a token.
func (s *Store) GetCheckIn(ctx context.Context, tokenID string) (*models.CheckInRecord, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.CheckInsTableName),
		Key: map[string]types.AttributeValue{
			"token_id": &types.AttributeValueMemberS{Value: tokenID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get check-in from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var record models.CheckInRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal check-in: %w", err)
	}

	return &record, nil
}

// ListCheckInsByEvent retrieves every check-in for an event, oldest first.
func (s *Store) ListCheckInsByEvent(ctx context.Context, eventID string) ([]models.CheckInRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.CheckInsTableName),
		IndexName:              aws.String(checkInEventIndex),
		KeyConditionExpression: aws.String("event_id = :event_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":event_id": &types.AttributeValueMemberS{Value: eventID},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var records []models.CheckInRecord
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query check-ins by event: %w", err)
		}
		var batch []models.CheckInRecord
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal check-ins: %w", err)
		}
		records = append(records, batch...)
		if len(result.LastEvaluatedKey) == 0 {
			return records, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

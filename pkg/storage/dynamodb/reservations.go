package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

const (
	buyerIndex  = "buyer_address-created_at-index"
	statusIndex = "status-expires_at-index"
	eventIndex  = "event_id-created_at-index"
)

// GetReservation retrieves a reservation from DynamoDB by its ID.
func (s *Store) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reservation ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.ReservationsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var r models.Reservation
	if err := attributevalue.UnmarshalMap(result.Item, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation: %w", err)
	}

	return &r, nil
}

// PutReservation creates a reservation record. The ID must not already exist.
func (s *Store) PutReservation(ctx context.Context, r *models.Reservation) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reservation: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.ReservationsTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to put reservation: %w", err)
	}

	return nil
}

// TransitionReservation atomically moves a reservation from one status to another.
// The status condition is what settles races between processes.
func (s *Store) TransitionReservation(ctx context.Context, id string, from, to models.ReservationStatus, at time.Time) (*models.Reservation, error) {
	atAV, err := attributevalue.Marshal(at)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transition timestamp: %w", err)
	}

	result, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.ReservationsTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET #status = :to_status, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND #status = :from_status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to_status":   &types.AttributeValueMemberS{Value: string(to)},
			":from_status": &types.AttributeValueMemberS{Value: string(from)},
			":now":         atAV,
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if condCheckFailed.Item == nil {
				return nil, storage.ErrNotFound
			}
			return nil, storage.ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to update reservation status to %s: %w", to, err)
	}

	var r models.Reservation
	if err := attributevalue.UnmarshalMap(result.Attributes, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation: %w", err)
	}

	return &r, nil
}

// ScanReservations returns every reservation matching filter. It queries the
// narrowest index the filter allows and applies the rest of the filter in memory.
func (s *Store) ScanReservations(ctx context.Context, filter storage.ReservationFilter) ([]models.Reservation, error) {
	var items []map[string]types.AttributeValue
	var err error

	switch {
	case filter.BuyerAddress != "":
		items, err = s.queryIndex(ctx, buyerIndex, "buyer_address", filter.BuyerAddress, time.Time{})
	case filter.Status != "":
		items, err = s.queryIndex(ctx, statusIndex, "status", string(filter.Status), filter.ExpiresBefore)
	case filter.EventID != "":
		items, err = s.queryIndex(ctx, eventIndex, "event_id", filter.EventID, time.Time{})
	default:
		items, err = s.scanTable(ctx)
	}
	if err != nil {
		return nil, err
	}

	var all []models.Reservation
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservations: %w", err)
	}

	out := all[:0]
	for i := range all {
		if filter.Match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// queryIndex reads every item of index whose partition key attribute equals
// value. A non-zero expiresBefore also bounds the expires_at sort key.
func (s *Store) queryIndex(ctx context.Context, index, attribute, value string, expiresBefore time.Time) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.ReservationsTableName),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String("#key = :value"),
		ExpressionAttributeNames: map[string]string{
			"#key": attribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberS{Value: value},
		},
	}
	if !expiresBefore.IsZero() {
		input.KeyConditionExpression = aws.String("#key = :value AND expires_at <= :until")
		input.ExpressionAttributeValues[":until"] = &types.AttributeValueMemberS{Value: expiryBound(expiresBefore)}
	}

	var items []map[string]types.AttributeValue
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query reservations by %s: %w", attribute, err)
		}
		items = append(items, result.Items...)
		if len(result.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// expiryBound formats t as an inclusive upper bound for string-encoded
// expires_at values. Stored times carry a variable number of fraction digits,
// so the bound is rounded up to the next whole second; ScanReservations drops
// the extra holds this lets through.
func expiryBound(t time.Time) string {
	return t.UTC().Truncate(time.Second).Add(time.Second).Format(time.RFC3339)
}

func (s *Store) scanTable(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.ReservationsTableName),
	}

	var items []map[string]types.AttributeValue
	for {
		result, err := s.Client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservations: %w", err)
		}
		items = append(items, result.Items...)
		if len(result.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

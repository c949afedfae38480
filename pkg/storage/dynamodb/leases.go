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

// AcquireLease takes or renews a named lease with a conditional put.
func (s *Store) AcquireLease(ctx context.Context, lease *models.WriterLease, now time.Time) error {
	item, err := attributevalue.MarshalMap(lease)
	if err != nil {
		return fmt.Errorf("failed to marshal lease: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.LeasesTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#name) OR #owner = :owner OR expires_at <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#name":  "name",
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: lease.Owner},
			":now":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrConditionFailed
		}
		return fmt.Errorf("failed to acquire lease %s: %w", lease.Name, err)
	}

	return nil
}

// ReleaseLease deletes the named lease if owner still holds it.
func (s *Store) ReleaseLease(ctx context.Context, name, owner string) error {
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.LeasesTableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil
		}
		return fmt.Errorf("failed to release lease %s: %w", name, err)
	}

	return nil
}

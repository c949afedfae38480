package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testReservation(id string) *models.Reservation {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return &models.Reservation{
		Id:           id,
		EventID:      "event-1",
		TicketTypeID: "vip",
		Quantity:     2,
		BuyerAddress: "0xbuyer",
		UnitPrice:    50,
		TotalPrice:   100,
		Status:       models.RESERVED,
		CreatedAt:    created,
		ExpiresAt:    created.Add(15 * time.Minute),
		UpdatedAt:    created,
	}
}

func TestGetReservation(t *testing.T) {
	id := uuid.New().String()
	r := testReservation(id)

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		item, _ := attributevalue.MarshalMap(r)
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return aws.ToString(in.TableName) == "reservations" && aws.ToBool(in.ConsistentRead)
		})).Return(&dynamodb.GetItemOutput{Item: item}, nil)

		result, err := store.GetReservation(context.Background(), id)

		assert.NoError(t, err)
		assert.Equal(t, r, result)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: nil}, nil)

		_, err := store.GetReservation(context.Background(), id)

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("get item failed"))

		_, err := store.GetReservation(context.Background(), id)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get reservation from DynamoDB")
		mockClient.AssertExpectations(t)
	})
}

func TestPutReservation(t *testing.T) {
	r := testReservation(uuid.New().String())

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			return aws.ToString(in.ConditionExpression) == "attribute_not_exists(id)"
		})).Return(&dynamodb.PutItemOutput{}, nil)

		err := store.PutReservation(context.Background(), r)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Duplicate ID", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		err := store.PutReservation(context.Background(), r)

		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
		mockClient.AssertExpectations(t)
	})

	t.Run("PutItem Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		err := store.PutReservation(context.Background(), r)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to put reservation")
		mockClient.AssertExpectations(t)
	})
}

func TestTransitionReservation(t *testing.T) {
	id := uuid.New().String()
	at := time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		updated := testReservation(id)
		updated.Status = models.COMPLETED
		updated.UpdatedAt = at
		attrs, _ := attributevalue.MarshalMap(updated)

		mockClient.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			from := in.ExpressionAttributeValues[":from_status"].(*types.AttributeValueMemberS)
			to := in.ExpressionAttributeValues[":to_status"].(*types.AttributeValueMemberS)
			return from.Value == "reserved" && to.Value == "completed" &&
				in.ExpressionAttributeNames["#status"] == "status"
		})).Return(&dynamodb.UpdateItemOutput{Attributes: attrs}, nil)

		result, err := store.TransitionReservation(context.Background(), id, models.RESERVED, models.COMPLETED, at)

		require.NoError(t, err)
		assert.Equal(t, models.COMPLETED, result.Status)
		assert.Equal(t, at, result.UpdatedAt)
		mockClient.AssertExpectations(t)
	})

	t.Run("Status Already Moved", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		old, _ := attributevalue.MarshalMap(testReservation(id))
		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{Item: old})

		_, err := store.TransitionReservation(context.Background(), id, models.RESERVED, models.CANCELLED, at)

		assert.ErrorIs(t, err, storage.ErrConditionFailed)
		mockClient.AssertExpectations(t)
	})

	t.Run("Missing Reservation", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		_, err := store.TransitionReservation(context.Background(), id, models.RESERVED, models.EXPIRED, at)

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})

	t.Run("UpdateItem Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, errors.New("update failed"))

		_, err := store.TransitionReservation(context.Background(), id, models.RESERVED, models.EXPIRED, at)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update reservation status to expired")
		mockClient.AssertExpectations(t)
	})
}

func TestScanReservations(t *testing.T) {
	reserved := testReservation("r-1")
	completed := testReservation("r-2")
	completed.Status = models.COMPLETED
	otherBuyer := testReservation("r-3")
	otherBuyer.BuyerAddress = "0xother"

	items := func(rs ...*models.Reservation) []map[string]types.AttributeValue {
		out := make([]map[string]types.AttributeValue, 0, len(rs))
		for _, r := range rs {
			item, _ := attributevalue.MarshalMap(r)
			out = append(out, item)
		}
		return out
	}

	t.Run("Buyer Uses Buyer Index", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return aws.ToString(in.IndexName) == buyerIndex && in.ExpressionAttributeNames["#key"] == "buyer_address"
		})).Return(&dynamodb.QueryOutput{Items: items(reserved, completed)}, nil)

		result, err := store.ScanReservations(context.Background(), storage.ReservationFilter{
			BuyerAddress: "0xbuyer",
			Status:       models.RESERVED,
		})

		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "r-1", result[0].Id)
		mockClient.AssertExpectations(t)
	})

	t.Run("Status Query Follows Pages", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		lastKey := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "r-1"}}
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return aws.ToString(in.IndexName) == statusIndex && in.ExclusiveStartKey == nil
		})).Return(&dynamodb.QueryOutput{Items: items(reserved), LastEvaluatedKey: lastKey}, nil).Once()
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey != nil
		})).Return(&dynamodb.QueryOutput{Items: items(otherBuyer)}, nil).Once()

		result, err := store.ScanReservations(context.Background(), storage.ReservationFilter{Status: models.RESERVED})

		require.NoError(t, err)
		assert.Len(t, result, 2)
		mockClient.AssertExpectations(t)
	})

	t.Run("Due Holds Bound The Expiry Key", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		now := time.Date(2025, 1, 1, 12, 30, 0, 500, time.UTC)
		due := testReservation("r-4")
		due.ExpiresAt = now.Add(-time.Minute)
		notDue := testReservation("r-5")
		notDue.ExpiresAt = now.Add(300 * time.Millisecond)

		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			until, ok := in.ExpressionAttributeValues[":until"].(*types.AttributeValueMemberS)
			return aws.ToString(in.IndexName) == statusIndex &&
				aws.ToString(in.KeyConditionExpression) == "#key = :value AND expires_at <= :until" &&
				ok && until.Value == "2025-01-01T12:30:01Z"
		})).Return(&dynamodb.QueryOutput{Items: items(due, notDue)}, nil)

		result, err := store.ScanReservations(context.Background(), storage.ReservationFilter{
			Status:        models.RESERVED,
			ExpiresBefore: now,
		})

		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "r-4", result[0].Id)
		mockClient.AssertExpectations(t)
	})

	t.Run("Unfiltered Scans Table", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{Items: items(reserved, completed, otherBuyer)}, nil)

		result, err := store.ScanReservations(context.Background(), storage.ReservationFilter{})

		require.NoError(t, err)
		assert.Len(t, result, 3)
		mockClient.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
		mockClient.AssertExpectations(t)
	})

	t.Run("Query Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, ReservationsTableName: "reservations"}

		mockClient.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("query failed"))

		_, err := store.ScanReservations(context.Background(), storage.ReservationFilter{EventID: "event-1"})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query reservations by event_id")
		mockClient.AssertExpectations(t)
	})
}

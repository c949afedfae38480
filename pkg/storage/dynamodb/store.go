package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
)

//go:generate mockery --name DynamoDBAPI --output mocks --outpkg mocks

// DynamoDBAPI is the subset of the DynamoDB client used by the Store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Tables names the DynamoDB tables backing the Store.
type Tables struct {
	Reservations         string
	Supply               string
	Sales                string
	Tickets              string
	CheckIns             string
	WebsocketConnections string
	Leases               string
}

// Store implements the Storage interface using AWS DynamoDB.
type Store struct {
	Client                        DynamoDBAPI
	ReservationsTableName         string
	SupplyTableName               string
	SalesTableName                string
	TicketsTableName              string
	CheckInsTableName             string
	WebsocketConnectionsTableName string
	LeasesTableName               string
}

// New creates a new Store.
func New(client DynamoDBAPI, tables Tables) *Store {
	return &Store{
		Client:                        client,
		ReservationsTableName:         tables.Reservations,
		SupplyTableName:               tables.Supply,
		SalesTableName:                tables.Sales,
		TicketsTableName:              tables.Tickets,
		CheckInsTableName:             tables.CheckIns,
		WebsocketConnectionsTableName: tables.WebsocketConnections,
		LeasesTableName:               tables.Leases,
	}
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage         = (*Store)(nil)
	_ storage.SupplyWriter    = (*Store)(nil)
	_ storage.ConnectionStore = (*Store)(nil)
	_ storage.LeaseStore      = (*Store)(nil)
	_ DynamoDBAPI             = (*dynamodb.Client)(nil)
)

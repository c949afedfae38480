package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hoangteo0103/ticket-reservations/pkg/config"
	wshandler "github.com/hoangteo0103/ticket-reservations/pkg/handlers/websockets"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage/dynamodb"
)

var handler *wshandler.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	store := dynamodb.New(awsdynamodb.NewFromConfig(awsCfg), dynamodb.Tables(cfg.Tables))
	handler = wshandler.NewHandler(store, nil, slog.Default())
}

// HandleRequest routes API Gateway WebSocket events by route key.
func HandleRequest(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch request.RequestContext.RouteKey {
	case "$connect":
		return handler.HandleConnect(ctx, request)
	case "$disconnect":
		return handler.HandleDisconnect(ctx, request)
	case "$default":
		return handler.HandleDefault(ctx, request)
	default:
		return events.APIGatewayProxyResponse{StatusCode: 400}, fmt.Errorf("unknown route key %q", request.RequestContext.RouteKey)
	}
}

func main() {
	lambda.Start(HandleRequest)
}

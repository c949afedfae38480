package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/hoangteo0103/ticket-reservations/pkg/app"
	"github.com/hoangteo0103/ticket-reservations/pkg/config"
	"github.com/hoangteo0103/ticket-reservations/pkg/reservations"
)

var manager *reservations.Manager

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.StoreBackend != config.BackendDynamoDB {
		log.Fatal("the reconciliation lambda requires STORE_BACKEND=dynamodb")
	}

	infra, err := app.New(context.Background(), cfg, slog.Default(), app.Options{Headless: true})
	if err != nil {
		log.Fatalf("failed to assemble engine: %v", err)
	}
	manager = infra.Manager
}

// HandleRequest is triggered by an EventBridge Schedule. It releases every
// reserved hold whose deadline has passed, whatever happened to its timer.
func HandleRequest(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting expiration sweep")

	released, err := manager.SweepExpired(ctx)
	if err != nil {
		// Holds released before the failure stay released; the next run retries the rest.
		slog.ErrorContext(ctx, "expiration sweep finished with errors", "released", released, "error", err)
		return err
	}

	slog.InfoContext(ctx, "Expiration sweep finished", "released", released)
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}

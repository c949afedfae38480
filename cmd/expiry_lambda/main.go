package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/hoangteo0103/ticket-reservations/pkg/app"
	"github.com/hoangteo0103/ticket-reservations/pkg/config"
	"github.com/hoangteo0103/ticket-reservations/pkg/scheduler"
)

var consumer *scheduler.ExpiryConsumer

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.StoreBackend != config.BackendDynamoDB || cfg.SQSQueueURL == "" {
		log.Fatal("the expiry lambda requires STORE_BACKEND=dynamodb and SQS_QUEUE_URL")
	}

	infra, err := app.New(context.Background(), cfg, slog.Default(), app.Options{Headless: true})
	if err != nil {
		log.Fatalf("failed to assemble engine: %v", err)
	}
	consumer = scheduler.NewExpiryConsumer(infra.Manager.Release, infra.Scheduler, infra.Clock, slog.Default())
}

// HandleRequest processes delayed expiry messages. Failed records are reported
// individually so SQS redelivers only those.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		if err := consumer.Handle(ctx, message.Body); err != nil {
			slog.ErrorContext(ctx, "failed to process expiry message", "message_id", message.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
		}
	}
	return resp, nil
}

func main() {
	lambda.Start(HandleRequest)
}

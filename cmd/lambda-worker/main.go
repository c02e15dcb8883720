package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"hawkkeyed-backend/internal/bootstrap"
	"hawkkeyed-backend/internal/shared/config"
	"hawkkeyed-backend/internal/shared/telemetry"
	"hawkkeyed-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	archiver *workerproc.Archiver
)

func initApp() {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		initErr = err
		return
	}
	archiver = &workerproc.Archiver{Runs: app.RunsRepo, Store: app.Store}
}

// handler reports failed records individually so SQS redelivers only
// those. Records that can never succeed are acknowledged.
func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		if _, err := archiver.HandleMessage(ctx, record.Body); err != nil && !workerproc.Unrecoverable(err) {
			telemetry.Warn("worker.run_event.retry", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	lambda.Start(handler)
}

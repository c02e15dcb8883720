package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"hawkkeyed-backend/internal/bootstrap"
	"hawkkeyed-backend/internal/shared/config"
	"hawkkeyed-backend/internal/shared/telemetry"
	"hawkkeyed-backend/internal/workerproc"
)

const defaultRegion = "us-east-1"

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type messageHandler interface {
	HandleMessage(ctx context.Context, body string) (workerproc.Outcome, error)
}

func main() {
	cfg := config.Load()
	queueURL := strings.TrimSpace(cfg.RunEventsQueue)
	if queueURL == "" {
		log.Fatal("RUN_EVENTS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	w := &worker{
		client:     sqs.NewFromConfig(awsCfg),
		queueURL:   queueURL,
		handler:    &workerproc.Archiver{Runs: app.RunsRepo, Store: app.Store},
		visibility: int32(cfg.WorkerVisibilitySeconds),
	}
	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", queueURL, cfg.WorkerConcurrency, cfg.WorkerVisibilitySeconds)
	w.run(ctx, max(1, cfg.WorkerConcurrency), cfg.WorkerShutdownTimeout)
}

type worker struct {
	client     sqsAPI
	queueURL   string
	handler    messageHandler
	visibility int32
}

func (w *worker) run(ctx context.Context, concurrency int, shutdownTimeout time.Duration) {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   w.visibility,
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// In-flight messages finish even after shutdown is requested.
				w.handle(context.WithoutCancel(ctx), m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight events", shutdownTimeout)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight events")
	}
}

// handle processes one message and deletes it unless it should be retried.
func (w *worker) handle(ctx context.Context, msg sqstypes.Message) {
	fields := baseFields(msg)
	outcome, err := w.handler.HandleMessage(ctx, aws.ToString(msg.Body))
	if err != nil && !workerproc.Unrecoverable(err) {
		fields["error"] = err.Error()
		telemetry.Error("worker.run_event.failed", fields)
		return
	}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.run_event.dropped", fields)
	} else {
		fields["outcome"] = string(outcome)
	}
	if w.delete(ctx, msg) && err == nil {
		telemetry.Info("worker.run_event.completed", fields)
	}
}

func (w *worker) delete(ctx context.Context, msg sqstypes.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.run_event.delete_failed", fields)
		return false
	}
	if _, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg)
		fields["error"] = err.Error()
		telemetry.Error("worker.run_event.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message) map[string]any {
	return map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	parsed, err := strconv.Atoi(msg.Attributes["ApproximateReceiveCount"])
	if err != nil {
		return 0
	}
	return parsed
}

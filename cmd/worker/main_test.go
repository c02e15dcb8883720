package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"hawkkeyed-backend/internal/workerproc"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeHandler struct {
	outcome workerproc.Outcome
	err     error
}

func (f fakeHandler) HandleMessage(ctx context.Context, body string) (workerproc.Outcome, error) {
	return f.outcome, f.err
}

func message() sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String("m1"),
		ReceiptHandle: aws.String("r1"),
		Body:          aws.String(`{"type":"run.finished","runId":"run-1"}`),
		Attributes:    map[string]string{"ApproximateReceiveCount": "2"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	w := &worker{client: client, queueURL: "q", handler: fakeHandler{outcome: workerproc.OutcomeArchived}}

	w.handle(context.Background(), message())

	if len(client.deleted) != 1 || client.deleted[0] != "r1" {
		t.Fatalf("expected message deleted, got %v", client.deleted)
	}
}

func TestWorkerKeepsMessageOnRetryableError(t *testing.T) {
	client := &fakeSQS{}
	w := &worker{client: client, queueURL: "q", handler: fakeHandler{err: errors.New("s3 unavailable")}}

	w.handle(context.Background(), message())

	if len(client.deleted) != 0 {
		t.Fatalf("expected message kept for redelivery, got %v", client.deleted)
	}
}

func TestWorkerDropsUnrecoverableMessage(t *testing.T) {
	client := &fakeSQS{}
	w := &worker{client: client, queueURL: "q", handler: fakeHandler{err: workerproc.ErrMissingRunID{}}}

	w.handle(context.Background(), message())

	if len(client.deleted) != 1 {
		t.Fatalf("expected unrecoverable message deleted, got %v", client.deleted)
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(message()); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0 without attributes, got %d", got)
	}
}

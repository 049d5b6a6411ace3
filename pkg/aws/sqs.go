package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// MessageHandler processes one SQS message body. Returning an error leaves the
// message on the queue; it becomes visible again after the visibility timeout.
type MessageHandler func(ctx context.Context, body string) error

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue is the reconcile queue: jobs are sent by request handlers and
// long-polled by the reconciler.
type SQSQueue struct {
	api      sqsAPI
	queueURL string
	logger   *zap.Logger

	waitSeconds       int32
	visibilitySeconds int32
	errorBackoff      time.Duration
}

func NewSQSQueue(cfg sdkaws.Config, queueURL string, logger *zap.Logger) *SQSQueue {
	return newSQSQueue(sqs.NewFromConfig(cfg), queueURL, logger)
}

func newSQSQueue(api sqsAPI, queueURL string, logger *zap.Logger) *SQSQueue {
	return &SQSQueue{
		api:               api,
		queueURL:          queueURL,
		logger:            logger,
		waitSeconds:       20,
		visibilitySeconds: 60,
		errorBackoff:      5 * time.Second,
	}
}

func (q *SQSQueue) SendMessage(ctx context.Context, body string) error {
	if _, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(q.queueURL),
		MessageBody: sdkaws.String(body),
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// StartPolling polls until ctx is cancelled and returns ctx.Err(). A failed
// receive waits errorBackoff before the next attempt.
func (q *SQSQueue) StartPolling(ctx context.Context, handler MessageHandler) error {
	q.logger.Info("Starting SQS polling", zap.String("queue_url", q.queueURL))

	for {
		if ctx.Err() != nil {
			q.logger.Info("SQS polling stopped", zap.String("queue_url", q.queueURL))
			return ctx.Err()
		}

		err := q.pollOnce(ctx, handler)
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}

		q.logger.Warn("Error polling SQS", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(q.errorBackoff):
		}
	}
}

func (q *SQSQueue) pollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    sdkaws.String(q.queueURL),
		MaxNumberOfMessages:         10,
		WaitTimeSeconds:             q.waitSeconds,
		VisibilityTimeout:           q.visibilitySeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		q.handle(ctx, msg, handler)
	}
	return nil
}

func (q *SQSQueue) handle(ctx context.Context, msg types.Message, handler MessageHandler) {
	id := sdkaws.ToString(msg.MessageId)
	if msg.Body == nil {
		q.logger.Warn("Deleting SQS message without body", zap.String("message_id", id))
		q.delete(ctx, msg)
		return
	}

	if err := handler(ctx, *msg.Body); err != nil {
		q.logger.Warn("Failed to process message",
			zap.String("message_id", id),
			zap.String("receive_count", msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]),
			zap.Error(err),
		)
		return
	}
	q.delete(ctx, msg)
}

func (q *SQSQueue) delete(ctx context.Context, msg types.Message) {
	if _, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      sdkaws.String(q.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		q.logger.Warn("Failed to delete message", zap.String("message_id", sdkaws.ToString(msg.MessageId)), zap.Error(err))
	}
}

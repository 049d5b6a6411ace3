package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
)

// ErrQueueDisabled is returned when no reconcile queue is configured.
var ErrQueueDisabled = errors.New("reconcile queue not configured")

// JobQueue hands reconcile jobs to an asynchronous worker.
type JobQueue interface {
	Enqueue(ctx context.Context, job models.ReconcileJob) error
}

type messageSender interface {
	SendMessage(ctx context.Context, body string) error
}

// SQSJobQueue serializes jobs onto the reconcile SQS queue.
type SQSJobQueue struct {
	queue messageSender
}

func NewSQSJobQueue(queue messageSender) *SQSJobQueue {
	return &SQSJobQueue{queue: queue}
}

func (q *SQSJobQueue) Enqueue(ctx context.Context, job models.ReconcileJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", job.Kind, err)
	}
	return q.queue.SendMessage(ctx, string(body))
}

// DecodeJob parses a queue message body.
func DecodeJob(body string) (models.ReconcileJob, error) {
	var job models.ReconcileJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return job, fmt.Errorf("decode reconcile job: %w", err)
	}
	if job.Kind == "" {
		return job, errors.New("decode reconcile job: missing kind")
	}
	return job, nil
}

// DisabledJobQueue rejects every job, leaving the caller's log line as the
// only record.
type DisabledJobQueue struct{}

func (DisabledJobQueue) Enqueue(ctx context.Context, job models.ReconcileJob) error {
	return ErrQueueDisabled
}

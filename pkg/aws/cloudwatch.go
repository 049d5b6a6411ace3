package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const (
	logBatchSize     = 100
	logFlushInterval = 2 * time.Second
	logBufferSize    = 1024
	logRetentionDays = 30
)

type cloudWatchLogsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsClient is an io.Writer that ships log lines to one
// CloudWatch log stream in batches. Lines are dropped, not blocked on, when
// the buffer is full.
type CloudWatchLogsClient struct {
	api           cloudWatchLogsAPI
	logGroupName  string
	logStreamName string

	mu     sync.RWMutex
	closed bool
	events chan types.InputLogEvent
	done   chan struct{}
}

// NewCloudWatchLogsClient ensures the log group and creates a fresh stream
// named after the service and start time.
func NewCloudWatchLogsClient(ctx context.Context, cfg sdkaws.Config, logGroupName, serviceName string) (*CloudWatchLogsClient, error) {
	return newCloudWatchLogsClient(ctx, cloudwatchlogs.NewFromConfig(cfg), logGroupName, serviceName, logFlushInterval)
}

func newCloudWatchLogsClient(ctx context.Context, api cloudWatchLogsAPI, logGroupName, serviceName string, flushEvery time.Duration) (*CloudWatchLogsClient, error) {
	if logGroupName == "" {
		logGroupName = "/storefront/services"
	}

	cw := &CloudWatchLogsClient{
		api:           api,
		logGroupName:  logGroupName,
		logStreamName: fmt.Sprintf("%s-%d", serviceName, time.Now().Unix()),
		events:        make(chan types.InputLogEvent, logBufferSize),
		done:          make(chan struct{}),
	}

	if err := cw.ensureLogGroup(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure log group: %w", err)
	}
	if _, err := cw.api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  sdkaws.String(cw.logGroupName),
		LogStreamName: sdkaws.String(cw.logStreamName),
	}); err != nil {
		return nil, fmt.Errorf("failed to create log stream: %w", err)
	}

	go cw.run(flushEvery)
	return cw, nil
}

func (c *CloudWatchLogsClient) ensureLogGroup(ctx context.Context) error {
	_, err := c.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: sdkaws.String(c.logGroupName),
	})
	if err != nil {
		var existsErr *types.ResourceAlreadyExistsException
		if !errors.As(err, &existsErr) {
			return err
		}
	}

	if _, err := c.api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    sdkaws.String(c.logGroupName),
		RetentionInDays: sdkaws.Int32(logRetentionDays),
	}); err != nil {
		return fmt.Errorf("failed to set retention policy: %w", err)
	}
	return nil
}

// Write queues p for the next batch. zap reuses p after Write returns, so
// it is copied. Lines written after Close are discarded.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return len(p), nil
	}

	event := types.InputLogEvent{
		Message:   sdkaws.String(string(p)),
		Timestamp: sdkaws.Int64(time.Now().UnixMilli()),
	}
	select {
	case c.events <- event:
	default:
		fmt.Fprintln(os.Stderr, "CloudWatch log buffer full, dropping line")
	}
	return len(p), nil
}

// Close flushes queued lines and stops the shipper.
func (c *CloudWatchLogsClient) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.mu.Unlock()
	<-c.done
	return nil
}

func (c *CloudWatchLogsClient) run(flushEvery time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]types.InputLogEvent, 0, logBatchSize)
	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				c.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= logBatchSize {
				c.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(batch)
			batch = batch[:0]
		}
	}
}

func (c *CloudWatchLogsClient) flush(batch []types.InputLogEvent) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.api.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  sdkaws.String(c.logGroupName),
		LogStreamName: sdkaws.String(c.logStreamName),
		LogEvents:     append([]types.InputLogEvent(nil), batch...),
	}); err != nil {
		// Shipping failures must not reach the logger itself.
		fmt.Fprintf(os.Stderr, "CloudWatch write error: %v\n", err)
	}
}

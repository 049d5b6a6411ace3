package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// maxDatumsPerCall is the chunk size for PutMetricData.
const maxDatumsPerCall = 20

// Datum is one data point handed to MetricsClient.Put.
type Datum struct {
	Name       string
	Value      float64
	Unit       types.StandardUnit
	Dimensions map[string]string
}

// Count is a single increment of name.
func Count(name string, dimensions map[string]string) Datum {
	return Datum{Name: name, Value: 1, Unit: types.StandardUnitCount, Dimensions: dimensions}
}

// Latency is d in milliseconds.
func Latency(name string, d time.Duration, dimensions map[string]string) Datum {
	return Datum{Name: name, Value: float64(d.Milliseconds()), Unit: types.StandardUnitMilliseconds, Dimensions: dimensions}
}

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient publishes storefront counters and latencies to CloudWatch.
// A nil or disabled client accepts every call and sends nothing.
type MetricsClient struct {
	api       cloudWatchAPI
	namespace string
	enabled   bool
	now       func() time.Time
}

func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	return newMetricsClient(cloudwatch.NewFromConfig(cfg), namespace, enabled)
}

func newMetricsClient(api cloudWatchAPI, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = "Storefront"
	}
	return &MetricsClient{api: api, namespace: namespace, enabled: enabled, now: time.Now}
}

// Put sends data in as few PutMetricData calls as the API allows. Every
// point in one Put shares a timestamp.
func (m *MetricsClient) Put(ctx context.Context, data ...Datum) error {
	if !m.IsEnabled() || len(data) == 0 {
		return nil
	}

	ts := sdkaws.Time(m.now())
	datums := make([]types.MetricDatum, 0, len(data))
	for _, d := range data {
		datums = append(datums, types.MetricDatum{
			MetricName: sdkaws.String(d.Name),
			Value:      sdkaws.Float64(d.Value),
			Unit:       d.Unit,
			Timestamp:  ts,
			Dimensions: toDimensions(d.Dimensions),
		})
	}

	for start := 0; start < len(datums); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(datums))
		if _, err := m.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  sdkaws.String(m.namespace),
			MetricData: datums[start:end],
		}); err != nil {
			return fmt.Errorf("failed to put metrics: %w", err)
		}
	}
	return nil
}

// RecordCount increments a counter metric
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.Put(ctx, Count(metricName, dimensions))
}

func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.Put(ctx, Latency(metricName, duration, dimensions))
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// toDimensions sorts by name so identical sets produce identical requests.
func toDimensions(dimensions map[string]string) []types.Dimension {
	if len(dimensions) == 0 {
		return nil
	}
	names := make([]string, 0, len(dimensions))
	for k := range dimensions {
		names = append(names, k)
	}
	sort.Strings(names)

	dims := make([]types.Dimension, 0, len(names))
	for _, k := range names {
		dims = append(dims, types.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(dimensions[k])})
	}
	return dims
}

const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	MetricOrdersCreated      = "OrdersCreated"
	MetricOrdersCancelled    = "OrdersCancelled"
	MetricPaymentSucceeded   = "PaymentSucceeded"
	MetricPaymentFailed      = "PaymentFailed"
	MetricGatewayErrors      = "PaymentGatewayErrors"
	MetricReconcileEnqueued  = "ReconcileJobsEnqueued"
	MetricReconcileProcessed = "ReconcileJobsProcessed"
	MetricCacheHits          = "CacheHits"
	MetricCacheMisses        = "CacheMisses"
)

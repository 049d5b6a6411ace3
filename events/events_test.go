package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
)

type fakeSNS struct {
	topic string
	body  []byte
	attrs map[string]string
}

func (f *fakeSNS) Publish(ctx context.Context, topicArn string, message []byte, attributes map[string]string) error {
	f.topic, f.body, f.attrs = topicArn, message, attributes
	return nil
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

type fakeSender struct{ bodies []string }

func (f *fakeSender) SendMessage(ctx context.Context, body string) error {
	f.bodies = append(f.bodies, body)
	return nil
}

func sampleEvent() models.OrderEvent {
	return models.NewOrderEvent(models.EventPaymentVerified, &models.Order{
		OrderID:        11,
		GatewayOrderID: "order_Gw1",
		Status:         models.StatusProcessing,
		PaymentStatus:  models.PaymentSuccessful,
		TotalAmount:    200,
		Currency:       "INR",
	})
}

func TestSNSPublisher_Publish(t *testing.T) {
	client := &fakeSNS{}
	p := NewSNSPublisher(client, "arn:aws:sns:ap-south-1:000000000000:orders")

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "arn:aws:sns:ap-south-1:000000000000:orders", client.topic)
	assert.Equal(t, "payment.verified", client.attrs["event_type"])
	assert.Equal(t, "11", client.attrs["order_id"])

	var evt models.OrderEvent
	require.NoError(t, json.Unmarshal(client.body, &evt))
	assert.Equal(t, int64(200), evt.TotalAmount)
}

func TestKafkaPublisher_KeysByOrderID(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "storefront.orders", logger: zap.NewNop()}

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("11"), w.msgs[0].Key)
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}, topic: "t", logger: zap.NewNop()}
	err := p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order=11")
}

func TestSQSJobQueue_RoundTrip(t *testing.T) {
	sender := &fakeSender{}
	q := NewSQSJobQueue(sender)

	job := models.ReconcileJob{Kind: models.JobApplyStock, OrderID: 11, GatewayOrderID: "order_Gw1", Reason: "stock shortfall"}
	require.NoError(t, q.Enqueue(context.Background(), job))
	require.Len(t, sender.bodies, 1)

	decoded, err := DecodeJob(sender.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, job.Kind, decoded.Kind)
	assert.Equal(t, job.OrderID, decoded.OrderID)
}

func TestDecodeJob_Invalid(t *testing.T) {
	_, err := DecodeJob("not json")
	assert.Error(t, err)

	_, err = DecodeJob(`{"orderId":1}`)
	assert.Error(t, err)
}

func TestDisabledJobQueue(t *testing.T) {
	assert.ErrorIs(t, DisabledJobQueue{}.Enqueue(context.Background(), models.ReconcileJob{}), ErrQueueDisabled)
}

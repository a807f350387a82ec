package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	keys   []string
	events []interface{}
}

func (w *recordingWriter) PublishEvent(ctx context.Context, key string, event interface{}) error {
	w.keys = append(w.keys, key)
	w.events = append(w.events, event)
	return nil
}

func TestPublishKeysBySession(t *testing.T) {
	w := &recordingWriter{}
	p := NewEventPublisher(w)

	require.NoError(t, p.PublishOrderSubmitted(context.Background(), &models.OrderSubmittedEvent{SessionID: "tab-1", OrderID: "a"}))
	require.NoError(t, p.PublishOrderReplayed(context.Background(), &models.OrderReplayedEvent{SessionID: "tab-1", Reference: "offline-a"}))

	assert.Equal(t, []string{"session-tab-1", "session-tab-1"}, w.keys)
}

func TestHandleStatusChanged(t *testing.T) {
	h := NewEventHandler()
	var got *models.OrderStatusChangedEvent
	h.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		got = e
		return nil
	})

	value, err := json.Marshal(models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderStatusChanged},
		SessionID: "tab-1",
		OrderID:   "ORD-5",
		Status:    models.OrderStatusReady,
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: value}))
	require.NotNil(t, got)
	assert.Equal(t, "ORD-5", got.OrderID)
	assert.Equal(t, models.OrderStatusReady, got.Status)
}

func TestHandlePropagatesHandlerError(t *testing.T) {
	h := NewEventHandler()
	h.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		return errors.New("unknown session")
	})

	value := []byte(`{"event_type":"ORDER_STATUS_CHANGED","order_id":"x","status":"ready"}`)
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: value}))
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	h := NewEventHandler()
	assert.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"ORDER_SUBMITTED"}`)}))
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)}))
}

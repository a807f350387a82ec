package ledger

import (
	"context"
	"testing"
	"time"

	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(id string, at time.Time) models.SubmittedOrder {
	return models.SubmittedOrder{
		OrderDraft: models.OrderDraft{
			UserID:         "guest",
			Items:          []models.CartLine{{ProductID: "1", Quantity: 2, Name: "Red Bull", Price: 120, Volume: "250ml"}},
			DeliveryOption: models.DeliveryPickup,
			PaymentMethod:  models.PaymentCash,
			Services:       []models.Service{{ID: "1", Name: "Gift box", Price: 50}},
			TotalAmount:    290,
			Timestamp:      at,
		},
		ID:          id,
		SubmittedAt: at,
		Status:      models.OrderStatusPending,
	}
}

func TestAppendIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	l, err := New(ctx, store.NewMemoryStore())
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, l.Append(ctx, order("a", now)))
	require.NoError(t, l.Append(ctx, order("b", now.Add(time.Second))))

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	l, err := New(ctx, kv)
	require.NoError(t, err)

	at := time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC)
	require.NoError(t, l.Append(ctx, order("a", at)))
	require.NoError(t, l.Append(ctx, order("b", at.Add(time.Minute))))

	reloaded, err := New(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, l.List(), reloaded.List())
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	l, err := New(ctx, store.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, order("a", time.Now())))

	require.NoError(t, l.UpdateStatus(ctx, "a", models.OrderStatusReady))
	got, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusReady, got.Status)

	assert.Equal(t, errs.CodeValidation, errs.CodeOf(l.UpdateStatus(ctx, "a", "shipped")))
	assert.ErrorIs(t, l.UpdateStatus(ctx, "missing", models.OrderStatusCancelled), ErrOrderNotFound)
}

func TestResolveRemoteID(t *testing.T) {
	ctx := context.Background()
	l, err := New(ctx, store.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, order("offline-1", time.Now())))

	require.NoError(t, l.ResolveRemoteID(ctx, "offline-1", "ORD-77"))

	got, ok := l.Get("ORD-77")
	require.True(t, ok)
	assert.Equal(t, "offline-1", got.ID)

	require.NoError(t, l.UpdateStatus(ctx, "ORD-77", models.OrderStatusConfirmed))
	got, _ = l.Get("offline-1")
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
}

func TestCorruptHistoryResets(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, storageKey, []byte("[{broken")))

	l, err := New(ctx, kv)
	require.NoError(t, err)
	assert.Empty(t, l.List())
}

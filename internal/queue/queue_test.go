package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(total int64) models.OrderDraft {
	return models.OrderDraft{
		UserID:         "guest",
		Items:          []models.CartLine{{ProductID: "1", Quantity: 1, Price: total}},
		DeliveryOption: models.DeliveryPickup,
		PaymentMethod:  models.PaymentCash,
		TotalAmount:    total,
	}
}

func newQueue(t *testing.T, kv store.KV, maxLen int) *Queue {
	t.Helper()
	q, err := New(context.Background(), kv, maxLen)
	require.NoError(t, err)
	return q
}

func TestEnqueuePersistsImmediately(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	q := newQueue(t, kv, 0)

	action, err := q.Enqueue(ctx, draft(100), "offline-a")
	require.NoError(t, err)
	assert.Equal(t, models.ActionKindOrder, action.Kind)

	reloaded := newQueue(t, kv, 0)
	require.Len(t, reloaded.Pending(), 1)
	assert.Equal(t, "offline-a", reloaded.Pending()[0].Reference)
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, store.NewMemoryStore(), 2)

	_, err := q.Enqueue(ctx, draft(1), "a")
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, draft(2), "b")
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, draft(3), "c")
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestDrainRemovesOnlyDelivered(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	q := newQueue(t, kv, 0)

	for i, ref := range []string{"a", "b", "c", "d", "e"} {
		_, err := q.Enqueue(ctx, draft(int64(i+1)), ref)
		require.NoError(t, err)
	}

	var sent []int64
	send := func(ctx context.Context, d *models.OrderDraft) (string, error) {
		sent = append(sent, d.TotalAmount)
		if d.TotalAmount%2 == 0 {
			return "", errors.New("HTTP 500")
		}
		return fmt.Sprintf("ORD-%d", d.TotalAmount), nil
	}

	var replayed []string
	q.OnReplayed(func(ctx context.Context, action models.QueuedAction, remoteID string) {
		replayed = append(replayed, action.Reference+"="+remoteID)
	})

	res, err := q.Drain(ctx, send)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Replayed: 3, Failed: 2, Remaining: 2}, res)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, sent)
	assert.Equal(t, []string{"a=ORD-1", "c=ORD-3", "e=ORD-5"}, replayed)

	var refs []string
	for _, a := range newQueue(t, kv, 0).Pending() {
		refs = append(refs, a.Reference)
	}
	assert.Equal(t, []string{"b", "d"}, refs)
}

func TestDrainKeepsActionsEnqueuedDuringPass(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, store.NewMemoryStore(), 0)
	_, err := q.Enqueue(ctx, draft(1), "a")
	require.NoError(t, err)

	send := func(ctx context.Context, d *models.OrderDraft) (string, error) {
		_, err := q.Enqueue(ctx, draft(9), "late")
		require.NoError(t, err)
		return "ORD-1", nil
	}

	res, err := q.Drain(ctx, send)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, "late", q.Pending()[0].Reference)
}

func TestConcurrentDrainsCollapse(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, store.NewMemoryStore(), 0)
	_, err := q.Enqueue(ctx, draft(1), "a")
	require.NoError(t, err)

	var calls atomic.Int32
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	send := func(ctx context.Context, d *models.OrderDraft) (string, error) {
		calls.Add(1)
		entered <- struct{}{}
		<-gate
		return "ORD-1", nil
	}

	var wg sync.WaitGroup
	results := make([]DrainResult, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = q.Drain(ctx, send)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = q.Drain(ctx, send)
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, 0, q.Len())
}

func TestDrainEmptyQueue(t *testing.T) {
	q := newQueue(t, store.NewMemoryStore(), 0)
	res, err := q.Drain(context.Background(), func(ctx context.Context, d *models.OrderDraft) (string, error) {
		t.Fatal("send must not be called")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)
}

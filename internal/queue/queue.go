package queue

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const storageKey = "offline_queue"

// DefaultMaxLength bounds the number of actions waiting for connectivity
const DefaultMaxLength = 50

var ErrQueueFull = errs.New(errs.CodeValidation, "too many orders are waiting for connection")

// SendFunc replays one order and returns the server-issued id
type SendFunc func(ctx context.Context, draft *models.OrderDraft) (string, error)

// ReplayedFunc is called for every action that was delivered during a drain
type ReplayedFunc func(ctx context.Context, action models.QueuedAction, remoteID string)

// DrainResult summarizes one drain pass
type DrainResult struct {
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Queue is the persisted FIFO of offline orders of one session
type Queue struct {
	kv         store.KV
	maxLength  int
	group      singleflight.Group
	onReplayed ReplayedFunc
	logger     *zap.Logger

	mu      sync.Mutex
	actions []models.QueuedAction
}

// New loads the persisted queue
func New(ctx context.Context, kv store.KV, maxLength int) (*Queue, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	actions, _, err := store.LoadJSON[[]models.QueuedAction](ctx, kv, storageKey)
	if err != nil {
		return nil, err
	}
	util.OfflineQueueDepth.Add(float64(len(actions)))

	return &Queue{
		kv:        kv,
		maxLength: maxLength,
		actions:   actions,
		logger:    util.GetLogger(),
	}, nil
}

// OnReplayed registers the delivery callback
func (q *Queue) OnReplayed(fn ReplayedFunc) {
	q.onReplayed = fn
}

// Enqueue appends an order action and persists the queue immediately
func (q *Queue) Enqueue(ctx context.Context, draft models.OrderDraft, reference string) (models.QueuedAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.actions) >= q.maxLength {
		return models.QueuedAction{}, ErrQueueFull
	}

	action := models.QueuedAction{
		ID:         uuid.New().String(),
		Kind:       models.ActionKindOrder,
		Payload:    draft,
		Reference:  reference,
		EnqueuedAt: time.Now().UTC(),
	}
	q.actions = append(q.actions, action)
	if err := q.persist(ctx); err != nil {
		q.actions = q.actions[:len(q.actions)-1]
		return models.QueuedAction{}, err
	}
	util.OfflineQueueDepth.Inc()
	return action, nil
}

// Pending returns a snapshot in enqueue order
func (q *Queue) Pending() []models.QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.QueuedAction{}, q.actions...)
}

// Len returns the number of pending actions
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Drain replays every queued action once, in order. Delivered actions are
// removed; failed ones stay in place for the next drain. Concurrent callers
// share the pass already in flight.
func (q *Queue) Drain(ctx context.Context, send SendFunc) (DrainResult, error) {
	v, err, _ := q.group.Do("drain", func() (interface{}, error) {
		return q.drain(ctx, send)
	})
	if err != nil {
		return DrainResult{}, err
	}
	return v.(DrainResult), nil
}

func (q *Queue) drain(ctx context.Context, send SendFunc) (DrainResult, error) {
	ctx, span := util.StartSpan(ctx, "OfflineQueue.Drain")
	defer span.End()

	snapshot := q.Pending()
	if len(snapshot) == 0 {
		return DrainResult{}, nil
	}

	delivered := make(map[string]bool, len(snapshot))
	var result DrainResult

	for _, action := range snapshot {
		if ctx.Err() != nil {
			break
		}
		draft := action.Payload
		remoteID, err := send(ctx, &draft)
		if err != nil {
			result.Failed++
			util.OfflineQueueReplayedTotal.WithLabelValues("failed").Inc()
			q.logger.Warn("Failed to replay queued order",
				zap.String("action_id", action.ID),
				zap.String("reference", action.Reference),
				zap.Error(err))
			continue
		}

		delivered[action.ID] = true
		result.Replayed++
		util.OfflineQueueReplayedTotal.WithLabelValues("success").Inc()
		q.logger.Info("Queued order replayed",
			zap.String("reference", action.Reference),
			zap.String("order_id", remoteID))

		if q.onReplayed != nil {
			q.onReplayed(ctx, action, remoteID)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.actions[:0:0]
	for _, action := range q.actions {
		if !delivered[action.ID] {
			kept = append(kept, action)
		}
	}
	q.actions = kept
	result.Remaining = len(kept)
	util.OfflineQueueDepth.Sub(float64(result.Replayed))

	if err := q.persist(ctx); err != nil {
		util.RecordError(span, err)
		return result, err
	}
	return result, nil
}

func (q *Queue) persist(ctx context.Context) error {
	return store.SaveJSON(ctx, q.kv, storageKey, q.actions)
}

package submission

import (
	"context"
	"strings"

	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OfflineIDPrefix marks locally issued order ids that are waiting for replay
const OfflineIDPrefix = "offline-"

// OfflinePolicy decides what SubmitOrder does when the endpoint is known unreachable
type OfflinePolicy int

const (
	// OptimisticOfflineAck queues the order and acknowledges it immediately
	// with a synthetic id. Delivery is at-least-once and eventual.
	OptimisticOfflineAck OfflinePolicy = iota
	// RejectWhenOffline fails the submission with a NetworkError
	RejectWhenOffline
)

var ErrOffline = errs.New(errs.CodeNetwork, "no connection to the order service")

// Connectivity reports the last known reachability of the endpoint
type Connectivity interface {
	Online() bool
}

// Sender delivers an order to the remote endpoint
type Sender interface {
	CreateOrder(ctx context.Context, draft *models.OrderDraft) (string, error)
}

// Enqueuer holds orders until connectivity returns
type Enqueuer interface {
	Enqueue(ctx context.Context, draft models.OrderDraft, reference string) (models.QueuedAction, error)
}

// Result is a successful submission. Queued is set when OrderID is a synthetic offline id.
type Result struct {
	OrderID string `json:"orderId"`
	Queued  bool   `json:"queued"`
}

// Coordinator routes an order draft to the network or the offline queue
type Coordinator struct {
	sender       Sender
	queue        Enqueuer
	connectivity Connectivity
	policy       OfflinePolicy
	logger       *zap.Logger
}

// NewCoordinator creates a new submission coordinator
func NewCoordinator(sender Sender, queue Enqueuer, connectivity Connectivity, policy OfflinePolicy) *Coordinator {
	return &Coordinator{
		sender:       sender,
		queue:        queue,
		connectivity: connectivity,
		policy:       policy,
		logger:       util.GetLogger(),
	}
}

// SubmitOrder sends the draft when online. When offline it applies the
// configured policy without touching the network.
func (c *Coordinator) SubmitOrder(ctx context.Context, draft models.OrderDraft) (Result, error) {
	ctx, span := util.StartSpan(ctx, "Coordinator.SubmitOrder")
	defer span.End()

	if !c.connectivity.Online() {
		return c.submitOffline(ctx, draft)
	}

	orderID, err := c.sender.CreateOrder(ctx, &draft)
	if err != nil {
		util.RecordError(span, err)
		util.OrdersSubmissionFailedTotal.WithLabelValues(string(errs.CodeOf(err))).Inc()
		c.logger.Warn("Order submission failed", zap.Error(err))
		return Result{}, err
	}

	util.OrdersSubmittedTotal.WithLabelValues("online").Inc()
	c.logger.Info("Order submitted", zap.String("order_id", orderID))
	return Result{OrderID: orderID}, nil
}

func (c *Coordinator) submitOffline(ctx context.Context, draft models.OrderDraft) (Result, error) {
	if c.policy == RejectWhenOffline {
		util.OrdersSubmissionFailedTotal.WithLabelValues(string(errs.CodeNetwork)).Inc()
		return Result{}, ErrOffline
	}

	orderID := OfflineIDPrefix + uuid.New().String()
	action, err := c.queue.Enqueue(ctx, draft, orderID)
	if err != nil {
		util.OrdersSubmissionFailedTotal.WithLabelValues(string(errs.CodeOf(err))).Inc()
		return Result{}, err
	}

	util.OrdersSubmittedTotal.WithLabelValues("offline").Inc()
	c.logger.Info("Order queued for replay",
		zap.String("order_id", orderID),
		zap.String("action_id", action.ID))
	return Result{OrderID: orderID, Queued: true}, nil
}

// IsOfflineID reports whether id was issued locally by the offline path
func IsOfflineID(id string) bool {
	return strings.HasPrefix(id, OfflineIDPrefix)
}

package service

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/errs"
	"storefront-service/internal/ledger"
	"storefront-service/internal/models"
	"storefront-service/internal/queue"
	"storefront-service/internal/store"
	"storefront-service/internal/submission"
	"storefront-service/internal/subscription"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	userKey        = "user"
	ageVerifiedKey = "age_verified"
	wishlistKey    = "wishlist"
)

// EventSink receives order events. Publishing is best effort.
type EventSink interface {
	PublishOrderSubmitted(ctx context.Context, event *models.OrderSubmittedEvent) error
	PublishOrderReplayed(ctx context.Context, event *models.OrderReplayedEvent) error
}

// Session is the storefront state of one browser tab: catalog, cart and
// checkout, wishlist, order history, offline queue and user profile.
type Session struct {
	id           string
	kv           store.KV
	catalog      *catalog.Client
	checkout     *checkout.Machine
	ledger       *ledger.Ledger
	queue        *queue.Queue
	subscription *subscription.Service
	sender       submission.Sender
	events       EventSink
	now          func() time.Time
	logger       *zap.Logger

	// orderMu keeps a replay from linking or announcing an order before
	// Submit has recorded and announced it.
	orderMu sync.Mutex

	mu          sync.Mutex
	wishlist    *cart.Wishlist
	user        *models.User
	ageVerified bool
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Products syncs the product list and applies the query
func (s *Session) Products(ctx context.Context, q catalog.Query) catalog.Result[models.Product] {
	res := s.catalog.SyncProducts(ctx)
	res.Items = catalog.Filter(res.Items, q)
	s.warnDegraded(models.KindProducts, res.Provenance, res.Err)
	return res
}

// Services syncs the add-on service list
func (s *Session) Services(ctx context.Context) catalog.Result[models.Service] {
	res := s.catalog.SyncServices(ctx)
	s.warnDegraded(models.KindServices, res.Provenance, res.Err)
	return res
}

// LoadDemo switches the catalog to demo data
func (s *Session) LoadDemo(ctx context.Context) error {
	return s.catalog.LoadDemo(ctx)
}

// Checkout returns the cart and checkout flow
func (s *Session) Checkout() *checkout.Machine {
	return s.checkout
}

// AddItem adds a product from the current catalog, syncing it first if nothing is loaded
func (s *Session) AddItem(ctx context.Context, id models.ID, qty int) error {
	s.ensureProducts(ctx)
	return s.checkout.AddItem(ctx, id, qty)
}

// SetServices selects add-on services, syncing the list first if nothing is loaded
func (s *Session) SetServices(ctx context.Context, ids []models.ID) error {
	if len(s.catalog.Services()) == 0 {
		s.Services(ctx)
	}
	return s.checkout.SetServices(ctx, ids)
}

// ToggleWishlist saves or unsaves a product. Returns true if it is now saved.
func (s *Session) ToggleWishlist(ctx context.Context, id models.ID) (bool, error) {
	s.ensureProducts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wishlist.Contains(id) {
		s.wishlist.Remove(id)
		return false, store.SaveJSON(ctx, s.kv, wishlistKey, s.wishlist.Entries())
	}

	p, ok := s.catalog.Product(id)
	if !ok {
		return false, errs.Newf(errs.CodeNotFound, "product %s not found", id)
	}
	saved := s.wishlist.Toggle(p)
	return saved, store.SaveJSON(ctx, s.kv, wishlistKey, s.wishlist.Entries())
}

// Wishlist returns the saved products
func (s *Session) Wishlist() []models.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wishlist.Entries()
}

// Submit places the reviewed order. Offline submissions are acknowledged
// with a synthetic id and replayed on the next connectivity regain.
func (s *Session) Submit(ctx context.Context) (models.SubmittedOrder, error) {
	ctx, span := util.StartSpan(ctx, "Session.Submit")
	defer span.End()

	user := s.User()
	s.orderMu.Lock()
	defer s.orderMu.Unlock()

	order, err := s.checkout.Submit(ctx, user)
	if err != nil {
		return models.SubmittedOrder{}, err
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.Bool("queued", submission.IsOfflineID(order.ID)),
		zap.Int64("total", order.TotalAmount))
	s.publishSubmitted(ctx, order)
	return order, nil
}

// Orders returns the order history, newest first
func (s *Session) Orders() []models.SubmittedOrder {
	return s.ledger.List()
}

// RepeatOrder refills the cart from a past order. Products that left the catalog are skipped and returned.
func (s *Session) RepeatOrder(ctx context.Context, orderID string) ([]models.ID, error) {
	order, ok := s.ledger.Get(orderID)
	if !ok {
		return nil, ledger.ErrOrderNotFound
	}
	s.ensureProducts(ctx)
	return s.checkout.Refill(ctx, order.Items)
}

// ApplyStatus stores a status reported by the order-tracking side
func (s *Session) ApplyStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	return s.ledger.UpdateStatus(ctx, orderID, status)
}

// PendingActions returns the offline queue in enqueue order
func (s *Session) PendingActions() []models.QueuedAction {
	return s.queue.Pending()
}

// Drain replays the offline queue once
func (s *Session) Drain(ctx context.Context) (queue.DrainResult, error) {
	return s.queue.Drain(ctx, s.sender.CreateOrder)
}

// SetUser stores the authenticated-user snapshot
func (s *Session) SetUser(ctx context.Context, user models.User) error {
	if user.ID == 0 {
		return errs.New(errs.CodeValidation, "user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = &user
	return store.SaveJSON(ctx, s.kv, userKey, user)
}

// ClearUser logs the user out
func (s *Session) ClearUser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	if err := s.kv.Delete(ctx, userKey); err != nil {
		return errs.Wrap(errs.CodePersistence, err, "failed to delete user")
	}
	return nil
}

// User returns a copy of the user snapshot, or nil for a guest
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// VerifyAge records the age confirmation
func (s *Session) VerifyAge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ageVerified = true
	return store.SaveJSON(ctx, s.kv, ageVerifiedKey, true)
}

// AgeVerified reports whether the age confirmation was given
func (s *Session) AgeVerified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ageVerified
}

// ActivateSubscription starts a club membership for the logged-in user
func (s *Session) ActivateSubscription(ctx context.Context) (subscription.Status, error) {
	return s.subscription.Activate(ctx, s.User(), s.now())
}

// Subscription returns the club membership status
func (s *Session) Subscription() subscription.Status {
	return s.subscription.Status(s.now())
}

func (s *Session) ensureProducts(ctx context.Context) {
	if len(s.catalog.Products()) == 0 {
		s.Products(ctx, catalog.Query{})
	}
}

func (s *Session) onReplayed(ctx context.Context, action models.QueuedAction, remoteID string) {
	s.orderMu.Lock()
	defer s.orderMu.Unlock()

	if err := s.ledger.ResolveRemoteID(ctx, action.Reference, remoteID); err != nil {
		s.logger.Warn("Failed to link replayed order",
			zap.String("reference", action.Reference),
			zap.Error(err))
	}

	if s.events == nil {
		return
	}
	event := &models.OrderReplayedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderReplayed,
			Timestamp: s.now().UTC(),
		},
		SessionID:     s.id,
		Reference:     action.Reference,
		RemoteOrderID: remoteID,
	}
	if err := s.events.PublishOrderReplayed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderReplayed event", zap.Error(err))
	}
}

func (s *Session) publishSubmitted(ctx context.Context, order models.SubmittedOrder) {
	if s.events == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, l := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.Price,
		})
	}

	event := &models.OrderSubmittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderSubmitted,
			Timestamp: s.now().UTC(),
		},
		SessionID:     s.id,
		OrderID:       order.ID,
		RemoteOrderID: order.RemoteOrderID,
		Queued:        submission.IsOfflineID(order.ID),
		TotalAmount:   order.TotalAmount,
		Items:         items,
	}
	if err := s.events.PublishOrderSubmitted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderSubmitted event", zap.Error(err))
	}
}

func (s *Session) warnDegraded(kind models.EntityKind, provenance models.Provenance, err error) {
	if provenance == models.ProvenanceFresh {
		return
	}
	s.logger.Warn("Serving degraded catalog",
		zap.String("kind", string(kind)),
		zap.String("provenance", string(provenance)),
		zap.Error(err))
}

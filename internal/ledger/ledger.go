package ledger

import (
	"context"
	"sync"

	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
)

const storageKey = "orders"

var ErrOrderNotFound = errs.New(errs.CodeNotFound, "order not found")

// Ledger is the newest-first order history of one session. It stores
// whatever status it is given and never advances a status on its own.
type Ledger struct {
	kv store.KV

	mu     sync.RWMutex
	orders []models.SubmittedOrder
}

// New loads the ledger persisted in kv. Corrupt history resets to empty.
func New(ctx context.Context, kv store.KV) (*Ledger, error) {
	orders, _, err := store.LoadJSON[[]models.SubmittedOrder](ctx, kv, storageKey)
	if err != nil {
		return nil, err
	}
	return &Ledger{kv: kv, orders: orders}, nil
}

// Append prepends the order and persists the ledger
func (l *Ledger) Append(ctx context.Context, order models.SubmittedOrder) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.orders = append([]models.SubmittedOrder{order}, l.orders...)
	return l.persist(ctx)
}

// List returns a snapshot of the history, newest first
func (l *Ledger) List() []models.SubmittedOrder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.SubmittedOrder{}, l.orders...)
}

// Get finds an order by local id or server-issued id
func (l *Ledger) Get(id string) (models.SubmittedOrder, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.index(id); i >= 0 {
		return l.orders[i], true
	}
	return models.SubmittedOrder{}, false
}

// UpdateStatus stores status on the order matching id (local or remote)
func (l *Ledger) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	if !status.Valid() {
		return errs.Newf(errs.CodeValidation, "unknown order status %q", status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return ErrOrderNotFound
	}
	l.orders[i].Status = status
	return l.persist(ctx)
}

// ResolveRemoteID records the server-issued id for an order that was acknowledged offline
func (l *Ledger) ResolveRemoteID(ctx context.Context, localID, remoteID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.orders {
		if l.orders[i].ID == localID {
			l.orders[i].RemoteOrderID = remoteID
			return l.persist(ctx)
		}
	}
	return ErrOrderNotFound
}

func (l *Ledger) index(id string) int {
	for i, o := range l.orders {
		if o.ID == id || (o.RemoteOrderID != "" && o.RemoteOrderID == id) {
			return i
		}
	}
	return -1
}

func (l *Ledger) persist(ctx context.Context) error {
	return store.SaveJSON(ctx, l.kv, storageKey, l.orders)
}

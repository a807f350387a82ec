package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"storefront-service/internal/cache"
	"storefront-service/internal/catalog"
	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/errs"
	"storefront-service/internal/ledger"
	"storefront-service/internal/models"
	"storefront-service/internal/queue"
	"storefront-service/internal/store"
	"storefront-service/internal/submission"
	"storefront-service/internal/subscription"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const (
	sessionPrefix = "session:"
	queueKey      = "offline_queue"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

var ErrInvalidSessionID = errs.New(errs.CodeValidation, "invalid session id")

// Backend is the remote endpoint as seen by a session
type Backend interface {
	catalog.Fetcher
	submission.Sender
}

// Options tune every session created by a Manager
type Options struct {
	ProductsTTL      time.Duration
	ServicesTTL      time.Duration
	MaxLineQuantity  int
	MaxOfflineQueue  int
	ClubMonthlyPrice int64
	OfflinePolicy    submission.OfflinePolicy
	Now              func() time.Time
}

// Manager owns the sessions of this process and replays their offline
// queues when connectivity returns
type Manager struct {
	kv      store.KV
	backend Backend
	monitor *submission.Monitor
	events  EventSink
	opts    Options
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	draining sync.WaitGroup
}

// NewManager creates a new session manager. events may be nil.
func NewManager(kv store.KV, backend Backend, monitor *submission.Monitor, events EventSink, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{
		kv:       kv,
		backend:  backend,
		monitor:  monitor,
		events:   events,
		opts:     opts,
		logger:   util.GetLogger(),
		sessions: make(map[string]*Session),
	}

	monitor.OnRegained(func() {
		m.draining.Add(1)
		go func() {
			defer m.draining.Done()
			m.DrainAll(context.Background())
		}()
	})
	return m
}

// Monitor returns the connectivity monitor shared by all sessions
func (m *Manager) Monitor() *submission.Monitor {
	return m.monitor
}

// Get returns the session with id, loading its persisted state on first use
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if !sessionIDPattern.MatchString(id) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	return s, nil
}

// Preload loads every persisted session that has an offline queue so a
// connectivity regain after a restart replays them
func (m *Manager) Preload(ctx context.Context) (int, error) {
	lister, ok := m.kv.(store.Lister)
	if !ok {
		return 0, nil
	}

	keys, err := lister.Keys(ctx, sessionPrefix)
	if err != nil {
		return 0, errs.Wrap(errs.CodePersistence, err, "failed to list sessions")
	}

	loaded := 0
	for _, key := range keys {
		id, ok := sessionIDFromQueueKey(key)
		if !ok {
			continue
		}
		if _, err := m.Get(ctx, id); err != nil {
			m.logger.Warn("Failed to preload session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		loaded++
	}
	return loaded, nil
}

// DrainAll replays the offline queue of every loaded session
func (m *Manager) DrainAll(ctx context.Context) queue.DrainResult {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var total queue.DrainResult
	for _, s := range sessions {
		if s.queue.Len() == 0 {
			continue
		}
		res, err := s.Drain(ctx)
		if err != nil {
			s.logger.Warn("Offline queue drain failed", zap.Error(err))
		}
		total.Replayed += res.Replayed
		total.Failed += res.Failed
		total.Remaining += res.Remaining
	}

	if total.Replayed > 0 || total.Failed > 0 {
		m.logger.Info("Offline queues drained",
			zap.Int("replayed", total.Replayed),
			zap.Int("failed", total.Failed),
			zap.Int("queue_length", total.Remaining))
	}
	return total
}

// Wait blocks until drains started by connectivity changes have finished
func (m *Manager) Wait() {
	m.draining.Wait()
}

// ApplyStatus routes an order-tracking update to its session
func (m *Manager) ApplyStatus(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	s, err := m.Get(ctx, event.SessionID)
	if err != nil {
		return err
	}
	if err := s.ApplyStatus(ctx, event.OrderID, event.Status); err != nil {
		return err
	}
	s.logger.Info("Order status updated",
		zap.String("order_id", event.OrderID),
		zap.String("status", string(event.Status)))
	return nil
}

func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	kv := store.Namespace(m.kv, sessionPrefix+id)
	logger := util.SessionLogger(id)

	catalogClient := catalog.NewClient(m.backend, cache.NewStore(kv, cache.WithClock(m.opts.Now)), m.opts.ProductsTTL, m.opts.ServicesTTL)

	history, err := ledger.New(ctx, kv)
	if err != nil {
		return nil, err
	}
	offline, err := queue.New(ctx, kv, m.opts.MaxOfflineQueue)
	if err != nil {
		return nil, err
	}
	club, err := subscription.New(ctx, kv, m.opts.ClubMonthlyPrice)
	if err != nil {
		return nil, err
	}

	coordinator := submission.NewCoordinator(m.backend, offline, m.monitor, m.opts.OfflinePolicy)
	machine, err := checkout.NewMachine(ctx, kv, checkout.Deps{
		Products:    catalogClient,
		Services:    catalogClient,
		Submitter:   coordinator,
		Recorder:    history,
		MaxQuantity: m.opts.MaxLineQuantity,
		Now:         m.opts.Now,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	entries, _, err := store.LoadJSON[[]models.WishlistEntry](ctx, kv, wishlistKey)
	if err != nil {
		return nil, err
	}
	user, hasUser, err := store.LoadJSON[models.User](ctx, kv, userKey)
	if err != nil {
		return nil, err
	}
	verified, _, err := store.LoadJSON[bool](ctx, kv, ageVerifiedKey)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:           id,
		kv:           kv,
		catalog:      catalogClient,
		checkout:     machine,
		ledger:       history,
		queue:        offline,
		subscription: club,
		sender:       m.backend,
		events:       m.events,
		now:          m.opts.Now,
		logger:       logger,
		wishlist:     cart.NewWishlist(entries),
		ageVerified:  verified,
	}
	if hasUser {
		s.user = &user
	}
	offline.OnReplayed(s.onReplayed)

	logger.Debug("Session loaded", zap.Int("queue_length", offline.Len()))
	return s, nil
}

func sessionIDFromQueueKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, sessionPrefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ":"+queueKey)
	if !ok || !sessionIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

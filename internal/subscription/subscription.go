package subscription

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
)

const storageKey = "subscription"

// DefaultMonthlyPrice is the club price shown to the user
const DefaultMonthlyPrice int64 = 350

var ErrLoginRequired = errs.New(errs.CodeValidation, "log in to join the club")

// Status is the club record as seen at a point in time
type Status struct {
	Active       bool       `json:"active"`
	ExpiresOn    *time.Time `json:"expiresOn,omitempty"`
	MonthlyPrice int64      `json:"monthlyPrice"`
}

// Service manages the loyalty club record of one session. Payment happens outside.
type Service struct {
	kv    store.KV
	price int64

	mu     sync.RWMutex
	record models.Subscription
}

// New loads the persisted club record
func New(ctx context.Context, kv store.KV, monthlyPrice int64) (*Service, error) {
	if monthlyPrice <= 0 {
		monthlyPrice = DefaultMonthlyPrice
	}
	record, _, err := store.LoadJSON[models.Subscription](ctx, kv, storageKey)
	if err != nil {
		return nil, err
	}
	return &Service{kv: kv, price: monthlyPrice, record: record}, nil
}

// Activate starts a one-month membership from now
func (s *Service) Activate(ctx context.Context, user *models.User, now time.Time) (Status, error) {
	if user == nil {
		return Status{}, ErrLoginRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = models.Subscription{Active: true, ExpiresOn: now.AddDate(0, 1, 0)}
	if err := store.SaveJSON(ctx, s.kv, storageKey, s.record); err != nil {
		return Status{}, err
	}
	return s.status(now), nil
}

// Status reports the membership as of now
func (s *Service) Status(now time.Time) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status(now)
}

func (s *Service) status(now time.Time) Status {
	st := Status{MonthlyPrice: s.price}
	if s.record.Active && s.record.ExpiresOn.After(now) {
		expires := s.record.ExpiresOn
		st.Active = true
		st.ExpiresOn = &expires
	}
	return st
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront-service/internal/errs"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// ErrNotFound is returned by KV.Get for a missing key
var ErrNotFound = errors.New("key not found")

// KV is the persistence surface for all session state
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Lister is implemented by backends that can enumerate keys by prefix
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type namespaced struct {
	kv     KV
	prefix string
}

// Namespace scopes every key of kv under ns
func Namespace(kv KV, ns string) KV {
	return &namespaced{kv: kv, prefix: ns + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.prefix+key)
}

// LoadJSON reads and decodes key. A missing key returns found=false.
// A value that no longer decodes is deleted and treated as missing, so
// corrupt state falls back to the caller's default instead of failing.
func LoadJSON[T any](ctx context.Context, kv KV, key string) (value T, found bool, err error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return value, false, nil
	}
	if err != nil {
		return value, false, errs.Wrap(errs.CodePersistence, err, fmt.Sprintf("failed to read %s", key))
	}

	var decoded T
	if err := json.Unmarshal(data, &decoded); err != nil {
		util.GetLogger().Warn("Resetting corrupt persisted value",
			zap.String("key", key),
			zap.Error(err))
		util.PersistenceResetsTotal.WithLabelValues(metricKey(key)).Inc()
		if delErr := kv.Delete(ctx, key); delErr != nil {
			util.GetLogger().Warn("Failed to delete corrupt value", zap.String("key", key), zap.Error(delErr))
		}
		return value, false, nil
	}

	return decoded, true, nil
}

// SaveJSON encodes v and writes it under key
func SaveJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, data); err != nil {
		return errs.Wrap(errs.CodePersistence, err, fmt.Sprintf("failed to write %s", key))
	}
	return nil
}

func metricKey(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return key
}

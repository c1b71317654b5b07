// Package state persists the small operational flags the runtime depends on,
// such as the maintenance switch. Values are stored as JSON.
package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	configpkg "github.com/drblury/botcore/internal/runtime/config"
	errspkg "github.com/drblury/botcore/internal/runtime/errors"
)

// Keys seeded by the runtime on every startup.
const (
	KeyMaintenance     = "maintenance"
	KeyLastMaintenance = "lastMaintenance"
	KeyLastStartup     = "lastStartup"
)

// Store is a key/value store for JSON-serialisable operational state.
//
// Get never fails for a missing key; it reports found=false instead. Set
// overwrites unconditionally and Add only writes when the key is absent. Both
// are durable once they return. Backend failures come back as
// *errors.StorageError and are never retried here.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value any) error
	Add(ctx context.Context, key string, value any) error
	Close() error
}

// GetAs reads key and decodes its JSON value into T.
func GetAs[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return out, found, err
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &out); err != nil {
		return out, true, errspkg.NewStorageError("decode", key, err)
	}
	return out, true, nil
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg configpkg.StateConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "sqlite":
		return OpenSQLite(cfg.File)
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnknownStateBackend, cfg.Backend)
	}
}

func encodeValue(op, key string, value any) ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(value)
	if err != nil {
		return nil, errspkg.NewStorageError(op, key, fmt.Errorf("encode value: %w", err))
	}
	return data, nil
}

package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
)

// Config carries everything an adapter needs to open a Handle.
type Config struct {
	// Type selects the registered adapter, e.g. "postgres" or "sqlserver".
	Type string

	// DSN is the driver-native connection string.
	DSN string

	// Schema restricts discovery to one namespace. Empty selects the
	// adapter default ("public" for postgres, "dbo" for sqlserver).
	Schema string

	// MaxConns caps the connection pool. Zero keeps the driver default.
	MaxConns int32

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration

	// SampleLimit caps rows fetched by sampling queries when the caller
	// does not pass an explicit limit.
	SampleLimit int
}

// Factory creates a Handle from a Config.
type Factory func(ctx context.Context, cfg Config, logger *zap.Logger) (Handle, error)

// Registration describes one adapter.
type Registration struct {
	Type        string
	DisplayName string
	Factory     Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each adapter's init function.
// Safe for concurrent init calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Type] = reg
}

// Open creates a Handle for cfg.Type via the registered factory.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Handle, error) {
	registryMu.RLock()
	reg, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", apperrors.ErrUnsupportedDatabase, cfg.Type, SupportedTypes())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return reg.Factory(ctx, cfg, logger)
}

// SupportedTypes returns the registered adapter types, sorted.
func SupportedTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Package engine runs the contribution and payout cycle of Ajo groups:
// charging members who are due, detecting complete cycles, paying the pool
// to the next member in rotation and settling gateway webhooks.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmynk/ajo/internal/gateway"
	"github.com/mmynk/ajo/internal/lock"
	"github.com/mmynk/ajo/internal/metrics"
	"github.com/mmynk/ajo/internal/storage"
)

// Gateway is the subset of the payment gateway the engine calls.
type Gateway interface {
	ChargeAuthorization(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
	Transfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error)
}

// Config holds engine tuning.
type Config struct {
	// GatewayTimeout bounds every gateway call. A call that runs out is a
	// per-entity error and the run moves on.
	GatewayTimeout time.Duration

	// ChargeLockTTL is how long a membership's scheduled charge stays
	// reserved. It must outlast a run and be shorter than the shortest cycle.
	ChargeLockTTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		GatewayTimeout: 30 * time.Second,
		ChargeLockTTL:  15 * time.Minute,
	}
}

// Engine processes contributions and payouts. It holds no per-run state and
// is safe for concurrent use; overlapping runs are serialized per entity by
// the locker and the store's payout reservation.
type Engine struct {
	store    storage.Store
	gateway  Gateway
	locker   lock.Locker
	metrics  *metrics.Recorder
	resolver *InstrumentResolver
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Engine. A nil locker falls back to an in-memory one and a
// nil logger to slog.Default.
func New(cfg Config, store storage.Store, gw Gateway, locker lock.Locker, rec *metrics.Recorder, logger *slog.Logger) *Engine {
	defaults := DefaultConfig()
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaults.GatewayTimeout
	}
	if cfg.ChargeLockTTL <= 0 {
		cfg.ChargeLockTTL = defaults.ChargeLockTTL
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		gateway:  gw,
		locker:   locker,
		metrics:  rec,
		resolver: NewInstrumentResolver(store),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOptions scopes a run.
type RunOptions struct {
	// GroupID limits the run to one group when set.
	GroupID string
}

func (e *Engine) charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()
	defer e.metrics.ObserveGateway("charge", time.Now())
	return e.gateway.ChargeAuthorization(ctx, req)
}

func (e *Engine) transfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()
	defer e.metrics.ObserveGateway("transfer", time.Now())
	return e.gateway.Transfer(ctx, req)
}

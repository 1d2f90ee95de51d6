package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"thoughtweb/application/ports"
	pkgerrors "thoughtweb/pkg/errors"
)

var _ ports.SnapshotStore = (*ResilientStore)(nil)

// StoreObserver receives one call per store operation, retries included.
type StoreObserver interface {
	StoreOperation(op string, d time.Duration, err error)
}

// ResilientConfig tunes retries and the circuit breaker.
type ResilientConfig struct {
	Name             string
	MaxRetries       uint64
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	AttemptTimeout   time.Duration
	BreakerRequests  uint32
	BreakerInterval  time.Duration
	BreakerTimeout   time.Duration
	FailureThreshold uint32
}

// DefaultResilientConfig returns conservative defaults.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Name:             "snapshot-store",
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		AttemptTimeout:   10 * time.Second,
		BreakerRequests:  3,
		BreakerInterval:  10 * time.Second,
		BreakerTimeout:   30 * time.Second,
		FailureThreshold: 5,
	}
}

// ResilientStore retries transient failures with exponential backoff and
// stops calling a failing backend through a circuit breaker. Missing keys,
// validation failures and cancellations are returned at once and do not
// count against the breaker.
type ResilientStore struct {
	next     ports.SnapshotStore
	config   ResilientConfig
	breaker  *gobreaker.CircuitBreaker
	observer StoreObserver
	logger   *zap.Logger
}

// NewResilientStore wraps next. observer may be nil.
func NewResilientStore(next ports.SnapshotStore, cfg ResilientConfig, observer StoreObserver, logger *zap.Logger) *ResilientStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultResilientConfig().FailureThreshold
	}

	s := &ResilientStore{
		next:     next,
		config:   cfg,
		observer: observer,
		logger:   logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.BreakerRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isBackendFailure(err)
		},
	})
	return s
}

// Save stores data under key.
func (s *ResilientStore) Save(ctx context.Context, key string, data []byte) error {
	return s.do(ctx, "save", key, func(ctx context.Context) error {
		return s.next.Save(ctx, key, data)
	})
}

// Load reads the snapshot under key.
func (s *ResilientStore) Load(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.do(ctx, "load", key, func(ctx context.Context) error {
		data, err := s.next.Load(ctx, key)
		out = data
		return err
	})
	return out, err
}

// State reports the breaker state: "closed", "half-open" or "open".
func (s *ResilientStore) State() string {
	return s.breaker.State().String()
}

func (s *ResilientStore) do(ctx context.Context, op, key string, fn func(context.Context) error) error {
	start := time.Now()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.config.InitialDelay
	eb.MaxInterval = s.config.MaxDelay
	eb.MaxElapsedTime = 0
	eb.RandomizationFactor = 0.2
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, s.config.MaxRetries), ctx)

	attempt := func() error {
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, s.call(ctx, fn)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(pkgerrors.NewUnavailableError(s.config.Name).WithCause(err))
		case !isBackendFailure(err):
			return backoff.Permanent(err)
		default:
			return err
		}
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Snapshot store call failed, retrying",
			zap.String("operation", op),
			zap.String("key", key),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(attempt, policy, notify)
	if s.observer != nil {
		s.observer.StoreOperation(op, time.Since(start), err)
	}
	if err != nil && ctx.Err() != nil && !pkgerrors.IsCanceled(err) {
		return pkgerrors.NewCanceledError(op+" snapshot", ctx.Err())
	}
	return err
}

func (s *ResilientStore) call(ctx context.Context, fn func(context.Context) error) error {
	if s.config.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, s.config.AttemptTimeout)
	defer cancel()
	return fn(actx)
}

// isBackendFailure separates storage faults from answers the backend gave
// correctly, such as a missing key.
func isBackendFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch {
	case pkgerrors.IsNotFound(err), pkgerrors.IsValidation(err), pkgerrors.IsCanceled(err):
		return false
	}
	return true
}

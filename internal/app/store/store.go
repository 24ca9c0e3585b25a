// Package store implements the outlook data store operations on top of the
// repositories. Every operation runs under its own timeout, writes are atomic
// per call, and all failures are reported as *apperr.Error values.
package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"outlook_service/internal/app/apperr"
	"outlook_service/internal/app/logger"
	"outlook_service/internal/app/metrics"
	"outlook_service/internal/app/repository"
)

const DefaultOpTimeout = 5 * time.Second

type Store struct {
	db      *gorm.DB
	repos   repository.Repos
	log     *logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

type Option func(*Store)

// WithTimeout bounds each store operation.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func New(db *gorm.DB, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		db:      db,
		repos:   repository.New(db),
		log:     log.With("service", "OutlookStore"),
		timeout: DefaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run applies the operation timeout, classifies the error and records the outcome.
func (s *Store) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw := fn(ctx)
	if raw != nil && ctx.Err() != nil && apperr.KindOf(raw) == "" {
		// drivers report an expired deadline in their own words
		raw = apperr.Wrap(apperr.Transient, op, raw)
	}
	err := apperr.FromDB(op, raw)
	s.metrics.ObserveStore(op, apperr.KindOf(err), err != nil, time.Since(start))

	if err != nil {
		kind := apperr.KindOf(err)
		switch kind {
		case apperr.Transient, "":
			s.log.Warn("store operation failed", "op", op, "kind", kind, "error", err)
		default:
			s.log.Debug("store operation rejected", "op", op, "kind", kind, "error", err)
		}
	}
	return err
}

// tx runs fn in a transaction bound to ctx.
func (s *Store) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

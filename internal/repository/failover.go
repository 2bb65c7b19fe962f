package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"contentops/internal/domain"
	"contentops/internal/metrics"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverTaskTracker writes to primary until it fails, then serves from
// fallback and retries primary once per recoveryInterval. Writes made while
// primary is down are mirrored back on recovery.
type FailoverTaskTracker struct {
	primary  domain.TaskTracker
	fallback domain.TaskTracker
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverTaskTracker(primary, fallback domain.TaskTracker, logger *zerolog.Logger) *FailoverTaskTracker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverTaskTracker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverTaskTracker) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary task tracker failed, falling back")
	metrics.IncTrackerFailover()
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}

// tryRecover reports whether primary is usable again. On recovery the
// fallback value is copied over so nothing set during the outage is lost.
func (r *FailoverTaskTracker) tryRecover(ctx context.Context) bool {
	r.mu.Lock()
	due := r.now().Sub(r.lastCheck) > recoveryInterval
	if due {
		r.lastCheck = r.now()
	}
	r.mu.Unlock()
	if !due {
		return false
	}

	id, err := r.fallback.LastTaskID(ctx)
	if err != nil {
		return false
	}
	if id == "" {
		err = r.primary.ClearLastTaskID(ctx)
	} else {
		err = r.primary.SetLastTaskID(ctx, id)
	}
	if err != nil {
		return false
	}

	r.isDown.Store(false)
	r.logger.Info().Msg("Primary task tracker recovered")
	return true
}

func (r *FailoverTaskTracker) usePrimary(ctx context.Context) bool {
	if !r.isDown.Load() {
		return true
	}
	return r.tryRecover(ctx)
}

func (r *FailoverTaskTracker) LastTaskID(ctx context.Context) (string, error) {
	if r.usePrimary(ctx) {
		id, err := r.primary.LastTaskID(ctx)
		if err == nil {
			return id, nil
		}
		r.markDown(err)
	}
	return r.fallback.LastTaskID(ctx)
}

func (r *FailoverTaskTracker) SetLastTaskID(ctx context.Context, id string) error {
	// fallback always mirrors the value so a later outage keeps it
	_ = r.fallback.SetLastTaskID(ctx, id)
	if r.usePrimary(ctx) {
		err := r.primary.SetLastTaskID(ctx, id)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverTaskTracker) ClearLastTaskID(ctx context.Context) error {
	_ = r.fallback.ClearLastTaskID(ctx)
	if r.usePrimary(ctx) {
		err := r.primary.ClearLastTaskID(ctx)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return nil
}

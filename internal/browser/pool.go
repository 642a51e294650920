package browser

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pool hands out exclusive access to a surface for the duration of one job
type Pool interface {
	Acquire(ctx context.Context) (*Lease, error)
	Close() error
}

// Lease is exclusive use of one surface. Release must be called exactly once.
type Lease struct {
	surface Surface
	once    sync.Once
	release func()
}

// Surface returns the leased surface
func (l *Lease) Surface() Surface {
	return l.surface
}

// Release returns the surface to its pool. Extra calls are ignored.
func (l *Lease) Release() {
	l.once.Do(l.release)
}

// SharedPool serializes jobs against a single long-lived surface
type SharedPool struct {
	surface Surface
	sem     *semaphore.Weighted
	logger  *zap.Logger

	// started is only touched while holding sem
	started bool
}

// NewSharedPool wraps one surface. The surface is started lazily on first Acquire.
func NewSharedPool(surface Surface, logger *zap.Logger) *SharedPool {
	return &SharedPool{
		surface: surface,
		sem:     semaphore.NewWeighted(1),
		logger:  logger.Named("pool.shared"),
	}
}

// Acquire blocks until no other job holds the surface.
// A failed start is retried by the next Acquire.
func (p *SharedPool) Acquire(ctx context.Context) (*Lease, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if !p.started {
		if err := p.surface.Start(ctx); err != nil {
			p.sem.Release(1)
			return nil, fmt.Errorf("start shared surface: %w", err)
		}
		p.started = true
	}
	p.logger.Debug("Surface leased")
	return &Lease{
		surface: p.surface,
		release: func() {
			p.logger.Debug("Surface released")
			p.sem.Release(1)
		},
	}, nil
}

// Close shuts the shared surface down
func (p *SharedPool) Close() error {
	return p.surface.Close()
}

// Factory creates a new unstarted surface
type Factory func() (Surface, error)

// LaunchPool gives every job its own freshly launched surface, bounded by max concurrent browsers
type LaunchPool struct {
	factory Factory
	sem     *semaphore.Weighted
	logger  *zap.Logger
}

// NewLaunchPool creates a pool running at most max browsers at once
func NewLaunchPool(factory Factory, max int, logger *zap.Logger) *LaunchPool {
	if max <= 0 {
		max = 1
	}
	return &LaunchPool{
		factory: factory,
		sem:     semaphore.NewWeighted(int64(max)),
		logger:  logger.Named("pool.launch"),
	}
}

// Acquire launches a new surface once a slot is free. Release closes it.
func (p *LaunchPool) Acquire(ctx context.Context) (*Lease, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	surface, err := p.factory()
	if err != nil {
		p.sem.Release(1)
		return nil, fmt.Errorf("create surface: %w", err)
	}
	if err := surface.Start(ctx); err != nil {
		_ = surface.Close()
		p.sem.Release(1)
		return nil, fmt.Errorf("start surface: %w", err)
	}
	return &Lease{
		surface: surface,
		release: func() {
			if err := surface.Close(); err != nil {
				p.logger.Warn("Failed to close surface", zap.Error(err))
			}
			p.sem.Release(1)
		},
	}, nil
}

// Close is a no-op; leased surfaces are closed on release
func (p *LaunchPool) Close() error {
	return nil
}

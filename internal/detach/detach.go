// Package detach runs fire-and-forget work that must outlive the request that
// started it. Failures are only logged; callers never wait on a task.
package detach

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Group struct {
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func New(timeout time.Duration, logger *zap.Logger) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Group{
		logger:  logger,
		timeout: timeout,
	}
}

// Go starts fn in the background. The task context keeps the values of parent
// but not its cancellation, so a client abort does not cut the task short.
func (g *Group) Go(parent context.Context, name string, fn func(ctx context.Context) error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), g.timeout)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("Detached task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()

		if err := fn(ctx); err != nil {
			g.logger.Warn("Detached task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every started task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// WaitContext is Wait bounded by ctx, for graceful shutdown.
func (g *Group) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package task manages the lifecycle of the background goroutines the client owns: the reconnect
// ladder loop and any other interval-driven work. It is a trimmed adaptation of the protocol
// library's task manager, sized down to the goroutine kinds this client needs — the reader
// goroutine lives in package transport and manages its own lifecycle directly.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/icc/logger"
)

// Func is a unit of background work. Returning true continues the loop; false stops it.
type Func func() bool

// Manager starts, stops, and waits for a set of named goroutines, all of which observe the same
// cancellation context.
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger

	mu      sync.RWMutex // protects ctx/cancel
	wg      sync.WaitGroup
	count   atomic.Int32
	tickers sync.Map // map[string]*time.Ticker
}

// New creates a Manager whose goroutines are children of ctx.
func New(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

func (mgr *Manager) getContext() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return mgr.ctx
}

// Start launches a goroutine named name that runs fn in a loop until fn returns false or the
// manager is stopped.
func (mgr *Manager) Start(name string, fn Func) error {
	ctx := mgr.getContext()
	select {
	case <-ctx.Done():
		return fmt.Errorf("task: manager already stopped, cannot start %s", name)
	default:
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)
	go func() {
		defer mgr.wg.Done()
		defer mgr.count.Add(-1)
		defer mgr.recoverPanic(name)

		for {
			select {
			case <-mgr.getContext().Done():
				return
			default:
				if !fn() {
					return
				}
			}
		}
	}()

	return nil
}

// StartInterval launches a goroutine named name that invokes fn every interval until fn returns
// false or the manager is stopped. If runNow is true, fn is invoked once immediately, synchronously,
// before the goroutine starts. The returned ticker can be stopped early with StopInterval.
func (mgr *Manager) StartInterval(name string, fn Func, interval time.Duration, runNow bool) (*time.Ticker, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("task: invalid interval for %s: %v", name, interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return nil, fmt.Errorf("task: interval task %s already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.Delete(name)
	}

	if runNow && !mgr.callWithRecover(name, fn) {
		cleanup()
		return ticker, nil
	}

	ctx := mgr.getContext()
	select {
	case <-ctx.Done():
		cleanup()
		return nil, fmt.Errorf("task: manager already stopped, cannot start %s", name)
	default:
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)
	go func() {
		defer mgr.wg.Done()
		defer mgr.count.Add(-1)
		defer cleanup()

		for {
			select {
			case <-mgr.getContext().Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, fn) {
					return
				}
			}
		}
	}()

	return ticker, nil
}

// StopInterval stops and removes the named interval task, if present.
func (mgr *Manager) StopInterval(name string) {
	if val, ok := mgr.tickers.LoadAndDelete(name); ok {
		if ticker, ok := val.(*time.Ticker); ok {
			ticker.Stop()
		}
	}
}

// Stop signals every running goroutine to exit. It does not block; call Wait to join them.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(_, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}
		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until every running goroutine has exited, then resets the manager so it can be
// reused for a subsequent connect attempt.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// Count reports the number of currently running goroutines.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) callWithRecover(name string, fn Func) bool {
	defer mgr.recoverPanic(name)
	return fn()
}

func (mgr *Manager) recoverPanic(name string) {
	if r := recover(); r != nil {
		mgr.logger.Error("panic in task", "name", name, "panic", r)
	}
}

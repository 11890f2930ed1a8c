package backend

import (
	"context"
	"sync"
)

// Future is a handle to the eventual result of a submitted task.
// It is safe for concurrent use.
type Future struct {
	done chan struct{}

	mu        sync.Mutex
	resolved  bool
	value     any
	err       error
	callbacks []func(*Future)
}

// NewFuture returns an unresolved future. Use Resolve to complete it.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved(value any, err error) *Future {
	f := NewFuture()
	f.Resolve(value, err)
	return f
}

// Resolve completes the future. Only the first call has any effect.
// Registered callbacks run in registration order on a separate goroutine.
func (f *Future) Resolve(value any, err error) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return
	}
	f.resolved = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	if len(callbacks) > 0 {
		go func() {
			for _, cb := range callbacks {
				cb(f)
			}
		}()
	}
}

// Done returns a channel that is closed once the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the future resolves and returns its value and error.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnDone registers fn to run once the future resolves. fn always runs on a
// goroutine other than the caller's, even if the future is already resolved.
func (f *Future) OnDone(fn func(*Future)) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	go fn(f)
}

// Result pairs a resolved value with its error.
type Result struct {
	Value any
	Err   error
}

// JoinResult is the value of a future returned by Join.
type JoinResult struct {
	// Passthrough is the value handed to Join, returned unchanged.
	Passthrough any
	// Results holds one entry per joined future, in argument order.
	Results []Result
}

// Join returns a future that resolves once every given future has resolved.
// Its value is a JoinResult carrying passthrough and each future's result.
// The joined future never resolves with an error; per-future errors are
// reported in JoinResult.Results.
func Join(passthrough any, futures ...*Future) *Future {
	joined := NewFuture()

	go func() {
		results := make([]Result, len(futures))
		for i, f := range futures {
			v, err := f.Result()
			results[i] = Result{Value: v, Err: err}
		}
		joined.Resolve(JoinResult{Passthrough: passthrough, Results: results}, nil)
	}()

	return joined
}

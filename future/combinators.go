package future

import (
	"sync"
	"time"
)

// Then chains a transformation onto this future: when this future
// completes OK, fn is applied to the value and the result fulfills the
// returned future; on ERROR, the returned future gets the same error
// and fn is never invoked; if this future is abandoned, the returned
// future is abandoned too.
func (f Future[T]) Then(fn func(T) T) Future[T] {
	p := NewPromise[T]()
	f.OnComplete(func(status Status, v T, code int) {
		if status == StatusError {
			p.SetFailed(code)
			return
		}
		p.SetValue(fn(v))
	})
	f.OnAbandoned(func() {
		p.Release()
	})
	return p.Future()
}

// ThenFuture is the async-chaining half of Then: fn returns a Future[T]
// that the returned future associates with.
func (f Future[T]) ThenFuture(fn func(T) Future[T]) Future[T] {
	p := NewPromise[T]()
	f.OnComplete(func(status Status, v T, code int) {
		if status == StatusError {
			p.SetFailed(code)
			return
		}
		p.Associate(fn(v))
	})
	f.OnAbandoned(func() {
		p.Release()
	})
	return p.Future()
}

// Timer is the scheduling collaborator After needs. It is satisfied
// structurally by timer.Service.Schedule without future importing timer,
// keeping the shared timer subsystem wired in as an explicit context
// object rather than a hidden global.
type Timer interface {
	Schedule(d time.Duration, fn func()) Cancel
}

// Cancel cancels a scheduled timer. It returns false if the timer has
// already fired — cancellation is advisory, not a guarantee.
type Cancel func() bool

// After registers a timer of duration d; if this future is still INIT
// when the timer fires, rescue(this) is invoked and the value it returns
// fulfills the returned future. If this future completes before
// the timer fires, the timer is cancelled and rescue is never called.
func (f Future[T]) After(d time.Duration, t Timer, rescue func(Future[T]) T) Future[T] {
	p := NewPromise[T]()

	var cancel Cancel
	var mu timerGate

	cancel = t.Schedule(d, func() {
		if !mu.claim() {
			return
		}
		p.SetValue(rescue(f))
	})

	f.OnComplete(func(status Status, v T, code int) {
		if !mu.claim() {
			return
		}
		if cancel != nil {
			cancel()
		}
		if status == StatusError {
			p.SetFailed(code)
		} else {
			p.SetValue(v)
		}
	})
	f.OnAbandoned(func() {
		if mu.claim() {
			if cancel != nil {
				cancel()
			}
			p.Release()
		}
	})

	return p.Future()
}

// timerGate ensures exactly one of {timer fire, upstream completion,
// upstream abandonment} wins the race to resolve the After() future.
type timerGate struct {
	mu   sync.Mutex
	done bool
}

func (g *timerGate) claim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	g.done = true
	return true
}

// Collect completes with the values of every input future, in input
// order, once all have completed; it fails with the first error
// observed across completion order.
func Collect[T any](futures []Future[T]) Future[[]T] {
	p := NewPromise[[]T]()
	n := len(futures)
	if n == 0 {
		p.SetValue(nil)
		return p.Future()
	}

	results := make([]T, n)
	var mu countingGate
	mu.remaining = n

	for i := range futures {
		i := i
		futures[i].OnComplete(func(status Status, v T, code int) {
			if status == StatusError {
				if mu.failOnce() {
					p.SetFailed(code)
				}
				return
			}
			results[i] = v
			if mu.completeOne() {
				p.SetValue(results)
			}
		})
		futures[i].OnAbandoned(func() {
			if mu.failOnce() {
				p.Release()
			}
		})
	}

	return p.Future()
}

// countingGate is a tiny, allocation-free completion counter; Collect
// does not need the full state machinery of state[T] since it never
// exposes callbacks of its own.
type countingGate struct {
	mu        sync.Mutex
	remaining int
	done      bool
}

func (g *countingGate) completeOne() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining--
	if g.remaining == 0 && !g.done {
		g.done = true
		return true
	}
	return false
}

func (g *countingGate) failOnce() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	g.done = true
	return true
}

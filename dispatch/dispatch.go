// Package dispatch implements Async and Defer, the two primitives by
// which futures and actors interoperate. Every asynchronous operation in
// litebus ultimately enqueues an ASYNC_THUNK message to an actor — this
// package is where that message is built.
//
// There is no directly reusable precedent for this: the actor.Call this
// runtime started from is request/response over a channel, not
// future-returning dispatch. This is grounded directly in defer.hpp's
// dynamic dispatch of handlers, adapted to Go's lack of member-function
// pointers: instead of capturing `&A::f`, callers pass a closure over
// the actor's behavior value, type-asserting it to whatever concrete
// type they expect.
package dispatch

import (
	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/aid"
	"github.com/najoast/litebus/future"
)

// Async creates a promise, packs fn as an ASYNC_THUNK targeting target,
// and returns the future. fn runs on target's worker goroutine and its
// (value, error) fulfills the promise: error != nil maps to SetFailed(1).
// If target does not resolve to a live local actor, the returned future
// is abandoned without fn ever running.
func Async[T any](sys *actorsys.System, target aid.AID, fn func(behavior interface{}) (T, error)) future.Future[T] {
	p := future.NewPromise[T]()

	status := sys.Send(&aid.Message{
		To:   target,
		Kind: aid.KindAsyncThunk,
		Name: "__async__",
		Thunk: func(behavior interface{}) {
			defer p.Release()
			v, err := fn(behavior)
			if err != nil {
				p.SetFailed(1)
				return
			}
			p.SetValue(v)
		},
	})

	if status != actorsys.StatusOK {
		p.Release()
	}
	return p.Future()
}

// AsyncFuture is Async's async-chaining twin: fn itself returns a
// future.Future[T] (the case where "the member returns Future<R>"); the
// outer promise associates with it instead of setting a value directly.
func AsyncFuture[T any](sys *actorsys.System, target aid.AID, fn func(behavior interface{}) future.Future[T]) future.Future[T] {
	return AsyncFutureAs(sys, target, aid.KindAsyncThunk, "__async__", fn)
}

// AsyncFutureAs is AsyncFuture generalized over the message Kind and
// Name tagging the dispatched message — notably httpd, which dispatches
// HTTP requests this way tagged KindHTTP. The actor's diagnostic ring
// records the Name; the dispatch loop runs the thunk the same way for
// either kind, and Filterer never sees thunk messages.
func AsyncFutureAs[T any](sys *actorsys.System, target aid.AID, kind aid.Kind, name string, fn func(behavior interface{}) future.Future[T]) future.Future[T] {
	p := future.NewPromise[T]()

	status := sys.Send(&aid.Message{
		To:   target,
		Kind: kind,
		Name: name,
		Thunk: func(behavior interface{}) {
			p.Associate(fn(behavior))
			p.Release()
		},
	})

	if status != actorsys.StatusOK {
		p.Release()
	}
	return p.Future()
}

// Deferred is a callable convertible to a plain function of any matching
// signature — in Go, a func value shaped to match
// future.Future[T].OnComplete's callback parameter.
type Deferred[T any] func(status future.Status, value T, errCode int)

// Defer builds a Deferred that, when invoked (typically by
// future.Future[T].OnComplete), dispatches fn onto target's worker so
// the continuation runs on that actor instead of whatever goroutine
// completed the future.
func Defer[T any](sys *actorsys.System, target aid.AID, fn func(behavior interface{}, status future.Status, value T, errCode int)) Deferred[T] {
	return func(status future.Status, value T, errCode int) {
		sys.Send(&aid.Message{
			To:   target,
			Kind: aid.KindAsyncThunk,
			Name: "__defer__",
			Thunk: func(behavior interface{}) {
				fn(behavior, status, value, errCode)
			},
		})
	}
}

// DeferAbandoned is Defer's counterpart for future.Future[T].OnAbandoned:
// it builds a func() that dispatches fn onto target's worker, so a
// continuation reacting to abandonment also runs on that actor rather
// than whatever goroutine released the last Promise handle.
func DeferAbandoned(sys *actorsys.System, target aid.AID, fn func(behavior interface{})) func() {
	return func() {
		sys.Send(&aid.Message{
			To:   target,
			Kind: aid.KindAsyncThunk,
			Name: "__defer__",
			Thunk: func(behavior interface{}) {
				fn(behavior)
			},
		})
	}
}

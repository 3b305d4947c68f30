package future

import (
	"testing"
	"time"
)

func TestSetValueThenGet(t *testing.T) {
	p := NewPromise[int]()
	p.SetValue(42)
	defer p.Release()

	f := p.Future()
	if !f.IsOK() {
		t.Fatalf("expected OK")
	}
	v, ok := f.Get()
	if !ok || v != 42 {
		t.Fatalf("Get() = (%v, %v), want (42, true)", v, ok)
	}
}

func TestSetValueIsIdempotent(t *testing.T) {
	p := NewPromise[int]()
	p.SetValue(1)
	p.SetValue(2)
	defer p.Release()

	v, _ := p.Future().Get()
	if v != 1 {
		t.Fatalf("second SetValue must be a no-op, got %v", v)
	}
}

func TestAbandonmentFiresOnce(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()

	count := 0
	f.OnAbandoned(func() { count++ })
	p.Release()
	p.Release() // idempotent, must not double-fire

	if !f.IsAbandoned() || count != 1 {
		t.Fatalf("expected exactly one abandonment callback, got %d", count)
	}
}

func TestWaitReturnsOnCompletion(t *testing.T) {
	p := NewPromise[int]()
	defer p.Release()

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.SetValue(5)
	}()

	if v := p.Future().Wait(); v != 5 {
		t.Fatalf("Wait() = %v, want 5", v)
	}
}

func TestWaitReturnsOnAbandonmentRatherThanBlockingForever(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Release() // no value ever set: abandons f
	}()

	done := make(chan int, 1)
	go func() { done <- f.Wait() }()

	select {
	case v := <-done:
		if v != 0 {
			t.Fatalf("Wait() on an abandoned future = %v, want zero value", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait() blocked forever on an abandoned future")
	}
}

func TestThenChain(t *testing.T) {
	// p.Future().Then(x -> x+1).Then(x -> x*2) should chain left to right.
	p := NewPromise[int]()
	f := p.Future().Then(func(x int) int { return x + 1 }).Then(func(x int) int { return x * 2 })
	p.SetValue(3)
	defer p.Release()

	v, ok := f.Get()
	if !ok || v != 8 {
		t.Fatalf("Get() = (%v, %v), want (8, true)", v, ok)
	}
	if !f.IsOK() {
		t.Fatalf("expected chained future OK")
	}
}

func TestThenShortCircuitsOnError(t *testing.T) {
	p := NewPromise[int]()
	called := false
	f := p.Future().Then(func(x int) int {
		called = true
		return x
	})
	p.SetFailed(7)
	defer p.Release()

	if called {
		t.Fatalf("Then's function must not run on upstream error")
	}
	if !f.IsError() || f.GetErrorCode() != 7 {
		t.Fatalf("expected downstream ERROR(7), got status=%v code=%v", f.Status(), f.GetErrorCode())
	}
}

// fakeTimer implements future.Timer synchronously (with a real delay)
// backed by time.AfterFunc, standing in for timer.Service in unit tests
// that must not import the timer package (avoiding an import cycle).
type fakeTimer struct{}

func (fakeTimer) Schedule(d time.Duration, fn func()) Cancel {
	t := time.AfterFunc(d, fn)
	return func() bool { return t.Stop() }
}

func TestAfterFiresRescueOnTimeout(t *testing.T) {
	p := NewPromise[int]()
	defer p.Release()

	f := p.Future().After(20*time.Millisecond, fakeTimer{}, func(Future[int]) int { return 42 })

	time.Sleep(100 * time.Millisecond)
	v, ok := f.Get()
	if !ok || v != 42 {
		t.Fatalf("Get() = (%v, %v), want (42, true)", v, ok)
	}
}

func TestAfterSkipsRescueWhenUpstreamWins(t *testing.T) {
	p := NewPromise[int]()
	defer p.Release()

	rescueCalled := false
	f := p.Future().After(100*time.Millisecond, fakeTimer{}, func(Future[int]) int {
		rescueCalled = true
		return 42
	})

	p.SetValue(7)
	time.Sleep(150 * time.Millisecond)

	v, ok := f.Get()
	if !ok || v != 7 {
		t.Fatalf("Get() = (%v, %v), want (7, true)", v, ok)
	}
	if rescueCalled {
		t.Fatalf("rescue must not be invoked when upstream completes first")
	}
}

func TestCollectInOrder(t *testing.T) {
	promises := make([]*Promise[int], 3)
	futures := make([]Future[int], 3)
	for i := range promises {
		promises[i] = NewPromise[int]()
		futures[i] = promises[i].Future()
	}

	collected := Collect(futures)

	promises[2].SetValue(3)
	promises[0].SetValue(1)
	promises[1].SetValue(2)
	for _, p := range promises {
		defer p.Release()
	}

	v, ok := collected.Get()
	if !ok {
		t.Fatalf("expected Collect to complete")
	}
	if v[0] != 1 || v[1] != 2 || v[2] != 3 {
		t.Fatalf("expected values in input order, got %v", v)
	}
}

func TestCollectFailsWithFirstError(t *testing.T) {
	p0 := NewPromise[int]()
	p1 := NewPromise[int]()
	defer p0.Release()
	defer p1.Release()

	collected := Collect([]Future[int]{p0.Future(), p1.Future()})

	p0.SetFailed(99)
	p1.SetValue(1)

	if !collected.IsError() || collected.GetErrorCode() != 99 {
		t.Fatalf("expected ERROR(99), got status=%v code=%v", collected.Status(), collected.GetErrorCode())
	}
}

// Package timer implements litebus's process-wide timer service: a
// monotonic wheel that delivers a message to an actor after a delay, via
// a dedicated thread that wakes on the soonest pending entry.
//
// Grounded in the actor dispatch loop pattern this runtime already uses
// elsewhere (a single goroutine owning a data structure, woken by
// channel signals rather than polled), with the timer service and the
// actor runtime kept as deliberately separate subsystems wired together
// by explicit context objects instead of a hidden global.
package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/aid"
	"github.com/najoast/litebus/future"
)

// Clock is the monotonic-time collaborator the timer service depends on
// instead of calling time.Now directly; the default implementation uses
// time.Now, whose Sub/Before already use the runtime's monotonic reading.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Deliverer hands an ASYNC_THUNK message to the named actor; actorsys.System
// satisfies this without timer importing actorsys, avoiding the import
// cycle this cross-component coupling would otherwise create.
type Deliverer interface {
	Deliver(target aid.AID, thunk aid.ActorThunk) error
}

// Handle identifies one scheduled timer for Cancel.
type Handle uint64

// entry is one pending timer, ordered by Deadline in the heap.
type entry struct {
	deadline time.Time
	handle   Handle
	target   aid.AID
	thunk    aid.ActorThunk
	index    int // heap index, maintained by container/heap
	canceled bool
	fired    bool
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Service is the process-wide timer wheel. One Service should be created
// per litebus process and shared by every Future.After call and every
// actor that schedules a delayed message.
type Service struct {
	mu      sync.Mutex
	heap    entryHeap
	byID    map[Handle]*entry
	nextID  Handle
	wake    chan struct{}
	clock   Clock
	deliver Deliverer
	log     *logrus.Entry

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewService starts the timer service's dedicated goroutine immediately.
// The service owns exactly one goroutine for its whole lifetime.
func NewService(deliver Deliverer, clock Clock, log *logrus.Entry) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Service{
		byID:    make(map[Handle]*entry),
		wake:    make(chan struct{}, 1),
		clock:   clock,
		deliver: deliver,
		log:     log.WithField("component", "timer"),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// AddTimer schedules thunk for delivery to target after delay,
// returning a Handle usable with Cancel.
func (s *Service) AddTimer(delay time.Duration, target aid.AID, thunk aid.ActorThunk) Handle {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	e := &entry{
		deadline: s.clock.Now().Add(delay),
		handle:   id,
		target:   target,
		thunk:    thunk,
	}
	s.byID[id] = e
	heap.Push(&s.heap, e)
	s.mu.Unlock()

	s.nudge()
	return id
}

// Cancel cancels a pending timer. Cancellation is advisory: if the
// timer has already fired, Cancel returns false and the callable will
// still run; cancelling after delivery but before the target actor
// processes the message is impossible to observe from here.
func (s *Service) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[h]
	if !ok || e.fired || e.canceled {
		return false
	}
	e.canceled = true
	delete(s.byID, h)
	if e.index >= 0 {
		heap.Remove(&s.heap, e.index)
	}
	return true
}

// AfterTarget is the actor Schedule delivers to. A process wiring a real
// Service (anything other than the test fakeTimer) must spawn a trivial
// actor under this id once, or every Schedule delivery silently drops
// with a target-not-found error that fire only logs.
var AfterTarget = aid.Local("__After__")

// Schedule is the future.Timer collaborator used by Future.After: it
// schedules fn against the synthetic AfterTarget actor, then wraps the
// resulting Handle as a future.Cancel.
func (s *Service) Schedule(d time.Duration, fn func()) future.Cancel {
	h := s.AddTimer(d, AfterTarget, func(interface{}) {
		fn()
	})
	return func() bool {
		return s.Cancel(h)
	}
}

// Stop halts the dedicated goroutine. Pending timers are left unfired;
// this mirrors process shutdown, not per-timer cancellation.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.stopped
}

func (s *Service) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) run() {
	defer close(s.stopped)

	for {
		s.mu.Lock()
		var wait time.Duration
		var ready *entry
		if len(s.heap) > 0 {
			next := s.heap[0]
			now := s.clock.Now()
			if !next.deadline.After(now) {
				ready = heap.Pop(&s.heap).(*entry)
				delete(s.byID, ready.handle)
			} else {
				wait = next.deadline.Sub(now)
			}
		} else {
			wait = time.Hour
		}
		s.mu.Unlock()

		if ready != nil {
			ready.fired = true
			s.fire(ready)
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

func (s *Service) fire(e *entry) {
	if err := s.deliver.Deliver(e.target, e.thunk); err != nil {
		// The target actor may have already gone away; the callable
		// must tolerate that, so this is only logged.
		s.log.WithFields(logrus.Fields{
			"target": e.target.String(),
			"error":  err,
			"uuid":   uuid.New().String(),
		}).Debug("timer delivery failed, target actor unavailable")
	}
}

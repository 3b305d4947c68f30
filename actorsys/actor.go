package actorsys

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/aid"
)

// runState tracks an actor's lifecycle.
type runState int

const (
	runStateStarted runState = iota
	runStateStopped
)

// actor is the runtime's private representation of a spawned actor; the
// caller only ever sees its AID.
type actor struct {
	id       aid.AID
	behavior interface{}

	mu          sync.Mutex
	queue       []*aid.Message
	queued      bool // already placed on a ready list / own wake signal
	running     bool // SetActorStatus gate; dispatch is held while false
	state       runState
	terminating bool
	recent      recentRing

	handlers map[string]Handler

	dedicated bool
	wake      chan struct{} // dedicated actors only

	awaiters []chan struct{}

	log *logrus.Entry
}

func newActor(id aid.AID, behavior interface{}, opts SpawnOptions, log *logrus.Entry) *actor {
	a := &actor{
		id:       id,
		behavior: behavior,
		running:  opts.Start,
		handlers: make(map[string]Handler),
		log:      log.WithField("actor", id.String()),
	}
	if !opts.SharedThread {
		a.dedicated = true
		a.wake = make(chan struct{}, 1)
	}
	return a
}

// enqueue appends msg to the mailbox and reports whether the caller must
// (re)schedule this actor — i.e. the mailbox transitioned empty -> non-empty
// while not already queued.
func (a *actor) enqueue(msg *aid.Message) (mustSchedule bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == runStateStopped {
		return false
	}

	a.queue = append(a.queue, msg)
	if !a.queued && a.running {
		a.queued = true
		return true
	}
	return false
}

// setRunning implements SetActorStatus's gating half.
func (a *actor) setRunning(running bool) (mustSchedule bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.running = running
	if running && !a.queued && len(a.queue) > 0 && a.state != runStateStopped {
		a.queued = true
		return true
	}
	return false
}

// drainOne pops the next message if the actor is still runnable, or
// releases the queued flag and returns ok=false when the mailbox is
// empty or gating is held — the caller must stop dispatching this
// actor in that case.
func (a *actor) drainOne() (msg *aid.Message, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running || len(a.queue) == 0 {
		a.queued = false
		return nil, false
	}
	msg = a.queue[0]
	a.queue = a.queue[1:]
	return msg, true
}

// dispatch runs one message through the actor's handlers. A panicking
// Handler is recorded with the diagnostic ring and treated as fatal.
func (a *actor) dispatch(msg *aid.Message, sys *System) {
	a.mu.Lock()
	a.recent.push(msg.Name)
	a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.fatal(r)
		}
	}()

	switch msg.Kind {
	case aid.KindWireTCP, aid.KindWireUDP:
		if f, ok := a.behavior.(Filterer); ok && f.Filter(msg) {
			return
		}
		a.mu.Lock()
		h, found := a.handlers[msg.Name]
		a.mu.Unlock()
		if !found {
			a.log.WithField("message", msg.Name).Warn("no handler registered for message")
			return
		}
		if err := h(msg); err != nil {
			a.log.WithError(err).WithField("message", msg.Name).Warn("handler returned error")
		}

	case aid.KindHTTP, aid.KindAsyncThunk:
		// Both kinds reach the actor the same way: HTTP requests are
		// delivered via dispatch.AsyncFutureAs exactly like any other
		// asynchronous call, carrying the response promise inside the
		// thunk closure. KindHTTP is only a label on the message: this
		// loop treats it like KindAsyncThunk, the diagnostic ring records
		// the message Name rather than its Kind, and Filterer is consulted
		// for wire kinds only.
		msg.Thunk(a.behavior)

	case aid.KindLocal:
		if h, ok := a.behavior.(LocalMsgHandler); ok {
			h.HandleLocalMsg(msg)
		} else {
			a.log.Warn("actor received local message but implements no LocalMsgHandler")
		}

	case aid.KindExit:
		if h, ok := a.behavior.(ExitHandler); ok {
			h.Exited(msg.From)
		}

	case aid.KindTerminate:
		a.finalize()
	}
}

// fatal logs with actor identity and the last three message names, then
// aborts the process. fatalAbort is a package variable so tests can
// intercept the abort instead of actually exiting.
func (a *actor) fatal(recovered interface{}) {
	a.mu.Lock()
	recent := a.recent.snapshot()
	a.mu.Unlock()

	entry := a.log.WithFields(logrus.Fields{
		"panic":           fmt.Sprint(recovered),
		"recent_messages": recent,
	})
	entry.Error("actor handler panicked, aborting process")
	fatalAbort(entry)
}

func (a *actor) finalize() {
	a.mu.Lock()
	a.terminating = true
	a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.fatal(r)
		}
	}()

	if f, ok := a.behavior.(Finalizer); ok {
		f.Finalize()
	}

	a.mu.Lock()
	a.state = runStateStopped
	waiters := a.awaiters
	a.awaiters = nil
	a.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// await returns a channel that closes once this actor has finalized. If
// it already has, the returned channel is already closed.
func (a *actor) await() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == runStateStopped {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	ch := make(chan struct{})
	a.awaiters = append(a.awaiters, ch)
	return ch
}

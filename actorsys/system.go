package actorsys

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/aid"
)

// IOSender hands a message addressed to a remote AID to the transport
// registered for its protocol. wire.Sender satisfies this for
// aid.ProtocolTCP without actorsys importing wire, keeping subsystems
// wired together explicitly rather than reaching across a hidden
// global.
type IOSender interface {
	// Send returns an error (typically nil) once the message has been
	// handed to the transport; protocolKnown reports whether this
	// sender recognizes msg.To.Protocol at all; if false, System.Send
	// returns StatusIoNotFound.
	Send(msg *aid.Message) (protocolKnown bool, err error)
}

// System is the per-process ActorMgr: the actor table, the shared
// worker pool, and the IO manager hookup. It is an explicit context
// object rather than a singleton; callers construct exactly one System
// and thread it through.
type System struct {
	mu     sync.RWMutex
	actors map[aid.AID]*actor

	ready chan *actor

	workerWG sync.WaitGroup
	closing  chan struct{}
	closed   bool

	io  IOSender
	log *logrus.Entry
}

// NewSystem starts `workers` shared worker goroutines. If workers <= 0,
// runtime.NumCPU() is used so the pool size defaults to the host's
// available parallelism.
func NewSystem(workers int, io IOSender, log *logrus.Entry) *System {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &System{
		actors:  make(map[aid.AID]*actor),
		ready:   make(chan *actor, 1024),
		closing: make(chan struct{}),
		io:      io,
		log:     log.WithField("component", "actorsys"),
	}
	for i := 0; i < workers; i++ {
		s.workerWG.Add(1)
		go s.workerLoop()
	}
	return s
}

// Spawn registers behavior under id's name, returning StatusDuplicateActor
// if the name is already taken.
func (s *System) Spawn(id aid.AID, behavior interface{}, opts SpawnOptions) (aid.AID, error) {
	s.mu.Lock()
	if _, exists := s.actors[id]; exists {
		s.mu.Unlock()
		return aid.AID{}, errors.Wrapf(StatusDuplicateActor, "actor %q", id.Name)
	}
	a := newActor(id, behavior, opts, s.log)
	s.actors[id] = a
	s.mu.Unlock()

	if a.dedicated {
		go s.dedicatedLoop(a)
	}
	return id, nil
}

// Receive registers handler for named messages on the actor at id.
// Calling it twice for the same (id, name) pair is a programming mistake,
// not a runtime condition, so it panics rather than returning an error.
func (s *System) Receive(id aid.AID, name string, h Handler) {
	s.mu.RLock()
	a, ok := s.actors[id]
	s.mu.RUnlock()
	if !ok {
		panic(errors.Errorf("actorsys: Receive on unknown actor %q", id.Name))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.handlers[name]; dup {
		panic(errors.Errorf("actorsys: duplicate handler %q registered for actor %q", name, id.Name))
	}
	a.handlers[name] = h
}

// Send routes msg to msg.To: locally to an actor's mailbox, or out
// through the registered IOSender when the address names a remote peer.
func (s *System) Send(msg *aid.Message) Status {
	if field, oversize := msg.Oversize(); oversize {
		s.log.WithField("field", field).Warn("dropping oversize message")
		return StatusParamInvalid
	}

	to := msg.To
	if to.IsLocal() {
		s.mu.RLock()
		a, ok := s.actors[to]
		s.mu.RUnlock()
		if !ok {
			return StatusActorNotFound
		}
		if a.enqueue(msg) {
			s.schedule(a)
		}
		return StatusOK
	}

	if !to.OK() {
		return StatusParamInvalid
	}
	if s.io == nil {
		return StatusIoNotFound
	}
	known, err := s.io.Send(msg)
	if !known {
		return StatusIoNotFound
	}
	if err != nil {
		s.log.WithError(err).Warn("remote send failed")
	}
	return StatusOK
}

// Terminate enqueues a TERMINATE message for the named actor.
func (s *System) Terminate(target aid.AID) Status {
	return s.Send(&aid.Message{To: target, Kind: aid.KindTerminate, Name: "__terminate__"})
}

// Await blocks until the actor's worker has drained to TERMINATE and its
// finalizer has run, or returns immediately if the actor is unknown
// (there is nothing left to await).
func (s *System) Await(target aid.AID) {
	s.mu.RLock()
	a, ok := s.actors[target]
	s.mu.RUnlock()
	if !ok {
		return
	}
	<-a.await()

	s.mu.Lock()
	delete(s.actors, target)
	s.mu.Unlock()
}

// SetActorStatus flips an actor's runnable gate: messages still enqueue
// while running=false, but dispatch is held until it flips back to true.
func (s *System) SetActorStatus(target aid.AID, running bool) Status {
	s.mu.RLock()
	a, ok := s.actors[target]
	s.mu.RUnlock()
	if !ok {
		return StatusActorNotFound
	}
	if a.setRunning(running) {
		s.schedule(a)
	}
	return StatusOK
}

// Deliver implements timer.Deliverer: it synthesizes an ASYNC_THUNK
// message so a fired timer reaches its target actor through the same
// mailbox path as every other message.
func (s *System) Deliver(target aid.AID, thunk aid.ActorThunk) error {
	status := s.Send(&aid.Message{To: target, Kind: aid.KindAsyncThunk, Name: "__timer__", Thunk: thunk})
	if status != StatusOK {
		return status
	}
	return nil
}

// schedule places an actor on the appropriate ready queue: the shared
// worker pool's channel, or its own dedicated wake signal.
func (s *System) schedule(a *actor) {
	if a.dedicated {
		select {
		case a.wake <- struct{}{}:
		default:
		}
		return
	}
	select {
	case s.ready <- a:
	case <-s.closing:
	}
}

// workerLoop is one of the shared pool's N goroutines.
func (s *System) workerLoop() {
	defer s.workerWG.Done()
	for {
		select {
		case a := <-s.ready:
			s.drainActor(a)
		case <-s.closing:
			return
		}
	}
}

// dedicatedLoop drives a single dedicated-thread actor for its entire
// lifetime.
func (s *System) dedicatedLoop(a *actor) {
	for {
		select {
		case <-a.wake:
			s.drainActor(a)
			a.mu.Lock()
			stopped := a.state == runStateStopped
			a.mu.Unlock()
			if stopped {
				return
			}
		case <-s.closing:
			return
		}
	}
}

// drainActor processes messages for one actor until its mailbox is
// empty or gating holds it. The single-consumer invariant holds because
// an actor is only ever drained by the goroutine that won
// the race to flip `queued` to true in enqueue/setRunning.
func (s *System) drainActor(a *actor) {
	for {
		msg, ok := a.drainOne()
		if !ok {
			return
		}
		a.dispatch(msg, s)
		if msg.Kind == aid.KindTerminate {
			return
		}
	}
}

// Shutdown stops the shared worker pool. Dedicated-actor goroutines also
// observe closing and exit. It does not wait for in-flight actors to
// finalize; callers that need that should Await each actor first.
func (s *System) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closing)
	s.workerWG.Wait()
}

// Lookup exposes whether an AID currently names a live actor, for
// components (e.g. the HTTP server's route dispatch) that must decide
// between routing to an actor and falling back to a delegate.
func (s *System) Lookup(target aid.AID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.actors[target]
	return ok
}

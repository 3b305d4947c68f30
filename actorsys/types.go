// Package actorsys implements litebus's actor runtime: named,
// single-consumer actors whose mailboxes are drained in FIFO order by a
// shared worker pool or a dedicated goroutine, with runnable gating and
// supervised termination.
//
// Adapted from the core package this was built from (actor.go/router.go/
// system.go), replaced at the core: that package gives every Actor its
// own goroutine and an unbounded channel mailbox; litebus instead uses a
// mutex-guarded FIFO queue per actor plus a shared ready-actor queue
// drained by a fixed worker pool, so an actor is cheap and is not itself
// a thread unless it opts into a dedicated worker.
package actorsys

import (
	"github.com/najoast/litebus/aid"
)

// Status is a synchronous API result returned by System's operations.
type Status int

const (
	StatusOK Status = iota
	StatusActorNotFound
	StatusIoNotFound
	StatusParamInvalid
	StatusDuplicateActor
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusActorNotFound:
		return "ActorNotFound"
	case StatusIoNotFound:
		return "IoNotFound"
	case StatusParamInvalid:
		return "ParamInvalid"
	case StatusDuplicateActor:
		return "DuplicateActor"
	default:
		return "Unknown"
	}
}

func (s Status) Error() string { return s.String() }

// Handler processes one named message for an actor. A returned error is
// a normal application-level failure and is only logged; a panic from a
// Handler leaves actor state in an unknown condition and is fatal.
type Handler func(msg *aid.Message) error

// Filterer lets an actor drop wire-originated messages before they reach
// a Handler: if Filter returns true, the message is dropped silently.
type Filterer interface {
	Filter(msg *aid.Message) bool
}

// LocalMsgHandler is the virtual HandleLocalMsg hook invoked for
// KindLocal messages.
type LocalMsgHandler interface {
	HandleLocalMsg(msg *aid.Message)
}

// ExitHandler is invoked for KindExit messages, carrying the AID of the
// peer that exited.
type ExitHandler interface {
	Exited(peer aid.AID)
}

// Finalizer runs once, after the TERMINATE message is dequeued and
// before the actor is destroyed and any Await waiter released.
type Finalizer interface {
	Finalize()
}

// SpawnOptions controls how Spawn schedules an actor.
type SpawnOptions struct {
	// SharedThread, when true (the default), makes this actor's mailbox
	// drained by any worker in the shared pool. When false, a private
	// worker goroutine is allocated for it.
	SharedThread bool

	// Start controls whether processing begins immediately or waits for
	// SetActorStatus(aid, true).
	Start bool

	// MailboxCap is accepted but not read by Spawn: every mailbox is
	// unbounded whatever its value.
	MailboxCap int
}

// DefaultSpawnOptions returns the common case: shared worker pool,
// dispatching starts immediately.
func DefaultSpawnOptions() SpawnOptions {
	return SpawnOptions{SharedThread: true, Start: true}
}

// recentRing is a 3-entry diagnostic ring buffer of the most recently
// dequeued message names, kept for fatal-crash dumps.
type recentRing struct {
	names [3]string
	next  int
	count int
}

func (r *recentRing) push(name string) {
	r.names[r.next] = name
	r.next = (r.next + 1) % 3
	if r.count < 3 {
		r.count++
	}
}

// snapshot returns the recorded names, oldest first.
func (r *recentRing) snapshot() []string {
	out := make([]string, 0, r.count)
	start := (r.next - r.count + 3) % 3
	for i := 0; i < r.count; i++ {
		out = append(out, r.names[(start+i)%3])
	}
	return out
}

package actorsys

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/aid"
)

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// recorder is a wire-addressable actor behavior: Receive registers named
// handlers for it, so it drives messages through the same KindWireTCP
// path a remote peer's traffic would take.
type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) record(msg *aid.Message) error {
	r.mu.Lock()
	r.seen = append(r.seen, msg.Name)
	r.mu.Unlock()
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}

func TestSpawnSendFIFOOrder(t *testing.T) {
	sys := NewSystem(2, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("recorder")
	r := &recorder{}
	if _, err := sys.Spawn(id, r, DefaultSpawnOptions()); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	sys.Receive(id, "m1", r.record)
	sys.Receive(id, "m2", r.record)

	from := aid.Local("sender")
	if st := sys.Send(&aid.Message{From: from, To: id, Kind: aid.KindWireTCP, Name: "m1"}); st != StatusOK {
		t.Fatalf("send m1: %v", st)
	}
	if st := sys.Send(&aid.Message{From: from, To: id, Kind: aid.KindWireTCP, Name: "m2"}); st != StatusOK {
		t.Fatalf("send m2: %v", st)
	}

	sys.Terminate(id)
	sys.Await(id)

	got := r.snapshot()
	want := []string{"m1", "m2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("FIFO order violated: got %v, want %v", got, want)
	}
}

func TestSpawnDuplicateName(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("dup")
	if _, err := sys.Spawn(id, &recorder{}, DefaultSpawnOptions()); err != nil {
		t.Fatalf("first Spawn: %v", err)
	}
	if _, err := sys.Spawn(id, &recorder{}, DefaultSpawnOptions()); err == nil {
		t.Fatal("expected second Spawn under the same name to fail")
	}
}

func TestReceiveDuplicateHandlerPanics(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("dup-handler")
	r := &recorder{}
	sys.Spawn(id, r, DefaultSpawnOptions())
	sys.Receive(id, "m1", r.record)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Receive to panic on a duplicate (id, name) registration")
		}
	}()
	sys.Receive(id, "m1", r.record)
}

func TestSendUnknownActor(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	st := sys.Send(&aid.Message{To: aid.Local("nobody"), Kind: aid.KindWireTCP, Name: "x"})
	if st != StatusActorNotFound {
		t.Fatalf("got %v, want StatusActorNotFound", st)
	}
}

func TestSendOversizeNameRejected(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("oversize")
	sys.Spawn(id, &recorder{}, DefaultSpawnOptions())

	big := make([]byte, aid.MaxNameLen+1)
	for i := range big {
		big[i] = 'x'
	}
	st := sys.Send(&aid.Message{To: id, Kind: aid.KindWireTCP, Name: string(big)})
	if st != StatusParamInvalid {
		t.Fatalf("got %v, want StatusParamInvalid", st)
	}
}

func TestSendRemoteWithoutIOSenderReturnsIoNotFound(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	remote := aid.Remote("peer", aid.ProtocolHTTP, "127.0.0.1", 9999)
	st := sys.Send(&aid.Message{To: remote, Kind: aid.KindWireTCP, Name: "x"})
	if st != StatusIoNotFound {
		t.Fatalf("got %v, want StatusIoNotFound", st)
	}
}

// local implements LocalMsgHandler, exercising KindLocal dispatch, which
// bypasses the named handler table entirely.
type local struct {
	done chan struct{}
}

func (l *local) HandleLocalMsg(msg *aid.Message) {
	if msg.Name == "ping" {
		close(l.done)
	}
}

func TestKindLocalDispatchesToHandleLocalMsg(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("local-actor")
	l := &local{done: make(chan struct{})}
	sys.Spawn(id, l, DefaultSpawnOptions())

	sys.Send(&aid.Message{To: id, Kind: aid.KindLocal, Name: "ping"})

	select {
	case <-l.done:
	case <-time.After(time.Second):
		t.Fatal("HandleLocalMsg was never invoked")
	}
}

func TestSetActorStatusGatesDispatch(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("gated")
	r := &recorder{}
	opts := DefaultSpawnOptions()
	opts.Start = false
	sys.Spawn(id, r, opts)
	sys.Receive(id, "m1", r.record)

	sys.Send(&aid.Message{To: id, Kind: aid.KindWireTCP, Name: "m1"})

	time.Sleep(20 * time.Millisecond)
	if len(r.snapshot()) != 0 {
		t.Fatal("message dispatched before SetActorStatus(true) was called")
	}

	if st := sys.SetActorStatus(id, true); st != StatusOK {
		t.Fatalf("SetActorStatus: %v", st)
	}
	sys.Terminate(id)
	sys.Await(id)

	if got := r.snapshot(); len(got) != 1 || got[0] != "m1" {
		t.Fatalf("got %v after ungating, want [m1]", got)
	}
}

func TestAwaitUnknownActorReturnsImmediately(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	done := make(chan struct{})
	go func() {
		sys.Await(aid.Local("never-spawned"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await on an unknown actor should return immediately")
	}
}

func TestLookup(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("findme")
	if sys.Lookup(id) {
		t.Fatal("Lookup found an actor before it was spawned")
	}
	sys.Spawn(id, &recorder{}, DefaultSpawnOptions())
	if !sys.Lookup(id) {
		t.Fatal("Lookup did not find a spawned actor")
	}

	sys.Terminate(id)
	sys.Await(id)
	if sys.Lookup(id) {
		t.Fatal("Lookup found an actor after Await removed it")
	}
}

// finalizer implements Finalizer to observe Terminate running it exactly
// once, before Await unblocks.
type finalizer struct {
	ran int32
}

func (f *finalizer) Finalize() {
	f.ran++
}

func TestFinalizeRunsOnTerminate(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("finalized")
	f := &finalizer{}
	sys.Spawn(id, f, DefaultSpawnOptions())

	sys.Terminate(id)
	sys.Await(id)

	if f.ran != 1 {
		t.Fatalf("Finalize ran %d times, want 1", f.ran)
	}
}

// TestFatalAbortSubstitution exercises the panic path without exiting the
// test process: fatalAbort is a package variable precisely so a test can
// swap in a non-terminating stand-in.
func TestFatalAbortSubstitution(t *testing.T) {
	prev := fatalAbort
	defer func() { fatalAbort = prev }()

	aborted := make(chan []string, 1)
	fatalAbort = func(entry *logrus.Entry) {
		recent, _ := entry.Data["recent_messages"].([]string)
		aborted <- recent
	}

	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("panicky")
	r := &recorder{}
	sys.Spawn(id, r, DefaultSpawnOptions())
	sys.Receive(id, "ok1", r.record)
	sys.Receive(id, "boom", func(msg *aid.Message) error {
		panic("handler exploded")
	})

	sys.Send(&aid.Message{To: id, Kind: aid.KindWireTCP, Name: "ok1"})
	sys.Send(&aid.Message{To: id, Kind: aid.KindWireTCP, Name: "boom"})

	select {
	case recent := <-aborted:
		found := false
		for _, name := range recent {
			if name == "boom" {
				found = true
			}
		}
		if !found {
			t.Fatalf("recent_messages %v does not include the panicking message", recent)
		}
	case <-time.After(time.Second):
		t.Fatal("fatalAbort was never invoked after a handler panic")
	}
}

func TestExitHandlerInvokedOnKindExit(t *testing.T) {
	sys := NewSystem(1, nil, discardLog())
	defer sys.Shutdown()

	id := aid.Local("watches-exit")
	e := &exitWatcher{seen: make(chan aid.AID, 1)}
	sys.Spawn(id, e, DefaultSpawnOptions())

	peer := aid.Local("departed")
	sys.Send(&aid.Message{From: peer, To: id, Kind: aid.KindExit})

	select {
	case got := <-e.seen:
		if got != peer {
			t.Fatalf("Exited(%v), want %v", got, peer)
		}
	case <-time.After(time.Second):
		t.Fatal("Exited was never invoked")
	}
}

type exitWatcher struct {
	seen chan aid.AID
}

func (e *exitWatcher) Exited(peer aid.AID) {
	e.seen <- peer
}

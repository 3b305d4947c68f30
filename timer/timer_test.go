package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/najoast/litebus/aid"
)

type recordingDeliverer struct {
	mu  sync.Mutex
	got []aid.AID
}

func (d *recordingDeliverer) Deliver(target aid.AID, thunk aid.ActorThunk) error {
	d.mu.Lock()
	d.got = append(d.got, target)
	d.mu.Unlock()
	thunk(nil)
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.got)
}

func TestAddTimerFires(t *testing.T) {
	d := &recordingDeliverer{}
	svc := NewService(d, nil, nil)
	defer svc.Stop()

	fired := make(chan struct{})
	svc.AddTimer(10*time.Millisecond, aid.Local("watcher"), func(interface{}) {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if d.count() != 1 {
		t.Fatalf("expected one delivery, got %d", d.count())
	}
}

func TestCancelBeforeFireReturnsTrueAndSkipsCallable(t *testing.T) {
	d := &recordingDeliverer{}
	svc := NewService(d, nil, nil)
	defer svc.Stop()

	ran := false
	h := svc.AddTimer(200*time.Millisecond, aid.Local("watcher"), func(interface{}) {
		ran = true
	})

	if !svc.Cancel(h) {
		t.Fatalf("expected Cancel to return true before fire")
	}
	time.Sleep(300 * time.Millisecond)
	if ran {
		t.Fatalf("cancelled timer must not run its callable")
	}
}

func TestCancelAfterFireReturnsFalse(t *testing.T) {
	d := &recordingDeliverer{}
	svc := NewService(d, nil, nil)
	defer svc.Stop()

	fired := make(chan struct{})
	h := svc.AddTimer(5*time.Millisecond, aid.Local("watcher"), func(interface{}) {
		close(fired)
	})

	<-fired
	time.Sleep(10 * time.Millisecond)
	if svc.Cancel(h) {
		t.Fatalf("expected Cancel to return false once the timer already fired")
	}
}

func TestScheduleTargetsAfterTarget(t *testing.T) {
	d := &recordingDeliverer{}
	svc := NewService(d, nil, nil)
	defer svc.Stop()

	ran := make(chan struct{})
	svc.Schedule(5*time.Millisecond, func() {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("scheduled callable did not run")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.got) != 1 || d.got[0] != AfterTarget {
		t.Fatalf("expected delivery targeting AfterTarget, got %v", d.got)
	}
}

func TestOrderingBySoonestDeadline(t *testing.T) {
	d := &recordingDeliverer{}
	svc := NewService(d, nil, nil)
	defer svc.Stop()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	svc.AddTimer(60*time.Millisecond, aid.Local("c"), func(interface{}) {
		mu.Lock()
		order = append(order, "c")
		mu.Unlock()
		close(done)
	})
	svc.AddTimer(20*time.Millisecond, aid.Local("a"), func(interface{}) {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
	})
	svc.AddTimer(40*time.Millisecond, aid.Local("b"), func(interface{}) {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
	})

	<-done
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected firing order [a b c], got %v", order)
	}
}

package httpd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/timer"
)

// TestLaunchRequestTimesOutAgainstRealTimer exercises the production
// path end to end: a real timer.Service delivering to a spawned
// timer.AfterTarget actor, and the timeout dispatched as an ASYNC_THUNK
// onto the client pipeline's own actor rather than racing cp.pending
// from the timer's goroutine.
func TestLaunchRequestTimesOutAgainstRealTimer(t *testing.T) {
	sys := actorsys.NewSystem(2, nil, discardLog())
	defer sys.Shutdown()

	_, err := sys.Spawn(timer.AfterTarget, struct{}{}, actorsys.DefaultSpawnOptions())
	require.NoError(t, err)

	timerSvc := timer.NewService(sys, nil, discardLog())
	defer timerSvc.Stop()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept and hold the connection open without ever writing a
	// response, so the request's own timeout is what resolves it.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	registry := NewRegistry()
	client := NewClient(sys, registry, timerSvc, discardLog())

	connFut := client.Connect(ln.Addr().String())
	conn := connFut.Wait()
	require.NotNil(t, conn)
	defer conn.Close()

	req := Request{Method: MethodGet, URL: URL{Path: "/x"}}
	respFut := conn.LaunchRequest(req, 30*time.Millisecond)

	done := make(chan struct{})
	go func() {
		respFut.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request timeout never fired against the real timer service")
	}

	require.True(t, respFut.IsError())
	require.Equal(t, ErrConnectionTimeout, respFut.GetErrorCode())
}

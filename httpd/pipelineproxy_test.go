package httpd

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/future"
)

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// TestEnqueueAbandonedFutureWritesAndAdvances guards against an abandoned
// response future (the case dispatchRPC hits when a URL names no live
// actor and no delegate) wedging the connection's head-of-line forever.
func TestEnqueueAbandonedFutureWritesAndAdvances(t *testing.T) {
	sys := actorsys.NewSystem(2, nil, discardLog())
	defer sys.Shutdown()

	server, client := net.Pipe()
	defer client.Close()

	_, proxy := newPipelineProxy(sys, server, 1, discardLog())

	p := future.NewPromise[*Response]()
	p.Release() // never given a value: abandons the future

	proxy.Enqueue(Request{Method: "GET"}, p.Future())

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

// TestEnqueueMixesCompletedAndAbandonedInOrder checks that an abandoned
// head unblocks a completed response already queued behind it, in FIFO
// order, rather than only recovering the abandoned slot in isolation.
func TestEnqueueMixesCompletedAndAbandonedInOrder(t *testing.T) {
	sys := actorsys.NewSystem(2, nil, discardLog())
	defer sys.Shutdown()

	server, client := net.Pipe()
	defer client.Close()

	_, proxy := newPipelineProxy(sys, server, 2, discardLog())

	abandoned := future.NewPromise[*Response]()
	ok := future.NewPromise[*Response]()

	proxy.Enqueue(Request{Method: "GET", KeepAlive: true}, abandoned.Future())
	proxy.Enqueue(Request{Method: "GET"}, ok.Future())

	ok.SetValue(NewResponse(http.StatusOK, []byte("hi")))
	ok.Release()
	abandoned.Release()

	br := bufio.NewReader(client)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))

	first, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, first.StatusCode)

	second, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, second.StatusCode)
}

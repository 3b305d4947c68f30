// The per-connection pipeline proxy is the hardest piece of this
// package: HTTP/1.1 requires responses to leave in the same order their
// requests arrived, even though each request's actor handler completes
// whenever it completes. There is no directly reusable precedent for
// this in the surrounding packages — none of them have an HTTP layer at
// all — so this is grounded directly in http_pipeline_proxy.cpp/.hpp: an
// ordered list of {request, pending response}, with the oldest response
// released as soon as it completes, and the rest waiting behind it.
//
// The proxy is itself a litebus actor. Every mutation of its ordered
// list happens inside an ASYNC_THUNK dispatched to the proxy's own
// actor, via dispatch.Defer — so the single-consumer guarantee actorsys
// already provides is what keeps this package's state safe, with no
// additional locking: it is protected implicitly by the actor runtime's
// single-consumer guarantee.
package httpd

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/aid"
	"github.com/najoast/litebus/dispatch"
	"github.com/najoast/litebus/future"
)

type pendingResponse struct {
	req     Request
	fut     future.Future[*Response]
	written bool
}

// pipelineProxy is the actor behavior spawned once per accepted server
// connection.
type pipelineProxy struct {
	sys  *actorsys.System
	self aid.AID
	conn net.Conn
	bw   *bufio.Writer
	log  *logrus.Entry

	order      []*pendingResponse
	closeAfter bool
}

// newPipelineProxy spawns and registers a proxy actor for conn, returning
// its AID.
func newPipelineProxy(sys *actorsys.System, conn net.Conn, seq int64, log *logrus.Entry) (aid.AID, *pipelineProxy) {
	id := aid.Local(fmt.Sprintf("__httpproxy__%d", seq))
	p := &pipelineProxy{
		sys:  sys,
		self: id,
		conn: conn,
		bw:   bufio.NewWriter(conn),
		log:  log.WithField("proxy", id.Name),
	}
	sys.Spawn(id, p, actorsys.DefaultSpawnOptions())
	return id, p
}

// Enqueue appends a new {request, future} pair to the proxy's ordered
// list and arranges for onSettled to run — on the proxy's own actor
// worker — once fut terminates.
func (p *pipelineProxy) Enqueue(req Request, fut future.Future[*Response]) {
	p.sys.Send(&aid.Message{
		To:   p.self,
		Kind: aid.KindAsyncThunk,
		Name: "__enqueue__",
		Thunk: func(behavior interface{}) {
			proxy := behavior.(*pipelineProxy)
			entry := &pendingResponse{req: req, fut: fut}
			proxy.order = append(proxy.order, entry)
			fut.OnComplete(dispatch.Defer(proxy.sys, proxy.self,
				func(behavior interface{}, status future.Status, resp *Response, errCode int) {
					behavior.(*pipelineProxy).onSettled()
				}))
			fut.OnAbandoned(dispatch.DeferAbandoned(proxy.sys, proxy.self,
				func(behavior interface{}) {
					behavior.(*pipelineProxy).onSettled()
				}))
		},
	})
}

// onSettled drains the front of the ordered list as long as it holds
// terminal futures, writing each response in order before advancing. An
// abandoned future (no live actor or delegate matched the request) is
// treated the same as a terminal one: writeHead's Get() fails and falls
// back to a 500, so the connection's head-of-line never wedges waiting
// on a response that will never arrive.
func (p *pipelineProxy) onSettled() {
	for len(p.order) > 0 {
		head := p.order[0]
		if head.written {
			p.order = p.order[1:]
			continue
		}
		if !head.fut.IsOK() && !head.fut.IsError() && !head.fut.IsAbandoned() {
			return // still pending; wait for the next settle.
		}
		p.writeHead(head)
		p.order = p.order[1:]
		if p.closeAfter {
			p.drainRestWithClose()
			p.conn.Close()
			return
		}
	}
}

func (p *pipelineProxy) writeHead(head *pendingResponse) {
	resp, ok := head.fut.Get()
	if !ok || resp == nil {
		resp = NewResponse(http.StatusInternalServerError, nil)
	}
	if strings.EqualFold(resp.Header.Get("Connection"), "close") || !head.req.KeepAlive {
		p.closeAfter = true
	}
	if err := writeResponse(p.bw, resp); err != nil {
		p.log.WithError(err).Warn("failed writing pipelined response")
		p.closeAfter = true
	}
	p.bw.Flush()
}

// drainRestWithClose drops every entry still queued behind the one that
// triggered connection close: no response is written for them, and
// their futures are left untouched (the proxy holds futures, not the
// promises behind them, so it does not fail them).
func (p *pipelineProxy) drainRestWithClose() {
	p.order = nil
}

// Finalize implements actorsys.Finalizer: closes the underlying
// connection once the proxy actor terminates.
func (p *pipelineProxy) Finalize() {
	p.conn.Close()
}

func writeResponse(w *bufio.Writer, r *Response) error {
	resp := &http.Response{
		StatusCode: r.StatusCode,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     r.Header,
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.ContentLength = int64(len(r.Body))
	resp.Body = newBodyReadCloser(r.Body)
	return resp.Write(w)
}

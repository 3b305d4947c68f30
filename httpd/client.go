// The client's pipeline actor is the server-side pipelineProxy's mirror
// image: instead of ordering outbound responses, it orders the matching
// of inbound response frames to the outbound requests that caused them,
// matching them head-first to incoming response frames, the way
// http.cpp's client path does. Grounded the same way: no directly
// reusable analogue elsewhere in this codebase, built from that
// reference design, implemented as an actor so its FIFO needs no
// separate lock (actorsys already serializes access).
package httpd

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/aid"
	"github.com/najoast/litebus/future"
	"github.com/najoast/litebus/timer"
)

// Client dials HTTP/1.1 connections and issues pipelined requests over
// them.
type Client struct {
	sys      *actorsys.System
	registry *Registry
	timer    *timer.Service
	log      *logrus.Entry
}

// NewClient constructs a Client sharing sys/registry/timer with the rest
// of the process.
func NewClient(sys *actorsys.System, registry *Registry, timerSvc *timer.Service, log *logrus.Entry) *Client {
	return &Client{sys: sys, registry: registry, timer: timerSvc, log: log.WithField("component", "httpd.client")}
}

// Conn is a client-owned connection: a dialed socket plus the pipeline
// actor matching responses to outstanding requests.
type Conn struct {
	client *Client
	rec    *ConnRecord
	nc     net.Conn
	bw     *bufio.Writer
	self   aid.AID
}

type clientPipeline struct {
	conn    *Conn
	pending []*pendingRequest
	log     *logrus.Entry
}

type pendingRequest struct {
	method string
	p      *future.Promise[*Response]
	cancel future.Cancel
}

// Connect dials addr (host:port) and spawns the connection's reader loop
// and pipeline actor, returning a future that completes once the TCP
// handshake finishes.
func (c *Client) Connect(addr string) future.Future[*Conn] {
	p := future.NewPromise[*Conn]()

	go func() {
		defer p.Release()
		nc, err := net.Dial("tcp", addr)
		if err != nil {
			p.SetFailed(ErrConnectionRefused)
			return
		}
		rec := c.registry.Register(addr, RoleClient, nc.Close)
		rec.setState(ConnStateConnected)

		conn := &Conn{client: c, rec: rec, nc: nc, bw: bufio.NewWriter(nc), self: aid.Local(fmt.Sprintf("__httpclient__%d", rec.Seq))}
		cp := &clientPipeline{conn: conn, log: c.log.WithField("conn", conn.self.Name)}
		c.sys.Spawn(conn.self, cp, actorsys.DefaultSpawnOptions())

		go conn.readLoop()
		p.SetValue(conn)
	}()

	return p.Future()
}

// LaunchRequest sends req over conn and returns a future for its
// response. If timeout > 0, a timer is armed that disconnects the
// connection (failing every pending promise with CONNECTION_TIMEOUT) if
// no response for this particular request arrives in time.
func (conn *Conn) LaunchRequest(req Request, timeout time.Duration) future.Future[*Response] {
	p := future.NewPromise[*Response]()

	conn.client.sys.Send(&aid.Message{
		To:   conn.self,
		Kind: aid.KindAsyncThunk,
		Name: "__push__",
		Thunk: func(behavior interface{}) {
			cp := behavior.(*clientPipeline)
			pr := &pendingRequest{method: string(req.Method), p: p}
			if timeout > 0 {
				pr.cancel = conn.client.timer.Schedule(timeout, func() {
					// Runs on the timer service's own goroutine, which
					// must never touch cp.pending directly: that would
					// race the __push__/__settle__ thunks also mutating
					// it. Dispatch onto conn.self's own worker instead,
					// the same single-consumer path every other mutation
					// of cp.pending already goes through.
					conn.client.sys.Send(&aid.Message{
						To:   conn.self,
						Kind: aid.KindAsyncThunk,
						Name: "__timeout__",
						Thunk: func(behavior interface{}) {
							behavior.(*clientPipeline).failAll(ErrConnectionTimeout)
							conn.nc.Close()
						},
					})
				})
			}
			cp.pending = append(cp.pending, pr)
			if err := writeRequest(conn.bw, req); err != nil {
				cp.log.WithError(err).Warn("failed writing pipelined request")
				cp.failAll(ErrConnectionRefused)
				return
			}
			conn.bw.Flush()
		},
	})

	return p.Future()
}

// Close closes the socket at once; it does not wait for in-flight
// requests to settle. The reader loop then fails, the pipeline actor
// terminates, and every request still pending fails with
// ErrConnectionResetByPeer.
func (conn *Conn) Close() error {
	return conn.nc.Close()
}

func (cp *clientPipeline) failAll(code int) {
	for _, pr := range cp.pending {
		if pr.cancel != nil {
			pr.cancel()
		}
		pr.p.SetFailed(code)
		pr.p.Release()
	}
	cp.pending = nil
}

// Finalize implements actorsys.Finalizer.
func (cp *clientPipeline) Finalize() {
	cp.failAll(ErrConnectionResetByPeer)
	cp.conn.nc.Close()
	cp.conn.client.registry.Remove(cp.conn.rec.Seq)
}

// readLoop reads responses off the socket in arrival order, handing
// each to the pipeline actor to match against the oldest pending
// request — the FIFO head-first match the pipelining invariant
// requires.
func (conn *Conn) readLoop() {
	br := bufio.NewReader(conn.nc)
	for {
		method := "GET"
		resp, err := readResponseFor(br, method)
		if err != nil {
			conn.client.sys.Terminate(conn.self)
			return
		}

		conn.client.sys.Send(&aid.Message{
			To:   conn.self,
			Kind: aid.KindAsyncThunk,
			Name: "__settle__",
			Thunk: func(behavior interface{}) {
				cp := behavior.(*clientPipeline)
				if len(cp.pending) == 0 {
					return
				}
				head := cp.pending[0]
				cp.pending = cp.pending[1:]
				if head.cancel != nil {
					head.cancel()
				}
				head.p.SetValue(resp)
				head.p.Release()
			},
		})
	}
}

func readResponseFor(br *bufio.Reader, method string) (*Response, error) {
	httpResp, err := http.ReadResponse(br, &http.Request{Method: method})
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	body, _ := readAllBody(httpResp.Body)
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
}

func writeRequest(w *bufio.Writer, req Request) error {
	httpReq, err := http.NewRequest(string(req.Method), req.URL.Path, newBodyReadCloser(req.Body))
	if err != nil {
		return err
	}
	httpReq.Header = req.Header
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}
	httpReq.ContentLength = int64(len(req.Body))
	if !req.KeepAlive {
		httpReq.Header.Set("Connection", "close")
	}
	return httpReq.Write(w)
}

func readAllBody(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			return buf, nil
		}
	}
}

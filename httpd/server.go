package httpd

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/aid"
	"github.com/najoast/litebus/dispatch"
	"github.com/najoast/litebus/future"
)

// HTTPActor is implemented by actor behaviors that answer HTTP RPC
// requests routed to them by name. ServeActorHTTP runs on the actor's
// own worker (dispatch.AsyncFutureAs delivers it as a KindHTTP thunk),
// and the returned future is what the pipeline proxy waits on before
// writing a response: an HTTP response is a future that completes once
// the handler produces it, not a synchronous return value.
type HTTPActor interface {
	ServeActorHTTP(req Request) future.Future[*Response]
}

// actorFramingHeaders are accepted on ingest for the legacy KMSG-over-HTTP
// encoding. This package emits neither: outgoing KMSG go out through
// wire's framed format.
const (
	LitebusFromHeader    = "Litebus-From"
	LibprocessFromHeader = "Libprocess-From"
)

// Server accepts HTTP/1.1 connections, maps RPC requests onto actors via
// a per-connection pipeline proxy, and forwards actor-framed requests
// directly as wire messages with no response.
type Server struct {
	sys      *actorsys.System
	registry *Registry
	log      *logrus.Entry

	maxConns int32
	delegate atomic.Value // string

	ln      net.Listener
	closing chan struct{}
}

// NewServer constructs a Server bound to sys for actor dispatch and reg
// for connection bookkeeping. maxConns<=0 means unbounded.
func NewServer(sys *actorsys.System, reg *Registry, maxConns int, log *logrus.Entry) *Server {
	s := &Server{
		sys:      sys,
		registry: reg,
		maxConns: int32(maxConns),
		log:      log.WithField("component", "httpd.server"),
		closing:  make(chan struct{}),
	}
	s.delegate.Store("")
	return s
}

// SetDelegate configures the process-wide fallback actor for requests
// that match no actor by URL prefix.
func (s *Server) SetDelegate(name string) {
	s.delegate.Store(name)
}

// Serve accepts connections on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.ln = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	close(s.closing)
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) handleConn(conn net.Conn) {
	rec := s.registry.Register(conn.RemoteAddr().String(), RoleServer, conn.Close)
	rec.setState(ConnStateConnected)

	if s.maxConns > 0 && int32(s.registry.Count()) > s.maxConns {
		rec.MeetMaxClients = true
		s.registry.Remove(rec.Seq)
		conn.Close()
		return
	}

	proxyID, proxy := newPipelineProxy(s.sys, conn, rec.Seq, s.log)
	defer s.sys.Terminate(proxyID)
	defer s.registry.Remove(rec.Seq)

	br := bufio.NewReader(conn)
	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			rec.ParseFailed = true
			return
		}
		body, _ := io.ReadAll(req.Body)
		req.Body.Close()

		if rec.MeetMaxClients {
			continue
		}

		if from := actorFramingFrom(req.Header); from != "" {
			s.deliverFramed(req, from, body)
			if strings.EqualFold(req.Header.Get("Connection"), "close") {
				return
			}
			continue
		}

		s.dispatchRPC(proxy, req, body)

		if strings.EqualFold(req.Header.Get("Connection"), "close") {
			return
		}
	}
}

func actorFramingFrom(h http.Header) string {
	if v := h.Get(LitebusFromHeader); v != "" {
		return v
	}
	return h.Get(LibprocessFromHeader)
}

// deliverFramed converts a legacy HTTP-kmsg POST into a WIRE_TCP message
// and sends it with no response — responses for KMSG are implicit.
func (s *Server) deliverFramed(req *http.Request, from string, body []byte) {
	fromAID, err := aid.Parse(from)
	if err != nil {
		s.log.WithError(err).Warn("dropping http-kmsg with unparseable from header")
		return
	}
	target, name := splitActorPath(req.URL.Path)
	if target == "" {
		return
	}
	var sig []byte
	if auth := req.Header.Get("Authorization"); auth != "" {
		sig = []byte(auth)
	}
	s.sys.Send(&aid.Message{
		From:      fromAID,
		To:        aid.Local(target),
		Name:      name,
		Body:      body,
		Signature: sig,
		Kind:      aid.KindWireTCP,
	})
}

// splitActorPath splits "/actor/msg/name..." into ("actor", "msg/name...").
func splitActorPath(path string) (actorName, rest string) {
	trimmed := strings.TrimPrefix(path, "/")
	idx := strings.IndexByte(trimmed, '/')
	if idx < 0 {
		return trimmed, ""
	}
	return trimmed[:idx], trimmed[idx+1:]
}

func (s *Server) dispatchRPC(proxy *pipelineProxy, req *http.Request, body []byte) {
	flat, multi := fromURLValues(req.URL.Query())
	actorName, _ := splitActorPath(req.URL.Path)

	target := actorName
	if !s.sys.Lookup(aid.Local(target)) {
		if d, _ := s.delegate.Load().(string); d != "" {
			target = d
		}
	}

	r := Request{
		Method:     Method(req.Method),
		URL:        URL{Scheme: "http", Host: req.Host, Path: req.URL.Path, Query: flat, Multi: multi},
		Header:     req.Header,
		Body:       body,
		KeepAlive:  !strings.EqualFold(req.Header.Get("Connection"), "close"),
		RemoteAddr: req.RemoteAddr,
	}

	fut := dispatch.AsyncFutureAs(s.sys, aid.Local(target), aid.KindHTTP, "HTTP", func(behavior interface{}) future.Future[*Response] {
		h, ok := behavior.(HTTPActor)
		if !ok {
			p := future.NewPromise[*Response]()
			p.SetValue(NewResponse(http.StatusNotFound, []byte("no actor or delegate for "+req.URL.Path)))
			defer p.Release()
			return p.Future()
		}
		return h.ServeActorHTTP(r)
	})

	proxy.Enqueue(r, fut)
}

package wire

import (
	"net"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/aid"
)

// Server accepts framed-TCP connections and feeds every decoded frame
// into sys.Send as a KindWireTCP message, the counterpart to httpd.Server
// for the other wire format.
type Server struct {
	sys *actorsys.System
	log *logrus.Entry

	ln      net.Listener
	closing chan struct{}
}

// NewServer constructs a Server bound to sys for message delivery.
func NewServer(sys *actorsys.System, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		sys:     sys,
		log:     log.WithField("component", "wire.server"),
		closing: make(chan struct{}),
	}
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
	defer conn.Close()
	dec := NewDecoder(conn)
	for {
		frame, err := dec.Next()
		if err != nil {
			return
		}
		msg, err := ToMessage(frame)
		if err != nil {
			s.log.WithError(err).Warn("dropping unparsable frame")
			continue
		}
		// A frame reaching this listener names an actor in this
		// process; its To carries the sender's view of how it dialed
		// us (host/port included), which this process's actor table
		// never is: it keys actors by the bare local AID.
		msg.To = aid.Local(msg.To.Name)
		if st := s.sys.Send(msg); st != actorsys.StatusOK {
			s.log.WithField("status", st.String()).Warn("failed to deliver wire frame")
		}
	}
}

// Sender implements actorsys.IOSender for aid.ProtocolTCP addresses: it
// dials (and caches) one connection per remote host:port and writes each
// outgoing message as an encoded frame. ProtocolUDP is acknowledged by
// aid but has no codec here, so Send reports it unknown rather than
// guessing at a framing.
type Sender struct {
	mu    sync.Mutex
	conns map[string]net.Conn
	log   *logrus.Entry
}

// NewSender constructs an empty connection-caching Sender.
func NewSender(log *logrus.Entry) *Sender {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sender{
		conns: make(map[string]net.Conn),
		log:   log.WithField("component", "wire.sender"),
	}
}

// Send dials (or reuses) a connection to msg.To and writes it as a
// framed KMSG. A write failure drops the cached connection so the next
// Send redials rather than retrying the dead socket.
func (s *Sender) Send(msg *aid.Message) (protocolKnown bool, err error) {
	if msg.To.Protocol != aid.ProtocolTCP {
		return false, nil
	}

	addr := net.JoinHostPort(msg.To.Host, strconv.Itoa(int(msg.To.Port)))

	buf, err := Encode(FromMessage(msg))
	if err != nil {
		return true, err
	}

	conn, err := s.connFor(addr)
	if err != nil {
		return true, err
	}
	if _, err := conn.Write(buf); err != nil {
		s.drop(addr)
		return true, err
	}
	return true, nil
}

func (s *Sender) connFor(addr string) (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[addr]; ok {
		return conn, nil
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.conns[addr] = conn
	return conn, nil
}

func (s *Sender) drop(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.conns[addr]; ok {
		conn.Close()
		delete(s.conns, addr)
	}
}

// Close closes every cached outbound connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, conn := range s.conns {
		conn.Close()
		delete(s.conns, addr)
	}
	return nil
}

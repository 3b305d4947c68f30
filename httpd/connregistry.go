package httpd

import (
	"sync"
	"sync/atomic"
)

// connSeq is the process-unique connection id allocator, matching
// network/tcp_connection.go's connectionIDCounter pattern (atomic
// counter, not a UUID — the sequence id only needs to be unique within
// this process's lifetime).
var connSeq int64

func nextConnSeq() int64 {
	return atomic.AddInt64(&connSeq, 1)
}

// Role distinguishes which side of a connection this record describes.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// ConnRecord is the registry's view of one connection: enough to look
// it up by sequence id from a pipeline proxy without the proxy holding
// an owning reference — the proxy references the connection by id, not
// by cyclic pointer.
type ConnRecord struct {
	Seq            int64
	Peer           string
	Role           Role
	State          int32 // atomic ConnState
	MeetMaxClients bool
	ParseFailed    bool

	close func() error
}

func (r *ConnRecord) getState() ConnState  { return ConnState(atomic.LoadInt32(&r.State)) }
func (r *ConnRecord) setState(s ConnState) { atomic.StoreInt32(&r.State, int32(s)) }

// Registry is the global connection table: an ActorMgr-style singleton
// wrapped as an explicit context object rather than a package-level map.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]*ConnRecord
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]*ConnRecord)}
}

// Register allocates a sequence id for a newly accepted or dialed
// connection and stores its record.
func (r *Registry) Register(peer string, role Role, closeFn func() error) *ConnRecord {
	rec := &ConnRecord{
		Seq:   nextConnSeq(),
		Peer:  peer,
		Role:  role,
		State: int32(ConnStateConnecting),
		close: closeFn,
	}
	r.mu.Lock()
	r.conns[rec.Seq] = rec
	r.mu.Unlock()
	return rec
}

// Lookup returns the record for seq, if still registered.
func (r *Registry) Lookup(seq int64) (*ConnRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.conns[seq]
	return rec, ok
}

// Remove drops seq from the table. Called once a connection reaches
// CLOSED.
func (r *Registry) Remove(seq int64) {
	r.mu.Lock()
	delete(r.conns, seq)
	r.mu.Unlock()
}

// Count returns the number of currently registered server-side
// (accepted) connections, used to enforce the server's MaxConnections
// limit; connections dialed by a Client sharing this registry are not
// counted.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.conns {
		if rec.Role == RoleServer {
			n++
		}
	}
	return n
}

package aid

// Kind discriminates the message envelope variant.
type Kind uint8

const (
	KindLocal Kind = iota
	KindWireTCP
	KindWireUDP
	KindHTTP
	KindAsyncThunk
	KindExit
	KindTerminate
)

// String names the kind for diagnostics and the ring-buffer dump.
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "LOCAL"
	case KindWireTCP:
		return "WIRE_TCP"
	case KindWireUDP:
		return "WIRE_UDP"
	case KindHTTP:
		return "HTTP"
	case KindAsyncThunk:
		return "ASYNC_THUNK"
	case KindExit:
		return "EXIT"
	case KindTerminate:
		return "TERMINATE"
	default:
		return "UNKNOWN"
	}
}

// Per-field size caps. The teacher's wire codec hard-codes a single
// 64MiB frame cap; litebus enforces these per-field so an oversize
// single field is diagnosable without having to inspect the whole frame.
const (
	MaxNameLen      = 4 * 1024
	MaxToLen        = 4 * 1024
	MaxFromLen      = 4 * 1024
	MaxBodyLen      = 64 * 1024 * 1024
	MaxSignatureLen = 4 * 1024
)

// ActorThunk is the sole mechanism by which futures and timers reach
// actors: a closure the dispatch loop invokes with the target actor's
// behavior value, on the target actor's own worker. `actor` is
// `interface{}` here to avoid an import cycle between aid and actorsys;
// actorsys passes the behavior as-is, and the closure type-asserts it to
// whatever concrete type it expects.
type ActorThunk func(actor interface{})

// Message is the discriminated envelope tagged by Kind. Exactly one of
// Body or Thunk is meaningful for a given Kind: Thunk for KindAsyncThunk
// and KindHTTP (both reach the actor as a closure rather than a named
// Handler), Body for everything carrying a payload.
type Message struct {
	From      AID
	To        AID
	Name      string
	Body      []byte
	Signature []byte
	Kind      Kind
	Thunk     ActorThunk
}

// Oversize reports whether any length-capped field of this message
// exceeds its limit; true means the message must be dropped and the
// owning connection marked DISCONNECTING.
func (m *Message) Oversize() (field string, ok bool) {
	switch {
	case len(m.Name) > MaxNameLen:
		return "name", true
	case len(m.To.String()) > MaxToLen:
		return "to", true
	case len(m.From.String()) > MaxFromLen:
		return "from", true
	case len(m.Signature) > MaxSignatureLen:
		return "signature", true
	case len(m.Body) > MaxBodyLen:
		return "body", true
	default:
		return "", false
	}
}

// Package aid implements the addressing tuple used to route every actor
// message in litebus, adapted from the Skynet-style Handle addressing
// this runtime's core.Handle used.
package aid

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol identifies the transport a remote AID is reachable over.
type Protocol string

const (
	ProtocolTCP   Protocol = "tcp"
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	ProtocolUDP   Protocol = "udp"
)

// AID is the immutable addressing tuple: actor name plus the transport
// location it is reachable at. A zero-value Host means "local": the actor
// lives in this process and is never handed to the IO manager.
type AID struct {
	Name     string
	Protocol Protocol
	Host     string
	Port     uint16
}

// Local builds a purely local AID: no host/port, resolved by the actor
// runtime's in-process table only.
func Local(name string) AID {
	return AID{Name: name}
}

// Remote builds an AID addressable over the wire.
func Remote(name string, proto Protocol, host string, port uint16) AID {
	return AID{Name: name, Protocol: proto, Host: host, Port: port}
}

// IsLocal reports whether this AID has no transport location attached.
func (a AID) IsLocal() bool {
	return a.Host == ""
}

// OK reports whether a remote AID carries both a parseable host and a
// non-zero port; a local AID (no host) is never OK by this measure —
// callers should check IsLocal first.
func (a AID) OK() bool {
	if a.Host == "" {
		return false
	}
	return a.Port != 0
}

// String renders "name" for a local AID, or "name@proto://host:port" once
// a protocol is known. The bare "name@host:port" form only ever arises
// from Parse; String always emits the explicit-protocol form.
func (a AID) String() string {
	if a.IsLocal() {
		return a.Name
	}
	proto := a.Protocol
	if proto == "" {
		proto = ProtocolTCP
	}
	host := a.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s@%s://%s:%d", a.Name, proto, host, a.Port)
}

// Equal compares the full tuple: AID equality compares every field.
func (a AID) Equal(b AID) bool {
	return a.Name == b.Name && a.Protocol == b.Protocol && a.Host == b.Host && a.Port == b.Port
}

// Less provides lexicographic ordering: name, then protocol, then host,
// then port.
func (a AID) Less(b AID) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Protocol != b.Protocol {
		return a.Protocol < b.Protocol
	}
	if a.Host != b.Host {
		return a.Host < b.Host
	}
	return a.Port < b.Port
}

// Parse decodes the three accepted address forms:
//
//	name                    -> local
//	name@proto://host:port  -> remote, explicit protocol
//	name@host:port          -> remote, protocol defaults to tcp
func Parse(s string) (AID, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		if s == "" {
			return AID{}, fmt.Errorf("aid: empty address")
		}
		return Local(s), nil
	}

	name := s[:at]
	rest := s[at+1:]
	if name == "" {
		return AID{}, fmt.Errorf("aid: empty actor name in %q", s)
	}

	proto := ProtocolTCP
	if idx := strings.Index(rest, "://"); idx >= 0 {
		proto = Protocol(rest[:idx])
		rest = rest[idx+3:]
	}

	host, portStr, err := splitHostPort(rest)
	if err != nil {
		return AID{}, fmt.Errorf("aid: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return AID{}, fmt.Errorf("aid: invalid port in %q: %w", s, err)
	}

	return Remote(name, proto, host, uint16(port)), nil
}

// splitHostPort splits "host:port" honoring bracketed IPv6 literals.
func splitHostPort(s string) (host, port string, err error) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", "", fmt.Errorf("unterminated IPv6 literal in %q", s)
		}
		host = s[1:end]
		rest := s[end+1:]
		if !strings.HasPrefix(rest, ":") {
			return "", "", fmt.Errorf("missing port after IPv6 literal in %q", s)
		}
		return host, rest[1:], nil
	}

	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("missing port in %q", s)
	}
	return s[:idx], s[idx+1:], nil
}

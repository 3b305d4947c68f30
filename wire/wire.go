// Package wire implements the framed actor protocol: one KMSG per
// sendmsg, a fixed five-field big-endian header followed by
// name/to/from/signature/body segments.
//
// Adapted from network/message.go's BinaryMessageCodec: same
// binary.BigEndian field-by-field layout and the same split between an
// Encode that produces one contiguous buffer and a streaming Decoder
// that can be fed arbitrary read chunks, but the header shape and field
// set follow the actor wire format instead of that codec's generic
// envelope (type/flags/sequence/session replaced by the five length
// fields the protocol actually carries).
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/najoast/litebus/aid"
)

// HeaderLen is the five big-endian uint32 length fields that precede
// every frame's segments.
const HeaderLen = 5 * 4

// Frame is the decoded form of one wire KMSG, before it is lifted into
// an aid.Message by the caller (which also needs the Kind tag, not
// present on the wire).
type Frame struct {
	Name      string
	To        string
	From      string
	Signature []byte
	Body      []byte
}

// Encode serializes f as one contiguous buffer: header, then name, to,
// from, signature, body in that order, matching the wire format's fixed
// segment ordering.
func Encode(f Frame) ([]byte, error) {
	nameLen := len(f.Name)
	toLen := len(f.To)
	fromLen := len(f.From)
	sigLen := len(f.Signature)
	bodyLen := len(f.Body)

	if nameLen > aid.MaxNameLen {
		return nil, fmt.Errorf("wire: name exceeds %d bytes", aid.MaxNameLen)
	}
	if toLen > aid.MaxToLen {
		return nil, fmt.Errorf("wire: to exceeds %d bytes", aid.MaxToLen)
	}
	if fromLen > aid.MaxFromLen {
		return nil, fmt.Errorf("wire: from exceeds %d bytes", aid.MaxFromLen)
	}
	if sigLen > aid.MaxSignatureLen {
		return nil, fmt.Errorf("wire: signature exceeds %d bytes", aid.MaxSignatureLen)
	}
	if bodyLen > aid.MaxBodyLen {
		return nil, fmt.Errorf("wire: body exceeds %d bytes", aid.MaxBodyLen)
	}

	buf := make([]byte, HeaderLen+nameLen+toLen+fromLen+sigLen+bodyLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(nameLen))
	binary.BigEndian.PutUint32(buf[4:8], uint32(toLen))
	binary.BigEndian.PutUint32(buf[8:12], uint32(fromLen))
	binary.BigEndian.PutUint32(buf[12:16], uint32(sigLen))
	binary.BigEndian.PutUint32(buf[16:20], uint32(bodyLen))

	off := HeaderLen
	off += copy(buf[off:], f.Name)
	off += copy(buf[off:], f.To)
	off += copy(buf[off:], f.From)
	off += copy(buf[off:], f.Signature)
	copy(buf[off:], f.Body)

	return buf, nil
}

// Decoder reads frames off a streaming connection, one at a time,
// validating each length field against the configured caps before
// reading the segment concatenation — an oversize or short read both
// surface as an error that the caller must treat as "drop and close".
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r for frame-at-a-time reading.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next reads and validates one frame. io.EOF is returned verbatim when
// the peer closes between frames; any other error means the connection
// must be marked DISCONNECTING and closed.
func (d *Decoder) Next() (Frame, error) {
	var header [HeaderLen]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		return Frame{}, err
	}

	nameLen := binary.BigEndian.Uint32(header[0:4])
	toLen := binary.BigEndian.Uint32(header[4:8])
	fromLen := binary.BigEndian.Uint32(header[8:12])
	sigLen := binary.BigEndian.Uint32(header[12:16])
	bodyLen := binary.BigEndian.Uint32(header[16:20])

	if nameLen > aid.MaxNameLen {
		return Frame{}, fmt.Errorf("wire: name length %d exceeds cap", nameLen)
	}
	if toLen > aid.MaxToLen {
		return Frame{}, fmt.Errorf("wire: to length %d exceeds cap", toLen)
	}
	if fromLen > aid.MaxFromLen {
		return Frame{}, fmt.Errorf("wire: from length %d exceeds cap", fromLen)
	}
	if sigLen > aid.MaxSignatureLen {
		return Frame{}, fmt.Errorf("wire: signature length %d exceeds cap", sigLen)
	}
	if bodyLen > aid.MaxBodyLen {
		return Frame{}, fmt.Errorf("wire: body length %d exceeds cap", bodyLen)
	}

	name, err := readExact(d.r, int(nameLen))
	if err != nil {
		return Frame{}, err
	}
	to, err := readExact(d.r, int(toLen))
	if err != nil {
		return Frame{}, err
	}
	from, err := readExact(d.r, int(fromLen))
	if err != nil {
		return Frame{}, err
	}
	sig, err := readExact(d.r, int(sigLen))
	if err != nil {
		return Frame{}, err
	}
	body, err := readExact(d.r, int(bodyLen))
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Name:      string(name),
		To:        string(to),
		From:      string(from),
		Signature: sig,
		Body:      body,
	}, nil
}

func readExact(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ToMessage lifts a decoded Frame into an aid.Message tagged
// KindWireTCP, parsing From/To as addresses.
func ToMessage(f Frame) (*aid.Message, error) {
	to, err := aid.Parse(f.To)
	if err != nil {
		return nil, fmt.Errorf("wire: bad to address: %w", err)
	}
	from, err := aid.Parse(f.From)
	if err != nil {
		return nil, fmt.Errorf("wire: bad from address: %w", err)
	}
	return &aid.Message{
		From:      from,
		To:        to,
		Name:      f.Name,
		Body:      f.Body,
		Signature: f.Signature,
		Kind:      aid.KindWireTCP,
	}, nil
}

// FromMessage lowers an aid.Message into the Frame Encode expects.
func FromMessage(m *aid.Message) Frame {
	return Frame{
		Name:      m.Name,
		To:        m.To.String(),
		From:      m.From.String(),
		Signature: m.Signature,
		Body:      m.Body,
	}
}

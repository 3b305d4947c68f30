// Package sign produces and verifies the Message.Signature field carried
// on every wire frame.
//
// Adapted from crypt/crypt.go's HMAC64 (HMAC-SHA1, keyed, used as-is);
// that package also carries a DH key-exchange and a DES cipher for
// session-login secrecy, neither of which has a home here — there is no
// session-login handshake in this protocol (see DESIGN.md for why
// DHExchange/DHSecret/DESEncode/DESDecode were dropped rather than
// adapted).
package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
)

// Sign returns the HMAC-SHA1 of body keyed by secret, to be carried as
// Message.Signature.
func Sign(secret, body []byte) []byte {
	h := hmac.New(sha1.New, secret)
	h.Write(body)
	return h.Sum(nil)
}

// Verify reports whether sig is the correct HMAC-SHA1 of body under
// secret, using a constant-time comparison.
func Verify(secret, body, sig []byte) bool {
	want := Sign(secret, body)
	return subtle.ConstantTimeCompare(want, sig) == 1
}

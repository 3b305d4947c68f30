package httpd

import (
	"bytes"
	"io"
)

// newBodyReadCloser wraps a byte slice as the io.ReadCloser net/http's
// Request/Response types expect for their Body field.
func newBodyReadCloser(body []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(body))
}

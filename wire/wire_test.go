package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		Name:      "ping",
		To:        "Echo@tcp://127.0.0.1:7000",
		From:      "Client@127.0.0.1:7001",
		Signature: []byte("sig"),
		Body:      []byte("hello"),
	}

	buf, err := Encode(f)
	require.NoError(t, err)

	got, err := NewDecoder(bytes.NewReader(buf)).Next()
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestDecoderReadsMultipleFramesSequentially(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		enc, err := Encode(Frame{Name: "ping", To: "A", From: "B", Body: []byte{byte(i)}})
		require.NoError(t, err)
		buf.Write(enc)
	}

	dec := NewDecoder(&buf)
	for i := 0; i < 3; i++ {
		f, err := dec.Next()
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, f.Body)
	}
	_, err := dec.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestEncodeRejectsOversizeBody(t *testing.T) {
	_, err := Encode(Frame{Name: "n", Body: make([]byte, 64*1024*1024+1)})
	require.Error(t, err)
}

func TestDecoderRejectsOversizeHeaderField(t *testing.T) {
	var header [HeaderLen]byte
	// nameLen field set far beyond the cap.
	header[0], header[1], header[2], header[3] = 0xff, 0xff, 0xff, 0xff
	_, err := NewDecoder(bytes.NewReader(header[:])).Next()
	require.Error(t, err)
}

func TestToMessageAndFromMessageRoundTrip(t *testing.T) {
	f := Frame{Name: "ping", To: "Echo", From: "Client@127.0.0.1:9", Body: []byte("x")}
	msg, err := ToMessage(f)
	require.NoError(t, err)
	require.Equal(t, f.Name, msg.Name)

	back := FromMessage(msg)
	require.Equal(t, f.Name, back.Name)
	require.Equal(t, f.Body, back.Body)
}

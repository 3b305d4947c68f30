package sign

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("shared-secret")
	body := []byte("ping:hello")

	sig := Sign(secret, body)
	require.True(t, Verify(secret, body, sig))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	secret := []byte("shared-secret")
	sig := Sign(secret, []byte("original"))
	require.False(t, Verify(secret, []byte("tampered"), sig))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	sig := Sign([]byte("secret-a"), []byte("body"))
	require.False(t, Verify([]byte("secret-b"), []byte("body"), sig))
}

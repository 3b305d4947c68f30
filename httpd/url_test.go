package httpd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQueryPercentEscape(t *testing.T) {
	flat, _, err := ParseQuery("a=%25")
	require.NoError(t, err)
	require.Equal(t, "%", flat["a"])
}

func TestParseQueryRejectsInvalidEscape(t *testing.T) {
	_, _, err := ParseQuery("a=%XY")
	require.Error(t, err)
}

func TestParseQueryMissingValue(t *testing.T) {
	flat, multi, err := ParseQuery("a&b=1")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "", "b": "1"}, flat)
	require.Equal(t, []string{""}, multi["a"])
}

func TestParseQueryCommaAndAmpersandSeparators(t *testing.T) {
	flat, _, err := ParseQuery("a=1,b=2&c=3")
	require.NoError(t, err)
	require.Equal(t, "1", flat["a"])
	require.Equal(t, "2", flat["b"])
	require.Equal(t, "3", flat["c"])
}

func TestSplitHostPortIPv6Brackets(t *testing.T) {
	host, port, err := splitHostPort("[::1]:9090")
	require.NoError(t, err)
	require.Equal(t, "::1", host)
	require.EqualValues(t, 9090, port)
}

func TestParseURLFull(t *testing.T) {
	u, err := ParseURL("http://example.com:8080/api/v1?x=1")
	require.NoError(t, err)
	require.Equal(t, "http", u.Scheme)
	require.Equal(t, "example.com", u.Host)
	require.EqualValues(t, 8080, u.Port)
	require.Equal(t, "/api/v1", u.Path)
	require.Equal(t, "1", u.Query["x"])
}

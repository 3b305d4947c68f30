package httpd

import (
	"fmt"
	"strconv"
	"strings"
)

// URL is the decoded request target: scheme/host/port/path plus both the
// flattened (last-wins) and multi-valued query forms.
type URL struct {
	Scheme string
	Host   string
	Port   uint16
	Path   string
	Query  map[string]string
	Multi  map[string][]string
}

// decodePercent implements the %XX / '+' decoding rules: a %XX triple
// decodes to the byte whose value is the two hex digits (non-hex or a
// value above 255 is rejected); '+' decodes to space.
func decodePercent(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 >= len(s) {
				return "", fmt.Errorf("httpd: truncated percent-escape in %q", s)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 16)
			if err != nil || v > 255 {
				return "", fmt.Errorf("httpd: invalid percent-escape %q", s[i:i+3])
			}
			b.WriteByte(byte(v))
			i += 2
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// ParseQuery splits a query string on ',' or '&'; each token is "k[=v]",
// a missing '=' yields an empty value. Both the flattened (last wins)
// and multi-valued maps are produced, as both are observable in the
// original protocol's query accessors.
func ParseQuery(raw string) (flat map[string]string, multi map[string][]string, err error) {
	flat = make(map[string]string)
	multi = make(map[string][]string)
	if raw == "" {
		return flat, multi, nil
	}

	tokens := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '&' })
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		var k, v string
		if eq := strings.IndexByte(tok, '='); eq >= 0 {
			k, v = tok[:eq], tok[eq+1:]
		} else {
			k = tok
		}
		k, err = decodePercent(k)
		if err != nil {
			return nil, nil, err
		}
		v, err = decodePercent(v)
		if err != nil {
			return nil, nil, err
		}
		flat[k] = v
		multi[k] = append(multi[k], v)
	}
	return flat, multi, nil
}

// splitHostPort separates "host:port", stripping brackets around an IPv6
// literal host.
func splitHostPort(s string) (host string, port uint16, err error) {
	if s == "" {
		return "", 0, nil
	}
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", 0, fmt.Errorf("httpd: unterminated IPv6 literal in %q", s)
		}
		host = s[1:end]
		rest := s[end+1:]
		rest = strings.TrimPrefix(rest, ":")
		if rest == "" {
			return host, 0, nil
		}
		p, perr := strconv.ParseUint(rest, 10, 16)
		if perr != nil {
			return "", 0, fmt.Errorf("httpd: invalid port in %q: %w", s, perr)
		}
		return host, uint16(p), nil
	}
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return s, 0, nil
	}
	host = s[:idx]
	p, perr := strconv.ParseUint(s[idx+1:], 10, 16)
	if perr != nil {
		return "", 0, fmt.Errorf("httpd: invalid port in %q: %w", s, perr)
	}
	return host, uint16(p), nil
}

// ParseURL decodes scheme://host:port/path?query into a URL, or a bare
// "host:port/path" with scheme defaulted to http.
func ParseURL(raw string) (URL, error) {
	scheme := "http"
	rest := raw
	if idx := strings.Index(raw, "://"); idx >= 0 {
		scheme = raw[:idx]
		rest = raw[idx+3:]
	}

	path := "/"
	query := ""
	hostport := rest
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		hostport = rest[:idx]
		query = rest[idx+1:]
	}
	if idx := strings.IndexByte(hostport, '/'); idx >= 0 {
		path = hostport[idx:]
		hostport = hostport[:idx]
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return URL{}, err
	}

	flat, multi, err := ParseQuery(query)
	if err != nil {
		return URL{}, err
	}

	return URL{Scheme: scheme, Host: host, Port: port, Path: path, Query: flat, Multi: multi}, nil
}

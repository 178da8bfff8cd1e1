// Package clientip resolves the client address used to key rate limits and
// anonymous view records.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the first forwarded hop when present, otherwise the
// peer address with the port stripped.
func FromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

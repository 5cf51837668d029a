package middleware

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of r.RemoteAddr. Proxy headers are not
// consulted here; the router installs chi's RealIP ahead of the logger when
// the deployment trusts them, which rewrites RemoteAddr.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

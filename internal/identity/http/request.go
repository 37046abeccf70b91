package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

// deviceInfo merges transport-level facts (IP, user agent) with whatever the
// client self-reported in the request body.
func deviceInfo(r *http.Request, reported domain.DeviceInfo) domain.DeviceInfo {
	reported.IP = clientIP(r)
	reported.UserAgent = r.UserAgent()
	return reported
}

// clientIP picks the original client address, trusting proxy headers when
// present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

package common

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address of the till that sent r. The first forwarded
// entry that parses as an IP wins, then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, entry := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip, ok := parseIP(entry); ok {
			return ip
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	if ip, ok := parseIP(r.RemoteAddr); ok {
		return ip
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// parseIP accepts a bare address or host:port and drops any IPv6 zone.
func parseIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return "", false
	}
	return addr.WithZone("").Unmap().String(), true
}

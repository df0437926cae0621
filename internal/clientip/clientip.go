// Package clientip derives the best-guess public client address of a request.
package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Unspecified is returned when the request carries no address at all.
const Unspecified = "0.0.0.0"

// Headers consulted, in order of precedence.
const (
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRealIP         = "X-Real-IP"
	HeaderCFConnectingIP = "CF-Connecting-IP"
)

const (
	mappedIPv4Prefix  = "::ffff:"
	localhostHostname = "localhost"
)

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// Resolve returns the first public address found in the forwarding headers,
// falling back to the connection address (even if private) and finally to
// Unspecified. Header values that are not IP addresses, such as the
// "unknown" token some proxies send, are skipped. It never fails.
func Resolve(header http.Header, remoteAddr string) string {
	// Multiple X-Forwarded-For lines are one logical list.
	if xff := strings.Join(header.Values(HeaderForwardedFor), ","); xff != "" {
		for _, entry := range strings.Split(xff, ",") {
			if ip, ok := publicEntry(entry); ok {
				return ip
			}
		}
	}

	for _, name := range []string{HeaderRealIP, HeaderCFConnectingIP} {
		if ip, ok := publicEntry(header.Get(name)); ok {
			return ip
		}
	}

	if host := hostOnly(remoteAddr); host != "" {
		return host
	}

	return Unspecified
}

// FromRequest is Resolve applied to an inbound request.
func FromRequest(r *http.Request) string {
	return Resolve(r.Header, r.RemoteAddr)
}

// IsPrivate reports whether ip is in a private range or is a loopback
// literal. An IPv4-mapped IPv6 prefix is ignored.
func IsPrivate(ip string) bool {
	s := strings.ToLower(strings.TrimSpace(ip))
	s = strings.TrimPrefix(s, mappedIPv4Prefix)

	switch s {
	case localhostHostname, "127.0.0.1", "::1":
		return true
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range privatePrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IsRoutable reports whether ip is a parseable public address worth sending
// to an external lookup service.
func IsRoutable(ip string) bool {
	s := strings.TrimSpace(ip)
	if s == "" || IsPrivate(s) {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimPrefix(strings.ToLower(s), mappedIPv4Prefix))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return !addr.IsLoopback() && !addr.IsUnspecified() && !addr.IsLinkLocalUnicast()
}

// publicEntry validates one forwarded address. An address with a port is
// reduced to the address.
func publicEntry(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || IsPrivate(s) {
		return "", false
	}
	if _, err := netip.ParseAddr(strings.TrimPrefix(strings.ToLower(s), mappedIPv4Prefix)); err == nil {
		return s, true
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return "", false
	}
	ip := ap.Addr().Unmap().String()
	if IsPrivate(ip) {
		return "", false
	}
	return ip, true
}

// hostOnly strips a port from a host:port connection address.
func hostOnly(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return strings.Trim(remoteAddr, "[]")
}

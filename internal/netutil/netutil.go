package netutil

import (
	"net"
	"strings"
)

// localRanges are the source ranges accepted by local-only routes:
// RFC 1918 private space, link-local and loopback.
var localRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"127.0.0.0/8",
}

var localNets []*net.IPNet

func init() {
	for _, cidr := range localRanges {
		_, n, err := net.ParseCIDR(cidr)
		if err == nil {
			localNets = append(localNets, n)
		}
	}
}

// NormalizeIP parses addr and unwraps IPv4-mapped IPv6 addresses
// (::ffff:a.b.c.d) to their dotted-quad form. A port suffix is stripped
// if present. Returns the empty string for unparsable input.
func NormalizeIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}

// IsLocalAddress reports whether addr is an IPv4 address within a
// private, link-local or loopback range. IPv6 loopback counts as local;
// any other IPv6 or unparsable address does not.
func IsLocalAddress(addr string) bool {
	ip := net.ParseIP(NormalizeIP(addr))
	if ip == nil {
		return false
	}
	if ip.To4() == nil {
		return ip.IsLoopback()
	}
	for _, n := range localNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Package brandimport drafts a brand profile from a company website.
//
// Pages are fetched over HTTPS only. Hosts that resolve to loopback, private
// or link-local addresses are refused both before the request and again at
// dial time, so a DNS answer that changes between the two checks cannot
// reach an internal service.
package brandimport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrBlockedURL wraps every URL rejected by ValidateURL.
var ErrBlockedURL = errors.New("url not allowed")

var reservedNets = mustCIDRs(
	"100.64.0.0/10", // carrier-grade NAT
	"fc00::/7",      // IPv6 unique local
	"fe80::/10",     // IPv6 link-local
)

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("brandimport: invalid CIDR " + c + ": " + err.Error())
		}
		out = append(out, n)
	}
	return out
}

// ValidateURL rejects anything that is not a public HTTPS URL.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q, only https is allowed", ErrBlockedURL, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	switch {
	case host == "":
		return fmt.Errorf("%w: missing host", ErrBlockedURL)
	case host == "localhost":
		return fmt.Errorf("%w: localhost", ErrBlockedURL)
	case strings.HasSuffix(host, ".local"), strings.HasSuffix(host, ".internal"), strings.HasSuffix(host, ".localhost"):
		return fmt.Errorf("%w: local domain %s", ErrBlockedURL, host)
	}

	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return fmt.Errorf("%w: private address %s", ErrBlockedURL, ip)
	}
	return nil
}

// IsPrivateIP reports whether ip is loopback, private, link-local,
// unspecified or in one of the reserved ranges. IPv4-mapped IPv6 addresses
// are checked as IPv4.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

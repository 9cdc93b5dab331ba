package nav

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Domain returns the registrable domain (eTLD+1) a URL belongs to, so
// "www.site.example" and "m.site.example" share one stored pattern. Hosts
// the public suffix list cannot resolve (IPs, localhost, single labels)
// fall back to the bare hostname. Returns "" when the URL has no host.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

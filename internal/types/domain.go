package types

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RegisteredDomain returns the eTLD+1 for a hostname. Hosts that have no
// registrable suffix (IPs, localhost, bare TLDs) key on the host itself.
func RegisteredDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// DomainOfURL extracts the registered domain from a raw URL. Returns the
// empty string when the URL does not parse.
func DomainOfURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return RegisteredDomain(u.Hostname())
}

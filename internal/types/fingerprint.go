package types

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Fingerprint returns the stable cache/single-flight key for a request:
// SHA-256 over the canonical URL and the canonical option string. Requests
// that differ only in trace ID or cache bypass share a fingerprint.
func (r *Request) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(CanonicalURL(r.URLString())))
	h.Write([]byte{0})
	h.Write([]byte(r.canonicalOpts()))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalOpts serializes the options that change what a fetch produces.
func (r *Request) canonicalOpts() string {
	var b strings.Builder
	if r.ForceStrategy != "" {
		b.WriteString("force=")
		b.WriteString(string(r.ForceStrategy))
		b.WriteByte(';')
	}
	if r.Hint != "" {
		b.WriteString("hint=")
		b.WriteString(r.Hint)
		b.WriteByte(';')
	}
	return b.String()
}

// CanonicalURL normalizes a URL for fingerprinting:
// - lowercases scheme and host
// - removes the fragment
// - removes default ports (80 for http, 443 for https)
// - sorts query parameters
// - trims the trailing slash (except root)
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// Package identity resolves the stable identity used to key rate limits and
// generation locks: the authenticated account id when present, otherwise a
// best-effort client IP recovered from proxy headers.
package identity

import (
	"net/http"
	"strconv"
	"strings"
)

const unknown = "unknown"

// Resolve returns accountID when non-empty, otherwise the client IP per
// ClientIP.
func Resolve(r *http.Request, accountID string) string {
	if accountID != "" {
		return accountID
	}
	return ClientIP(r)
}

// ClientIP extracts the client address from proxy headers. Preference order:
// first X-Forwarded-For entry, X-Real-IP, then edge-vendor headers. Malformed
// candidates are skipped and the next fallback is tried; with no valid
// candidate the shared "unknown" identity is returned.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if validIP(first) {
			return first
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); validIP(rip) {
		return rip
	}
	for _, h := range []string{"CF-Connecting-IP", "Fly-Client-IP"} {
		if ip := strings.TrimSpace(r.Header.Get(h)); validIP(ip) {
			return ip
		}
	}
	return unknown
}

func validIP(s string) bool {
	if s == "" {
		return false
	}
	if strings.Contains(s, ":") {
		return validIPv6(s)
	}
	return validIPv4(s)
}

func validIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// validIPv6 is a simplified check: hex-ish tokens separated by 2..8 colons.
func validIPv6(s string) bool {
	tokens := strings.Split(s, ":")
	if len(tokens) < 3 || len(tokens) > 9 {
		return false
	}
	for _, tok := range tokens {
		if len(tok) > 4 {
			return false
		}
		for _, c := range tok {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
	}
	return true
}

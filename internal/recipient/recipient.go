// Package recipient extracts a usable email address from free-form
// recipient cells.
package recipient

import "regexp"

// The pattern is deliberately permissive: cells often carry display
// names ("Jane Doe <jane@x.com>") or trailing punctuation, and the
// provider performs the authoritative validation on send.
var addressRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// Extract returns the first address-shaped substring of raw. The
// second result is false when no address is present; such rows are
// skipped with the raw value kept for the run report.
func Extract(raw string) (string, bool) {
	addr := addressRe.FindString(raw)
	if addr == "" {
		return "", false
	}
	return addr, true
}

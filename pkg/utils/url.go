package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashURL creates a SHA256 hash of a URL string.
// This is useful for creating consistent, safe keys for Redis.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// HasAnyPrefix reports whether rawURL starts with one of prefixes, ignoring ASCII case.
// Empty prefixes never match.
func HasAnyPrefix(rawURL string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" || len(rawURL) < len(p) {
			continue
		}
		if strings.EqualFold(rawURL[:len(p)], p) {
			return true
		}
	}
	return false
}

// SplitList splits a comma separated setting into trimmed, non-empty items.
func SplitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

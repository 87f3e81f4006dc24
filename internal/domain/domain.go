// Package domain derives the short key that names a site's artifact.
package domain

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

const fallbackPrefix = "unknown-"

var fallbackSeq atomic.Uint64

// Key returns the first host label of raw with any leading "www." removed,
// e.g. "https://www.example.co.uk/a" -> "example". Input without a parsable
// host gets a fallback key that is unique per call.
func Key(raw string) string {
	if label, ok := hostLabel(raw); ok {
		return label
	}
	return fallback()
}

// SameSite reports whether both URLs have a host and map to the same key.
// Input without a host never matches anything.
func SameSite(a, b string) bool {
	ka, okA := hostLabel(a)
	kb, okB := hostLabel(b)
	return okA && okB && ka == kb
}

func hostLabel(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	label, _, _ := strings.Cut(host, ".")
	return label, label != ""
}

func fallback() string {
	return fmt.Sprintf("%s%d-%d", fallbackPrefix, time.Now().UnixNano(), fallbackSeq.Add(1))
}

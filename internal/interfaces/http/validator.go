package http

import (
	"crypto/subtle"
	"strconv"
)

const (
	DefaultUsageLimit = 50
	MaxUsageLimit     = 1000
)

// ParseUserID accepts positive chat-platform user ids.
func ParseUserID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseLimit reads a page size, falling back to def and capping at max.
func ParseLimit(s string, def, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// SecretMatches compares secrets in constant time. An empty expected secret
// never matches.
func SecretMatches(given, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}

// Package codename validates object code names and generates unique variants.
package codename

import (
	"strconv"
	"strings"
)

const maxUniqueAttempts = 1000

// IsValid reports whether name is a well formed code name: non-empty, only
// letters, digits, underscore, dash and dot, and no leading or trailing dot.
func IsValid(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}

// Unique returns base if unused, otherwise the first free base_1, base_2, ...
// according to the exists probe. Gives up after a bounded number of attempts
// and returns the last candidate.
func Unique(base string, exists func(name string) bool) string {
	if exists == nil || !exists(base) {
		return base
	}
	candidate := base
	for i := 1; i <= maxUniqueAttempts; i++ {
		candidate = base + "_" + strconv.Itoa(i)
		if !exists(candidate) {
			return candidate
		}
	}
	return candidate
}

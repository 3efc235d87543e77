package cache

import (
	"strings"
)

// QueryKey identifies one logical paginated query. Operations with equal
// keys share one entry.
type QueryKey string

// UsersKey is the key of the user listing query.
const UsersKey QueryKey = "users"

// NewQueryKey builds a key from its parts, e.g. NewQueryKey("users", "seed=userapp")
// yields "users:seed=userapp". Empty parts are skipped.
func NewQueryKey(parts ...string) QueryKey {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return QueryKey(strings.Join(kept, ":"))
}

// String returns the key as a string.
func (k QueryKey) String() string {
	return string(k)
}

package tenant

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidName is returned when an organization name cannot be mapped onto
// a storage namespace key.
var ErrInvalidName = errors.New("invalid organization name")

const (
	namespacePrefix = "org_"
	minNameLen      = 3
	maxNameLen      = 100
)

// nameRe restricts names to characters that survive the namespace mapping.
// The mapping lowercases and replaces spaces, so two names that collide after
// normalization map to the same key; the store's unique index on the key
// rejects the collision at creation time.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _-]*$`)

// NamespaceKey maps an organization name to its storage namespace key. The
// mapping is deterministic: lowercase, spaces to underscores, with a fixed
// prefix so tenant namespaces never collide with system tables.
func NamespaceKey(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) < minNameLen || len(name) > maxNameLen {
		return "", ErrInvalidName
	}
	if !nameRe.MatchString(name) {
		return "", ErrInvalidName
	}

	key := strings.ToLower(name)
	key = strings.ReplaceAll(key, " ", "_")
	return namespacePrefix + key, nil
}

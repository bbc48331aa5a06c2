package storage

import (
	"strings"
)

// Driver is the byte-store contract every storage backend implements:
// opaque values addressed by (collection, key). Implementations never
// return errors; a failed operation yields false or the empty string and
// the cause is logged internally. Callers must not store empty values,
// as an empty Retrieve result means absent.
type Driver interface {
	// Store persists data under (collection, key), replacing any
	// previous value.
	Store(collection, key, data string) bool
	// Retrieve returns the stored value, or "" if absent or on failure.
	Retrieve(collection, key string) string
	// Remove deletes the value; false if nothing was removed.
	Remove(collection, key string) bool
	// ListKeys returns the keys of a collection in no particular order.
	ListKeys(collection string) []string
	// Exists reports whether (collection, key) holds a value.
	Exists(collection, key string) bool
}

const maxNameLength = 64

// forbidden characters in collection and key names; '/' keeps names
// from escaping their directory on filesystem-backed drivers.
const forbiddenNameChars = `<>:"|?*/`

// validName checks a collection or key name: length 1-64, no reserved
// characters, must not begin with a dot.
func validName(name string) bool {
	if len(name) == 0 || len(name) > maxNameLength {
		return false
	}
	if name[0] == '.' {
		return false
	}
	return !strings.ContainsAny(name, forbiddenNameChars)
}

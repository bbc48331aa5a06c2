// Package webmodule defines the transport-neutral contract between the
// platform and its pluggable web modules: the request/response pair a
// handler sees, route entries with their authentication requirements,
// and the module lifecycle interface.
package webmodule

import (
	"strings"
	"time"
)

// Method is an HTTP method as seen by the route table.
type Method int

const (
	GET Method = iota
	POST
	PUT
	PATCH
	DELETE
)

var methodNames = map[Method]string{
	GET:    "GET",
	POST:   "POST",
	PUT:    "PUT",
	PATCH:  "PATCH",
	DELETE: "DELETE",
}

// String returns the canonical method name.
func (m Method) String() string {
	return methodNames[m]
}

// ParseMethod normalizes a wire method name; ok is false for methods
// that are not routable.
func ParseMethod(name string) (Method, bool) {
	for m, n := range methodNames {
		if strings.EqualFold(n, name) {
			return m, true
		}
	}
	return GET, false
}

// AuthType is one authentication alternative a route may accept.
type AuthType int

const (
	// AuthNone accepts every request
	AuthNone AuthType = iota
	// AuthSession accepts a valid session cookie
	AuthSession
	// AuthToken accepts a bearer or query API token
	AuthToken
	// AuthPageToken accepts a valid CSRF page token bound to the client IP
	AuthPageToken
	// AuthLocalOnly accepts requests from private, link-local or loopback sources
	AuthLocalOnly
)

// String names the auth type for logging and docs.
func (t AuthType) String() string {
	switch t {
	case AuthSession:
		return "session"
	case AuthToken:
		return "token"
	case AuthPageToken:
		return "page_token"
	case AuthLocalOnly:
		return "local_only"
	default:
		return "none"
	}
}

// AuthRequirements is an ordered flat list of alternatives; any one
// satisfying alternative authenticates the request.
type AuthRequirements []AuthType

// Open reports whether the requirements admit every request.
func (r AuthRequirements) Open() bool {
	if len(r) == 0 {
		return true
	}
	return len(r) == 1 && r[0] == AuthNone
}

// Contains reports whether t is among the alternatives.
func (r AuthRequirements) Contains(t AuthType) bool {
	for _, a := range r {
		if a == t {
			return true
		}
	}
	return false
}

// AuthContext carries the outcome of the auth guard into handlers.
type AuthContext struct {
	IsAuthenticated  bool
	AuthenticatedVia AuthType
	Username         string
	UserID           string
	SessionID        string
	Token            string
	AuthenticatedAt  time.Time
}

package beacon

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"tideland.dev/go/slices"

	"github.com/beacon-platform/beacon/webmodule"
)

// routeEntry is one registered route with its owning module recorded
// for dispatch and documentation.
type routeEntry struct {
	webmodule.Route
	ModuleName     string
	ModuleBasePath string
	Disabled       bool
	// IsOverride protects the entry: later registrations of the same
	// (method, pattern) are dropped instead of replacing it.
	IsOverride bool
}

type routeKey struct {
	Method  webmodule.Method
	Pattern string
}

// RouteRegistry holds every registered route, platform and module
// alike. Patterns are stored fully composed, i.e. with the module base
// path (and /api segment for API routes) already spliced in.
type RouteRegistry struct {
	mu      sync.RWMutex
	entries []*routeEntry
	byKey   map[routeKey]*routeEntry
	// overrides and disabled hold keys whose route has not been
	// registered yet; add applies them on registration.
	overrides map[routeKey]webmodule.Handler
	disabled  map[routeKey]bool
}

func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		byKey:     make(map[routeKey]*routeEntry),
		overrides: make(map[routeKey]webmodule.Handler),
		disabled:  make(map[routeKey]bool),
	}
}

// moduleRegistrar scopes a RouteRegistry to one module's base path.
type moduleRegistrar struct {
	registry   *RouteRegistry
	moduleName string
	basePath   string
}

// Registrar returns a webmodule.RouteRegistrar that mounts routes
// under basePath. An empty basePath yields the platform registrar.
func (r *RouteRegistry) Registrar(moduleName, basePath string) webmodule.RouteRegistrar {
	return &moduleRegistrar{registry: r, moduleName: moduleName, basePath: basePath}
}

func composePattern(basePath, apiSegment, pattern string) string {
	out := "/"
	if basePath != "" {
		out += basePath
	}
	if apiSegment != "" {
		out = strings.TrimSuffix(out, "/") + "/" + apiSegment
	}
	out = strings.TrimSuffix(out, "/") + "/" + strings.TrimPrefix(pattern, "/")
	if out != "/" {
		out = strings.TrimSuffix(out, "/")
	}
	if strings.HasSuffix(pattern, "/") && pattern != "/" {
		out += "/"
	}
	return out
}

func (m *moduleRegistrar) register(route webmodule.Route, apiSegment string) error {
	if route.Handler == nil {
		return errors.Errorf("route %s has no handler", route.Pattern)
	}
	full := composePattern(m.basePath, apiSegment, route.Pattern)
	if err := validatePattern(full); err != nil {
		return err
	}
	route.Pattern = full
	return m.registry.add(
		&routeEntry{
			Route:          route,
			ModuleName:     m.moduleName,
			ModuleBasePath: m.basePath,
		},
	)
}

func (m *moduleRegistrar) RegisterWebRoute(route webmodule.Route) error {
	return m.register(route, "")
}

func (m *moduleRegistrar) RegisterAPIRoute(route webmodule.Route) error {
	return m.register(route, "api")
}

func (m *moduleRegistrar) OverrideRoute(method webmodule.Method, pattern string, h webmodule.Handler) error {
	return m.registry.Override(method, composePattern(m.basePath, "", pattern), h)
}

func (m *moduleRegistrar) DisableRoute(method webmodule.Method, pattern string) error {
	return m.registry.Disable(method, composePattern(m.basePath, "", pattern))
}

// validatePattern rejects patterns the matcher cannot express:
// wildcards anywhere but the last segment and empty parameter names.
func validatePattern(pattern string) error {
	if !strings.HasPrefix(pattern, "/") {
		return errors.Errorf("pattern %q must start with /", pattern)
	}
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	for i, part := range parts {
		if part == "*" && i != len(parts)-1 {
			return errors.Errorf("pattern %q has a non-terminal wildcard", pattern)
		}
		if strings.HasPrefix(part, "{") {
			if !strings.HasSuffix(part, "}") || len(part) <= 2 {
				return errors.Errorf("pattern %q has a malformed parameter segment", pattern)
			}
		}
	}
	return nil
}

func (r *RouteRegistry) add(entry *routeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := routeKey{Method: entry.Method, Pattern: entry.Pattern}
	if existing, ok := r.byKey[key]; ok {
		// Override entries pre-empt later registrations: the attempt
		// is dropped, not an error.
		if existing.IsOverride {
			log.WithField("method", entry.Method.String()).
				WithField("pattern", entry.Pattern).
				Debug("registration dropped, route is overridden")
			return nil
		}
		return errors.Errorf("route %s %s already registered", entry.Method, entry.Pattern)
	}
	if h, ok := r.overrides[key]; ok {
		entry.Handler = h
		entry.IsOverride = true
		delete(r.overrides, key)
	}
	if r.disabled[key] {
		entry.Disabled = true
		delete(r.disabled, key)
	}
	r.byKey[key] = entry
	r.entries = append(r.entries, entry)
	log.WithField("method", entry.Method.String()).
		WithField("pattern", entry.Pattern).
		WithField("module", entry.ModuleName).
		Debug("registered route")
	return nil
}

// Override installs h for (method, pattern) and protects the route:
// later registrations of the same key are dropped. If the route is not
// registered yet, the override is applied when it is.
func (r *RouteRegistry) Override(method webmodule.Method, pattern string, h webmodule.Handler) error {
	if h == nil {
		return errors.New("override handler must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := routeKey{Method: method, Pattern: pattern}
	if entry, ok := r.byKey[key]; ok {
		entry.Handler = h
		entry.IsOverride = true
		return nil
	}
	r.overrides[key] = h
	return nil
}

// Disable removes a route from dispatch without forgetting it; a
// route not registered yet comes up disabled when it is.
func (r *RouteRegistry) Disable(method webmodule.Method, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := routeKey{Method: method, Pattern: pattern}
	if entry, ok := r.byKey[key]; ok {
		entry.Disabled = true
		return nil
	}
	r.disabled[key] = true
	return nil
}

// Entries returns a snapshot of the active routes.
func (r *RouteRegistry) Entries() []routeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]routeEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.Disabled {
			continue
		}
		out = append(out, *entry)
	}
	return out
}

// NavEntries returns the navigation menu entries visible to the
// request's auth context, in registration order.
func (r *RouteRegistry) NavEntries(isAdmin bool) []routeEntry {
	return slices.Filter(
		r.Entries(), func(entry routeEntry) bool {
			if entry.NavTitle == "" || entry.Method != webmodule.GET {
				return false
			}
			if entry.NavAdminOnly && !isAdmin {
				return false
			}
			return true
		},
	)
}

// Fingerprint is a stable digest of the registered route surface; it
// keys the cached OpenAPI document.
func (r *RouteRegistry) Fingerprint() string {
	entries := r.Entries()
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Method.String()+" "+entry.Pattern)
	}
	keys = slices.Sort(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}

// PrintRoutes dumps the route table at debug level, one line per
// route.
func (r *RouteRegistry) PrintRoutes() {
	for _, entry := range r.Entries() {
		log.WithField("method", entry.Method.String()).
			WithField("pattern", entry.Pattern).
			WithField("module", entry.ModuleName).
			WithField("auth", authNames(entry.Auth)).
			Debug("route")
	}
}

func authNames(reqs webmodule.AuthRequirements) string {
	if reqs.Open() {
		return "none"
	}
	names := make([]string, 0, len(reqs))
	for _, a := range reqs {
		names = append(names, a.String())
	}
	return strings.Join(names, "|")
}

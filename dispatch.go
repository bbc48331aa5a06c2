package beacon

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/internal/metrics"
	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
)

// Dispatcher routes incoming requests through matching, the auth
// guard, the handler, and the HTML post-processor.
type Dispatcher struct {
	registry  *RouteRegistry
	guard     *AuthGuard
	processor *TemplateProcessor
	storage   *storage.Manager

	mu       sync.RWMutex
	fallback webmodule.Handler
}

func NewDispatcher(registry *RouteRegistry, auth *storage.AuthStorage, processor *TemplateProcessor, manager *storage.Manager) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		guard:     NewAuthGuard(auth),
		processor: processor,
		storage:   manager,
	}
}

func (d *Dispatcher) storageDriver(name string) storage.Driver {
	return d.storage.Driver(name)
}

// SetFallback installs a handler for unmatched paths; nil restores the
// plain 404. The captive portal uses it to funnel every stray request
// to the provisioning page.
func (d *Dispatcher) SetFallback(h webmodule.Handler) {
	d.mu.Lock()
	d.fallback = h
	d.mu.Unlock()
}

func (d *Dispatcher) getFallback() webmodule.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fallback
}

// resolveStorageBody turns a storage-backed response into an inline or
// streamed body. Small records go inline; larger ones stream.
func (d *Dispatcher) resolveStorageBody(res *webmodule.Response) {
	if res.Mode() != webmodule.BodyStorage {
		return
	}
	ref := res.Storage()
	driver := d.storageDriver(ref.Driver)
	if driver == nil {
		res.SetStatus(404)
		res.SetContent("")
		return
	}
	data := driver.Retrieve(ref.Collection, ref.Key)
	if data == "" {
		res.SetStatus(404)
		res.SetContent("")
		return
	}
	if len(data) > storageStreamThreshold {
		res.SetReader(bytes.NewReader([]byte(data)))
		return
	}
	res.SetContentBytes([]byte(data))
}

const storageStreamThreshold = 16 * 1024

// processableMime reports whether the post-processor applies to a
// response's content type.
func processableMime(mime string) bool {
	return strings.HasPrefix(mime, "text/html") || strings.HasPrefix(mime, "text/plain")
}

// Dispatch runs the full pipeline for one request. The response is
// always populated; the transport adapter just has to send it.
func (d *Dispatcher) Dispatch(req *webmodule.Request, res *webmodule.Response) {
	entry, ok := d.match(req.Method(), req.Path())
	if !ok {
		if d.redirectTrailingSlash(req, res) {
			return
		}
		if fallback := d.getFallback(); fallback != nil {
			fallback(req, res)
			if res.Headers()["Location"] != "" || len(res.Body()) > 0 {
				metrics.CountRequest(req.Method().String(), res.Status())
				return
			}
		}
		d.notFound(req, res)
		metrics.CountRequest(req.Method().String(), res.Status())
		return
	}
	req.SetMatchedRoute(entry.Pattern, entry.ModuleBasePath)

	auth, allowed := d.guard.Check(req, entry.Auth)
	req.SetAuthContext(auth)
	if !allowed {
		d.guard.Deny(req, res, entry.Auth)
		metrics.CountRequest(req.Method().String(), res.Status())
		return
	}

	entry.Handler(req, res)

	d.resolveStorageBody(res)
	if d.processor != nil && processableMime(res.MimeType()) && res.Mode() == webmodule.BodyInline {
		d.processor.Process(req, res)
	}
	metrics.CountRequest(req.Method().String(), res.Status())
}

// match resolves a path against the registry. Exact patterns win over
// parameterized ones, which win over wildcard prefixes; among
// wildcards the longest prefix wins.
func (d *Dispatcher) match(method webmodule.Method, path string) (routeEntry, bool) {
	var (
		paramMatch    *routeEntry
		wildcardMatch *routeEntry
		wildcardLen   int
	)
	for _, entry := range d.registry.Entries() {
		entry := entry
		if entry.Method != method {
			continue
		}
		if entry.Pattern == path {
			return entry, true
		}
		if strings.HasSuffix(entry.Pattern, "/*") {
			prefix := strings.TrimSuffix(entry.Pattern, "*")
			if strings.HasPrefix(path, prefix) && len(prefix) > wildcardLen {
				wildcardMatch = &entry
				wildcardLen = len(prefix)
			}
			continue
		}
		if paramMatch == nil && matchParams(entry.Pattern, path) {
			paramMatch = &entry
		}
	}
	if paramMatch != nil {
		return *paramMatch, true
	}
	if wildcardMatch != nil {
		return *wildcardMatch, true
	}
	return routeEntry{}, false
}

// matchParams matches a parameterized pattern segment by segment.
// Parameter segments only accept numeric values or UUIDs, which keeps
// record lookups from swallowing neighbouring literal routes.
func matchParams(pattern, path string) bool {
	if !strings.Contains(pattern, "{") {
		return false
	}
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	if len(patternParts) != len(pathParts) {
		return false
	}
	for i, part := range patternParts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			if !validParamValue(pathParts[i]) {
				return false
			}
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}
	return true
}

func validParamValue(v string) bool {
	if v == "" {
		return false
	}
	numeric := true
	for _, c := range v {
		if c < '0' || c > '9' {
			numeric = false
			break
		}
	}
	return numeric || isCanonicalUUID(v)
}

// isCanonicalUUID accepts only the 36-char hyphenated form; braced,
// urn-prefixed and bare-hex spellings do not match record routes.
func isCanonicalUUID(v string) bool {
	if len(v) != 36 {
		return false
	}
	for i, c := range v {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !isHexDigit(c) {
				return false
			}
		}
	}
	return true
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// redirectTrailingSlash issues a 301 to the slash-terminated variant
// of a GET path when that variant is actually routable. API paths and
// paths that look like files are left alone.
func (d *Dispatcher) redirectTrailingSlash(req *webmodule.Request, res *webmodule.Response) bool {
	path := req.Path()
	if req.Method() != webmodule.GET ||
		strings.HasSuffix(path, "/") ||
		strings.Contains(path, "/api/") ||
		strings.Contains(lastSegment(path), ".") {
		return false
	}
	if _, ok := d.match(webmodule.GET, path+"/"); !ok {
		return false
	}
	res.Redirect(path+"/", 301)
	return true
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (d *Dispatcher) notFound(req *webmodule.Request, res *webmodule.Response) {
	log.WithField("method", req.Method().String()).
		WithField("path", req.Path()).
		Debug("no route matched")
	res.SetStatus(404)
	if strings.HasPrefix(req.Path(), "/api/") || strings.Contains(req.Path(), "/api/") {
		res.SetJSONContent(map[string]string{"error": "not found"})
		return
	}
	res.SetMimeType("text/html")
	res.SetContent(
		fmt.Sprintf(
			"<!DOCTYPE html><html><head><title>Not Found</title>%s</head>"+
				"<body><h1>404</h1><p>The page %s does not exist.</p>"+
				`<p><a href="/">Back to start</a></p></body></html>`,
			viewportMeta, htmlEscape(req.Path()),
		),
	)
}

const viewportMeta = `<meta name="viewport" content="width=device-width, initial-scale=1">`

func htmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}

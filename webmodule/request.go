package webmodule

import (
	"encoding/json"
	"net/url"
	"strings"
)

// HeaderWhitelist enumerates the request headers the platform keeps;
// everything else is dropped at the transport boundary.
var HeaderWhitelist = []string{
	"Host",
	"User-Agent",
	"Accept",
	"Accept-Language",
	"Accept-Encoding",
	"Content-Type",
	"Content-Length",
	"Authorization",
	"Cookie",
	"X-CSRF-Token",
	"X-Requested-With",
	"Referer",
	"Cache-Control",
	"Connection",
	"Pragma",
}

// Request is the transport-neutral view of one HTTP exchange. It is
// built once by the transport adapter and handed through the dispatch
// pipeline; handlers only read from it.
type Request struct {
	path     string
	method   Method
	body     string
	clientIP string
	headers  map[string]string // canonical lower-case names
	params   map[string]string // query string merged with form fields
	json     map[string]string // flat JSON body fields

	routePattern   string
	moduleBasePath string
	auth           AuthContext
}

// NewRequest assembles a Request. headers must already be reduced to
// the whitelist; rawQuery is the query string without '?'. The body is
// parsed according to Content-Type: urlencoded forms merge into the
// params, flat JSON objects land in the JSON params, anything else is
// kept verbatim.
func NewRequest(method Method, path, rawQuery string, headers map[string]string, body, clientIP string) *Request {
	r := &Request{
		path:     path,
		method:   method,
		body:     body,
		clientIP: clientIP,
		headers:  make(map[string]string, len(headers)),
		params:   make(map[string]string),
		json:     make(map[string]string),
	}
	for name, value := range headers {
		r.headers[strings.ToLower(name)] = value
	}
	if values, err := url.ParseQuery(rawQuery); err == nil {
		for name := range values {
			r.params[name] = values.Get(name)
		}
	}
	r.parseBody()
	return r
}

func (r *Request) parseBody() {
	if r.body == "" {
		return
	}
	contentType := r.GetHeader("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		values, err := url.ParseQuery(r.body)
		if err != nil {
			return
		}
		for name := range values {
			r.params[name] = values.Get(name)
		}
	case strings.HasPrefix(contentType, "application/json"):
		// Flat objects only; nested values are re-serialized.
		var doc map[string]json.RawMessage
		if err := json.Unmarshal([]byte(r.body), &doc); err != nil {
			return
		}
		for name, raw := range doc {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				r.json[name] = s
				continue
			}
			r.json[name] = string(raw)
		}
	}
}

// Path returns the request path without the query string.
func (r *Request) Path() string { return r.path }

// Method returns the normalized request method.
func (r *Request) Method() Method { return r.method }

// Body returns the raw request body.
func (r *Request) Body() string { return r.body }

// ClientIP returns the normalized source address.
func (r *Request) ClientIP() string { return r.clientIP }

// GetHeader returns a whitelisted header value; names are
// case-insensitive.
func (r *Request) GetHeader(name string) string {
	return r.headers[strings.ToLower(name)]
}

// GetParam returns a query-string or form parameter.
func (r *Request) GetParam(name string) string {
	return r.params[name]
}

// GetJSONParam returns a field of a flat JSON body.
func (r *Request) GetJSONParam(name string) string {
	return r.json[name]
}

// GetAllParams returns a copy of the merged query/form parameters.
func (r *Request) GetAllParams() map[string]string {
	out := make(map[string]string, len(r.params))
	for name, value := range r.params {
		out[name] = value
	}
	return out
}

// AuthContext returns the guard's verdict for this request.
func (r *Request) AuthContext() AuthContext { return r.auth }

// SetAuthContext is called by the dispatch pipeline.
func (r *Request) SetAuthContext(auth AuthContext) { r.auth = auth }

// SetMatchedRoute records the matched pattern and owning module base
// path; called by the dispatcher before the handler runs.
func (r *Request) SetMatchedRoute(pattern, moduleBasePath string) {
	r.routePattern = pattern
	r.moduleBasePath = moduleBasePath
}

// MatchedRoute returns the pattern of the dispatched route.
func (r *Request) MatchedRoute() string { return r.routePattern }

// ModuleBasePath returns the base path of the module owning the
// dispatched route; empty for platform routes.
func (r *Request) ModuleBasePath() string { return r.moduleBasePath }

// GetRouteParameter resolves a {name} segment of the matched route
// pattern against the request path.
func (r *Request) GetRouteParameter(name string) string {
	if r.routePattern == "" {
		return ""
	}
	want := "{" + name + "}"
	patternParts := strings.Split(strings.Trim(r.routePattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(r.path, "/"), "/")
	if len(patternParts) != len(pathParts) {
		return ""
	}
	for i, part := range patternParts {
		if part == want {
			return pathParts[i]
		}
	}
	return ""
}

package webmodule

// Handler processes one dispatched request.
type Handler func(req *Request, res *Response)

// Docs carries the OpenAPI description of a route. All fields are
// optional; routes without docs are still listed in the generated
// document with a bare operation.
type Docs struct {
	Summary     string            `json:"summary,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Responses   map[int]string    `json:"responses,omitempty"`
}

// Route binds a path pattern to a handler. Patterns are matched
// exactly, with `{name}` segments for parameters and a trailing `/*`
// for prefix wildcards.
type Route struct {
	Method  Method
	Pattern string
	Handler Handler
	Auth    AuthRequirements
	Docs    *Docs

	// NavTitle, when set, lists the route in the navigation menu.
	NavTitle string
	// NavAdminOnly hides the menu entry from non-admin users.
	NavAdminOnly bool
}

// RouteRegistrar is handed to modules during registration. Web routes
// are mounted under the module base path; API routes additionally get
// the /api segment spliced in after the base path.
type RouteRegistrar interface {
	RegisterWebRoute(r Route) error
	RegisterAPIRoute(r Route) error
	OverrideRoute(method Method, pattern string, h Handler) error
	DisableRoute(method Method, pattern string) error
}

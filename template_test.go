package beacon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
)

type templateFixture struct {
	processor *TemplateProcessor
	registry  *RouteRegistry
	auth      *storage.AuthStorage
	userID    string
	https     bool
}

func newTemplateFixture(t *testing.T) *templateFixture {
	t.Helper()
	manager, err := storage.NewManager(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	auth, err := storage.NewAuthStorage(manager, "", storage.AuthConfig{})
	require.NoError(t, err)
	require.NoError(t, auth.Initialize())
	userID, err := auth.CreateUser("alice", "secret", false)
	require.NoError(t, err)
	registry := NewRouteRegistry()
	f := &templateFixture{
		registry: registry,
		auth:     auth,
		userID:   userID,
	}
	f.processor = NewTemplateProcessor(
		registry, auth, func() string { return "Beacon Lab" }, func() bool { return f.https },
	)
	return f
}

func (f *templateFixture) process(t *testing.T, body string, req *webmodule.Request) *webmodule.Response {
	t.Helper()
	res := webmodule.NewResponse()
	res.SetContent(body)
	f.processor.Process(req, res)
	return res
}

func htmlRequest(path string) *webmodule.Request {
	return webmodule.NewRequest(webmodule.GET, path, "", nil, "", "203.0.113.5")
}

func TestProcessDeviceNameMarker(t *testing.T) {
	f := newTemplateFixture(t)
	res := f.process(t, "<html><head></head><body><h1>{{DEVICE_NAME}}</h1></body></html>", htmlRequest("/"))
	assert.Contains(t, string(res.Body()), "<h1>Beacon Lab</h1>")
}

func TestProcessUnknownMarkerPreserved(t *testing.T) {
	f := newTemplateFixture(t)
	res := f.process(t, "<body>{{ clientSideThing }} and {{DEVICE_NAME}}</body>", htmlRequest("/"))
	body := string(res.Body())
	assert.Contains(t, body, "{{ clientSideThing }}")
	assert.Contains(t, body, "Beacon Lab")
}

func TestProcessCSRFTokenSingleTokenPerResponse(t *testing.T) {
	f := newTemplateFixture(t)
	res := f.process(t, "<body>a={{csrfToken}} b={{csrfToken}}</body>", htmlRequest("/"))
	body := string(res.Body())

	first := strings.Index(body, "csrf_")
	require.GreaterOrEqual(t, first, 0)
	token := body[first:]
	token = token[:strings.IndexAny(token, " <")]
	assert.Equal(t, 2, strings.Count(body, token))

	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.Contains(t, cookies[0], PageTokenCookieName+"="+token)

	// The issued token validates for the requesting address only.
	assert.True(t, f.auth.ValidatePageToken(token, "203.0.113.5"))
}

func TestProcessNavMenu(t *testing.T) {
	f := newTemplateFixture(t)
	reg := f.registry.Registrar("", "")
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method: webmodule.GET, Pattern: "/status", Handler: noopHandler, NavTitle: "Status",
	}))
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method: webmodule.GET, Pattern: "/users", Handler: noopHandler, NavTitle: "Users", NavAdminOnly: true,
	}))

	// Anonymous: no admin entries, no logout.
	res := f.process(t, "<body>{{NAV_MENU}}</body>", htmlRequest("/status"))
	body := string(res.Body())
	assert.Contains(t, body, `<li class="active"><a href="/status">Status</a></li>`)
	assert.NotContains(t, body, "/users")
	assert.NotContains(t, body, "Logout")

	// Authenticated non-admin: logout appears, admin pages stay hidden.
	req := htmlRequest("/status")
	req.SetAuthContext(webmodule.AuthContext{
		IsAuthenticated: true,
		Username:        "alice",
		UserID:          f.userID,
	})
	body = string(f.process(t, "<body>{{NAV_MENU}}</body>", req).Body())
	assert.Contains(t, body, "Logout")
	assert.NotContains(t, body, "/users")

	// Admin sees everything.
	admin := f.auth.FindUserByUsername("admin")
	req = htmlRequest("/status")
	req.SetAuthContext(webmodule.AuthContext{
		IsAuthenticated: true,
		Username:        "admin",
		UserID:          admin.ID,
	})
	body = string(f.process(t, "<body>{{NAV_MENU}}</body>", req).Body())
	assert.Contains(t, body, "/users")
}

func TestProcessSecurityNotice(t *testing.T) {
	f := newTemplateFixture(t)

	body := string(f.process(t, "<body>{{SECURITY_NOTICE}}</body>", htmlRequest("/")).Body())
	assert.Contains(t, body, "security-notice-warning")
	assert.Contains(t, body, "not encrypted")

	f.https = true
	body = string(f.process(t, "<body>{{SECURITY_NOTICE}}</body>", htmlRequest("/")).Body())
	assert.Contains(t, body, "security-notice-secure")
	assert.NotContains(t, body, "security-notice-warning")
}

func TestProcessRedirectURLMarker(t *testing.T) {
	f := newTemplateFixture(t)

	body := string(f.process(t, `<body><input value="{{redirectUrl}}"></body>`, htmlRequest("/login")).Body())
	assert.Contains(t, body, `value="/"`)

	req := webmodule.NewRequest(webmodule.GET, "/login", "redirect=%2Fstatus", nil, "", "203.0.113.5")
	body = string(f.process(t, `<body><input value="{{redirectUrl}}"></body>`, req).Body())
	assert.Contains(t, body, `value="/status"`)
}

func TestProcessHeadAndBodyInjection(t *testing.T) {
	f := newTemplateFixture(t)

	res := f.process(t, "<html><head><title>x</title></head><body><p>hi</p></body></html>", htmlRequest("/"))
	body := string(res.Body())
	assert.Contains(t, body, `name="viewport"`)
	assert.Contains(t, body, `<meta name="csrf-token" content="csrf_`)
	assert.Contains(t, body, `<body data-device-name="Beacon Lab" data-authenticated="false">`)

	// The meta token is the same one set in the page token cookie.
	start := strings.Index(body, `content="csrf_`) + len(`content="`)
	token := body[start:]
	token = token[:strings.Index(token, `"`)]
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.Contains(t, cookies[0], PageTokenCookieName+"="+token)

	// Re-processing an already processed body changes nothing.
	again := webmodule.NewResponse()
	again.SetContent(body)
	f.processor.Process(htmlRequest("/"), again)
	assert.Equal(t, body, string(again.Body()))
	assert.Empty(t, again.Cookies())
}

func TestProcessModulePrefixAndUsername(t *testing.T) {
	f := newTemplateFixture(t)
	req := webmodule.NewRequest(webmodule.GET, "/blog/posts", "", nil, "", "203.0.113.5")
	req.SetMatchedRoute("/blog/posts", "blog")
	req.SetAuthContext(webmodule.AuthContext{IsAuthenticated: true, Username: "alice"})

	res := f.process(t, `<body><a href="{{MODULE_PREFIX}}/api/posts">{{username}}</a></body>`, req)
	body := string(res.Body())
	assert.Contains(t, body, `href="/blog/api/posts"`)
	assert.Contains(t, body, ">alice<")
	assert.Contains(t, body, `data-module-prefix="blog"`)
}

func TestProcessSkipHeader(t *testing.T) {
	f := newTemplateFixture(t)
	res := webmodule.NewResponse()
	res.SetContent("<body>{{DEVICE_NAME}}</body>")
	res.SetHeader(webmodule.SkipTemplateHeader, "1")
	f.processor.Process(htmlRequest("/"), res)

	assert.Contains(t, string(res.Body()), "{{DEVICE_NAME}}")
	assert.Empty(t, res.Headers()[webmodule.SkipTemplateHeader])
}

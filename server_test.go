package beacon

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
)

func serverFixture(t *testing.T) (*Server, *RouteRegistry, *storage.AuthStorage) {
	t.Helper()
	manager, err := storage.NewManager(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	auth, err := storage.NewAuthStorage(manager, "", storage.AuthConfig{})
	require.NoError(t, err)
	require.NoError(t, auth.Initialize())
	registry := NewRouteRegistry()
	dispatcher := NewDispatcher(registry, auth, nil, manager)
	return NewServer(ServerConf{}, dispatcher), registry, auth
}

func TestServerServesRoute(t *testing.T) {
	server, registry, _ := serverFixture(t)
	reg := registry.Registrar("", "")
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/hello",
		Handler: func(req *webmodule.Request, res *webmodule.Response) {
			res.SetMimeType("text/plain")
			res.SetContent("hello " + req.GetParam("name"))
		},
	}))

	resp, err := server.App().Test(httptest.NewRequest("GET", "/hello?name=world", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestServerFormAndJSONBodies(t *testing.T) {
	server, registry, _ := serverFixture(t)
	reg := registry.Registrar("", "")
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.POST,
		Pattern: "/echo",
		Handler: func(req *webmodule.Request, res *webmodule.Response) {
			res.SetMimeType("text/plain")
			if v := req.GetParam("key"); v != "" {
				res.SetContent("form:" + v)
				return
			}
			res.SetContent("json:" + req.GetJSONParam("key"))
		},
	}))

	formReq := httptest.NewRequest("POST", "/echo", strings.NewReader("key=fromform"))
	formReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := server.App().Test(formReq)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "form:fromform", string(body))

	jsonReq := httptest.NewRequest("POST", "/echo", strings.NewReader(`{"key":"fromjson"}`))
	jsonReq.Header.Set("Content-Type", "application/json")
	resp, err = server.App().Test(jsonReq)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "json:fromjson", string(body))
}

func TestServerSendsCookies(t *testing.T) {
	server, registry, _ := serverFixture(t)
	reg := registry.Registrar("", "")
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/cookies",
		Handler: func(_ *webmodule.Request, res *webmodule.Response) {
			res.AddCookie("session=abc; Path=/")
			res.AddCookie("page_token=def; Path=/")
			res.SetContent("ok")
		},
	}))

	resp, err := server.App().Test(httptest.NewRequest("GET", "/cookies", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	cookies := resp.Header.Values("Set-Cookie")
	assert.Len(t, cookies, 2)
}

func TestServerNotFound(t *testing.T) {
	server, _, _ := serverFixture(t)

	resp, err := server.App().Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = server.App().Test(httptest.NewRequest("GET", "/api/missing", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestServerTLSRedirect(t *testing.T) {
	app := newRedirectApp()

	resp, err := app.Test(httptest.NewRequest("GET", "http://device.local/wifi?x=1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 301, resp.StatusCode)
	assert.Equal(t, "https://device.local/wifi?x=1", resp.Header.Get("Location"))
}

func TestServerGuardedRouteOverHTTP(t *testing.T) {
	server, registry, auth := serverFixture(t)
	reg := registry.Registrar("", "")
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/account",
		Handler: func(req *webmodule.Request, res *webmodule.Response) {
			res.SetContent("hello " + req.AuthContext().Username)
		},
		Auth: webmodule.AuthRequirements{webmodule.AuthSession},
	}))

	resp, err := server.App().Test(httptest.NewRequest("GET", "/account", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 302, resp.StatusCode)

	admin := auth.FindUserByUsername("admin")
	sessionID := auth.CreateSession(admin.ID)
	req := httptest.NewRequest("GET", "/account", nil)
	req.Header.Set("Cookie", "session="+sessionID)
	resp, err = server.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "hello admin", string(body))
}

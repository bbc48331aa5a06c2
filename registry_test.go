package beacon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-platform/beacon/webmodule"
)

func noopHandler(_ *webmodule.Request, _ *webmodule.Response) {}

func TestComposePattern(t *testing.T) {
	assert.Equal(t, "/", composePattern("", "", "/"))
	assert.Equal(t, "/status", composePattern("", "", "/status"))
	assert.Equal(t, "/api/login", composePattern("", "api", "/login"))
	assert.Equal(t, "/blog", composePattern("blog", "", "/"))
	assert.Equal(t, "/blog/posts", composePattern("blog", "", "/posts"))
	assert.Equal(t, "/blog/api/posts/{id}", composePattern("blog", "api", "/posts/{id}"))
	assert.Equal(t, "/blog/files/*", composePattern("blog", "", "/files/*"))
}

func TestRegisterComposesAndRejectsDuplicates(t *testing.T) {
	registry := NewRouteRegistry()
	reg := registry.Registrar("blog", "blog")

	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/posts",
		Handler: noopHandler,
	}))
	require.NoError(t, reg.RegisterAPIRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/posts",
		Handler: noopHandler,
	}))

	entries := registry.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/blog/posts", entries[0].Pattern)
	assert.Equal(t, "/blog/api/posts", entries[1].Pattern)
	assert.Equal(t, "blog", entries[0].ModuleName)

	err := reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/posts",
		Handler: noopHandler,
	})
	assert.Error(t, err)

	// Same pattern, different method, is fine.
	assert.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.POST,
		Pattern: "/posts",
		Handler: noopHandler,
	}))
}

func TestRegisterRejectsBadRoutes(t *testing.T) {
	registry := NewRouteRegistry()
	reg := registry.Registrar("", "")

	assert.Error(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/nohandler",
	}))
	assert.Error(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/files/*/deep",
		Handler: noopHandler,
	}))
	assert.Error(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/items/{}",
		Handler: noopHandler,
	}))
}

func TestOverrideAndDisable(t *testing.T) {
	registry := NewRouteRegistry()
	reg := registry.Registrar("", "")

	called := ""
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/page",
		Handler: func(_ *webmodule.Request, _ *webmodule.Response) { called = "original" },
	}))

	require.NoError(t, reg.OverrideRoute(webmodule.GET, "/page",
		func(_ *webmodule.Request, _ *webmodule.Response) { called = "override" }))
	entries := registry.Entries()
	require.Len(t, entries, 1)
	entries[0].Handler(nil, nil)
	assert.Equal(t, "override", called)

	// An overridden route pre-empts later registrations: the attempt is
	// dropped without error and the override handler stays in place.
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/page",
		Handler: func(_ *webmodule.Request, _ *webmodule.Response) { called = "late" },
	}))
	entries = registry.Entries()
	require.Len(t, entries, 1)
	entries[0].Handler(nil, nil)
	assert.Equal(t, "override", called)

	require.NoError(t, reg.DisableRoute(webmodule.GET, "/page"))
	assert.Empty(t, registry.Entries())
}

func TestOverrideBeforeRegistration(t *testing.T) {
	registry := NewRouteRegistry()
	reg := registry.Registrar("", "")

	called := ""
	require.NoError(t, reg.OverrideRoute(webmodule.GET, "/early",
		func(_ *webmodule.Request, _ *webmodule.Response) { called = "override" }))

	// The pending override is applied at registration time.
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/early",
		Handler: func(_ *webmodule.Request, _ *webmodule.Response) { called = "original" },
	}))
	entries := registry.Entries()
	require.Len(t, entries, 1)
	entries[0].Handler(nil, nil)
	assert.Equal(t, "override", called)
}

func TestDisableBeforeRegistration(t *testing.T) {
	registry := NewRouteRegistry()
	reg := registry.Registrar("", "")

	require.NoError(t, reg.DisableRoute(webmodule.GET, "/future"))

	// The route comes up disabled when it is finally registered.
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/future",
		Handler: noopHandler,
	}))
	assert.Empty(t, registry.Entries())

	// Unrelated routes are unaffected.
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/other",
		Handler: noopHandler,
	}))
	assert.Len(t, registry.Entries(), 1)
}

func TestNavEntries(t *testing.T) {
	registry := NewRouteRegistry()
	reg := registry.Registrar("", "")

	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:   webmodule.GET,
		Pattern:  "/status",
		Handler:  noopHandler,
		NavTitle: "Status",
	}))
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:       webmodule.GET,
		Pattern:      "/users",
		Handler:      noopHandler,
		NavTitle:     "Users",
		NavAdminOnly: true,
	}))
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:  webmodule.GET,
		Pattern: "/hidden",
		Handler: noopHandler,
	}))
	require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
		Method:   webmodule.POST,
		Pattern:  "/status",
		Handler:  noopHandler,
		NavTitle: "NotAPage",
	}))

	titles := func(entries []routeEntry) (out []string) {
		for _, e := range entries {
			out = append(out, e.NavTitle)
		}
		return
	}
	assert.Equal(t, []string{"Status"}, titles(registry.NavEntries(false)))
	assert.Equal(t, []string{"Status", "Users"}, titles(registry.NavEntries(true)))
}

func TestFingerprint(t *testing.T) {
	build := func(patterns ...string) *RouteRegistry {
		registry := NewRouteRegistry()
		reg := registry.Registrar("", "")
		for _, p := range patterns {
			require.NoError(t, reg.RegisterWebRoute(webmodule.Route{
				Method:  webmodule.GET,
				Pattern: p,
				Handler: noopHandler,
			}))
		}
		return registry
	}

	a := build("/a", "/b")
	b := build("/b", "/a")
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "fingerprint must not depend on registration order")

	c := build("/a", "/b", "/c")
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	require.NoError(t, c.Disable(webmodule.GET, "/c"))
	assert.Equal(t, a.Fingerprint(), c.Fingerprint(), "disabled routes are not part of the surface")
}

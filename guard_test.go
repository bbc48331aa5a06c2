package beacon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
)

const guardTestIP = "203.0.113.5"

type guardFixture struct {
	guard  *AuthGuard
	auth   *storage.AuthStorage
	userID string
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	manager, err := storage.NewManager(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	auth, err := storage.NewAuthStorage(manager, "", storage.AuthConfig{})
	require.NoError(t, err)
	require.NoError(t, auth.Initialize())
	userID, err := auth.CreateUser("alice", "secret", false)
	require.NoError(t, err)
	return &guardFixture{guard: NewAuthGuard(auth), auth: auth, userID: userID}
}

func guardRequest(headers map[string]string) *webmodule.Request {
	return webmodule.NewRequest(webmodule.GET, "/account", "", headers, "", guardTestIP)
}

func TestGuardSession(t *testing.T) {
	f := newGuardFixture(t)
	sessionID := f.auth.CreateSession(f.userID)
	require.NotEmpty(t, sessionID)

	reqs := webmodule.AuthRequirements{webmodule.AuthSession}

	ctx, ok := f.guard.Check(guardRequest(map[string]string{
		"Cookie": "theme=dark; session=" + sessionID,
	}), reqs)
	require.True(t, ok)
	assert.True(t, ctx.IsAuthenticated)
	assert.Equal(t, webmodule.AuthSession, ctx.AuthenticatedVia)
	assert.Equal(t, "alice", ctx.Username)
	assert.Equal(t, f.userID, ctx.UserID)
	assert.Equal(t, sessionID, ctx.SessionID)

	_, ok = f.guard.Check(guardRequest(map[string]string{
		"Cookie": "session=sess_bogus",
	}), reqs)
	assert.False(t, ok)

	_, ok = f.guard.Check(guardRequest(nil), reqs)
	assert.False(t, ok)
}

func TestGuardToken(t *testing.T) {
	f := newGuardFixture(t)
	token, err := f.auth.CreateAPIToken(f.userID, "ci", 0)
	require.NoError(t, err)

	reqs := webmodule.AuthRequirements{webmodule.AuthToken}

	ctx, ok := f.guard.Check(guardRequest(map[string]string{
		"Authorization": "Bearer " + token.Token,
	}), reqs)
	require.True(t, ok)
	assert.Equal(t, webmodule.AuthToken, ctx.AuthenticatedVia)
	assert.Equal(t, "alice", ctx.Username)
	assert.Equal(t, token.Token, ctx.Token)

	_, ok = f.guard.Check(guardRequest(map[string]string{
		"Authorization": "Bearer tok_bogus",
	}), reqs)
	assert.False(t, ok)

	// The token is also accepted from the access_token query parameter.
	queryReq := webmodule.NewRequest(webmodule.GET, "/api/status", "access_token="+token.Token, nil, "", guardTestIP)
	ctx, ok = f.guard.Check(queryReq, reqs)
	require.True(t, ok)
	assert.Equal(t, webmodule.AuthToken, ctx.AuthenticatedVia)
	assert.Equal(t, "alice", ctx.Username)

	queryReq = webmodule.NewRequest(webmodule.GET, "/api/status", "access_token=tok_bogus", nil, "", guardTestIP)
	_, ok = f.guard.Check(queryReq, reqs)
	assert.False(t, ok)
}

func TestGuardPageToken(t *testing.T) {
	f := newGuardFixture(t)
	token := f.auth.CreatePageToken(guardTestIP)
	require.NotEmpty(t, token)

	reqs := webmodule.AuthRequirements{webmodule.AuthPageToken}

	ctx, ok := f.guard.Check(guardRequest(map[string]string{
		CSRFHeaderName: token,
	}), reqs)
	require.True(t, ok)
	assert.Equal(t, webmodule.AuthPageToken, ctx.AuthenticatedVia)

	// The token is bound to the issuing address.
	other := webmodule.NewRequest(webmodule.GET, "/account", "", map[string]string{
		CSRFHeaderName: token,
	}, "", "198.51.100.9")
	_, ok = f.guard.Check(other, reqs)
	assert.False(t, ok)

	// The token is also accepted from the _csrf form field.
	formReq := webmodule.NewRequest(
		webmodule.POST, "/api/wifi", "", map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		}, "ssid=Home&"+CSRFFieldName+"="+token, guardTestIP,
	)
	_, ok = f.guard.Check(formReq, reqs)
	assert.True(t, ok)
}

func TestGuardPageTokenKeepsSessionIdentity(t *testing.T) {
	f := newGuardFixture(t)
	sessionID := f.auth.CreateSession(f.userID)
	token := f.auth.CreatePageToken(guardTestIP)

	ctx, ok := f.guard.Check(guardRequest(map[string]string{
		CSRFHeaderName: token,
		"Cookie":       "session=" + sessionID,
	}), webmodule.AuthRequirements{webmodule.AuthPageToken})
	require.True(t, ok)
	assert.Equal(t, webmodule.AuthPageToken, ctx.AuthenticatedVia)
	assert.Equal(t, "alice", ctx.Username)
}

func TestGuardLocalOnly(t *testing.T) {
	f := newGuardFixture(t)
	reqs := webmodule.AuthRequirements{webmodule.AuthLocalOnly}

	local := webmodule.NewRequest(webmodule.GET, "/metrics", "", nil, "", "127.0.0.1")
	_, ok := f.guard.Check(local, reqs)
	assert.True(t, ok)

	remote := webmodule.NewRequest(webmodule.GET, "/metrics", "", nil, "", guardTestIP)
	_, ok = f.guard.Check(remote, reqs)
	assert.False(t, ok)
}

func TestGuardDisjunctionOrder(t *testing.T) {
	f := newGuardFixture(t)
	sessionID := f.auth.CreateSession(f.userID)
	token, err := f.auth.CreateAPIToken(f.userID, "ci", 0)
	require.NoError(t, err)

	reqs := webmodule.AuthRequirements{webmodule.AuthSession, webmodule.AuthToken}

	// Both presented: the first listed mechanism wins.
	ctx, ok := f.guard.Check(guardRequest(map[string]string{
		"Cookie":        "session=" + sessionID,
		"Authorization": "Bearer " + token.Token,
	}), reqs)
	require.True(t, ok)
	assert.Equal(t, webmodule.AuthSession, ctx.AuthenticatedVia)

	// Only the second mechanism presented still passes.
	ctx, ok = f.guard.Check(guardRequest(map[string]string{
		"Authorization": "Bearer " + token.Token,
	}), reqs)
	require.True(t, ok)
	assert.Equal(t, webmodule.AuthToken, ctx.AuthenticatedVia)
}

func TestGuardOpenRouteResolvesSession(t *testing.T) {
	f := newGuardFixture(t)
	sessionID := f.auth.CreateSession(f.userID)

	ctx, ok := f.guard.Check(guardRequest(map[string]string{
		"Cookie": "session=" + sessionID,
	}), webmodule.AuthRequirements{})
	require.True(t, ok)
	assert.Equal(t, "alice", ctx.Username)

	ctx, ok = f.guard.Check(guardRequest(nil), webmodule.AuthRequirements{})
	require.True(t, ok)
	assert.False(t, ctx.IsAuthenticated)
}

func TestGuardDeny(t *testing.T) {
	f := newGuardFixture(t)

	req := webmodule.NewRequest(webmodule.GET, "/api/status", "", nil, "", guardTestIP)
	res := webmodule.NewResponse()
	f.guard.Deny(req, res, webmodule.AuthRequirements{webmodule.AuthToken})
	assert.Equal(t, 401, res.Status())
	assert.Contains(t, res.MimeType(), "application/json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body(), &body))
	assert.Equal(t, "unauthorized", body["error"])
	assert.Equal(t, "Authentication required", body["message"])
	assert.Equal(t, float64(401), body["code"])

	req = webmodule.NewRequest(webmodule.GET, "/account", "", nil, "", guardTestIP)
	res = webmodule.NewResponse()
	f.guard.Deny(req, res, webmodule.AuthRequirements{webmodule.AuthSession})
	assert.Equal(t, 302, res.Status())
	assert.Equal(t, "/login?redirect=%2Faccount", res.Headers()["Location"])

	req = webmodule.NewRequest(webmodule.GET, "/metrics", "", nil, "", guardTestIP)
	res = webmodule.NewResponse()
	f.guard.Deny(req, res, webmodule.AuthRequirements{webmodule.AuthLocalOnly})
	assert.Equal(t, 403, res.Status())
	assert.Contains(t, res.MimeType(), "application/json")
	body = nil
	require.NoError(t, json.Unmarshal(res.Body(), &body))
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, float64(403), body["code"])
}

func TestCookieValue(t *testing.T) {
	assert.Equal(t, "abc", cookieValue("session=abc", "session"))
	assert.Equal(t, "abc", cookieValue("theme=dark; session=abc; lang=en", "session"))
	assert.Equal(t, "", cookieValue("sessionx=abc", "session"))
	assert.Equal(t, "", cookieValue("", "session"))
}

package beacon

import (
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/internal/metrics"
	"github.com/beacon-platform/beacon/internal/netutil"
	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
)

// SessionCookieName is the cookie carrying the session id.
const SessionCookieName = "session"

// PageTokenCookieName is the cookie carrying the CSRF page token.
const PageTokenCookieName = "page_token"

// CSRFHeaderName is the header clients send the page token back in.
const CSRFHeaderName = "X-CSRF-Token"

// CSRFFieldName is the form/JSON field carrying the page token when no
// header is set.
const CSRFFieldName = "_csrf"

// AuthGuard evaluates a route's auth requirements against a request.
// Requirements form an ordered disjunction: the first satisfied
// mechanism grants access and determines the auth context.
type AuthGuard struct {
	auth *storage.AuthStorage
}

func NewAuthGuard(auth *storage.AuthStorage) *AuthGuard {
	return &AuthGuard{auth: auth}
}

// Check evaluates reqs for req. The session is resolved even for open
// routes so pages can greet a logged-in user.
func (g *AuthGuard) Check(req *webmodule.Request, reqs webmodule.AuthRequirements) (webmodule.AuthContext, bool) {
	if reqs.Open() {
		ctx, _ := g.checkSession(req)
		return ctx, true
	}
	var last webmodule.AuthContext
	for _, requirement := range reqs {
		var (
			ctx webmodule.AuthContext
			ok  bool
		)
		switch requirement {
		case webmodule.AuthNone:
			ctx, ok = last, true
		case webmodule.AuthSession:
			ctx, ok = g.checkSession(req)
		case webmodule.AuthToken:
			ctx, ok = g.checkToken(req)
		case webmodule.AuthPageToken:
			ctx, ok = g.checkPageToken(req)
		case webmodule.AuthLocalOnly:
			ctx, ok = g.checkLocal(req)
		}
		if ok {
			return ctx, true
		}
		if ctx.IsAuthenticated {
			last = ctx
		}
	}
	return last, false
}

// Deny writes the failure response: JSON 401 for API routes, a login
// redirect when a session could have satisfied the route, a JSON 403
// otherwise.
func (g *AuthGuard) Deny(req *webmodule.Request, res *webmodule.Response, reqs webmodule.AuthRequirements) {
	if isAPIPath(req.Path()) {
		res.SetStatus(401)
		res.SetJSONContent(
			map[string]any{
				"error":   "unauthorized",
				"message": "Authentication required",
				"code":    401,
			},
		)
		return
	}
	if reqs.Contains(webmodule.AuthSession) {
		res.Redirect("/login?redirect="+url.QueryEscape(req.Path()), 302)
		return
	}
	res.SetStatus(403)
	res.SetJSONContent(
		map[string]any{
			"error":   "forbidden",
			"message": "Access denied",
			"code":    403,
		},
	)
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.Contains(path, "/api/")
}

func (g *AuthGuard) checkSession(req *webmodule.Request) (webmodule.AuthContext, bool) {
	sessionID := cookieValue(req.GetHeader("Cookie"), SessionCookieName)
	if sessionID == "" {
		return webmodule.AuthContext{}, false
	}
	userID := g.auth.ValidateSession(sessionID, req.ClientIP())
	if userID == "" {
		metrics.CountAuthFailure("session")
		return webmodule.AuthContext{}, false
	}
	session := g.auth.FindSession(sessionID)
	return webmodule.AuthContext{
		IsAuthenticated:  true,
		AuthenticatedVia: webmodule.AuthSession,
		Username:         session.Username,
		UserID:           userID,
		SessionID:        sessionID,
		AuthenticatedAt:  time.Unix(session.CreatedAt, 0),
	}, true
}

func (g *AuthGuard) checkToken(req *webmodule.Request) (webmodule.AuthContext, bool) {
	value := strings.TrimSpace(strings.TrimPrefix(req.GetHeader("Authorization"), "Bearer"))
	if value == "" {
		value = req.GetParam("access_token")
	}
	if value == "" {
		return webmodule.AuthContext{}, false
	}
	userID := g.auth.ValidateAPIToken(value)
	if userID == "" {
		metrics.CountAuthFailure("token")
		log.WithField("client_ip", req.ClientIP()).Debug("api token rejected")
		return webmodule.AuthContext{}, false
	}
	user := g.auth.FindUserByID(userID)
	return webmodule.AuthContext{
		IsAuthenticated:  true,
		AuthenticatedVia: webmodule.AuthToken,
		Username:         user.Username,
		UserID:           userID,
		Token:            value,
	}, true
}

func (g *AuthGuard) checkPageToken(req *webmodule.Request) (webmodule.AuthContext, bool) {
	value := req.GetHeader(CSRFHeaderName)
	if value == "" {
		value = req.GetParam(CSRFFieldName)
	}
	if value == "" {
		value = req.GetJSONParam(CSRFFieldName)
	}
	if value == "" || !g.auth.ValidatePageToken(value, req.ClientIP()) {
		metrics.CountCSRFRejection()
		log.WithField("client_ip", req.ClientIP()).Debug("page token rejected")
		return webmodule.AuthContext{}, false
	}
	// A valid page token may accompany a session; keep the identity
	// if it does.
	ctx, _ := g.checkSession(req)
	ctx.IsAuthenticated = true
	ctx.AuthenticatedVia = webmodule.AuthPageToken
	return ctx, true
}

func (g *AuthGuard) checkLocal(req *webmodule.Request) (webmodule.AuthContext, bool) {
	if !netutil.IsLocalAddress(req.ClientIP()) {
		metrics.CountAuthFailure("local_only")
		return webmodule.AuthContext{}, false
	}
	return webmodule.AuthContext{
		IsAuthenticated:  true,
		AuthenticatedVia: webmodule.AuthLocalOnly,
	}, true
}

// cookieValue extracts one cookie from a raw Cookie header.
func cookieValue(header, name string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, name+"="); ok {
			return v
		}
	}
	return ""
}

package platformapi

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/internal/geoip"
	"github.com/beacon-platform/beacon/webmodule"
)

func registerAuth(r webmodule.RouteRegistrar, deps Deps) error {
	if err := r.RegisterAPIRoute(
		webmodule.Route{
			Method:  webmodule.POST,
			Pattern: "/login",
			Handler: handleLogin(deps),
			Auth:    webmodule.AuthRequirements{webmodule.AuthLocalOnly},
			Docs: &webmodule.Docs{
				Summary: "Authenticate and open a session",
				Tags:    []string{"auth"},
				Responses: map[int]string{
					200: "Session opened",
					400: "Missing credentials",
					401: "Invalid credentials",
				},
			},
		},
	); err != nil {
		return err
	}
	if err := r.RegisterWebRoute(
		webmodule.Route{
			Method:  webmodule.GET,
			Pattern: "/logout",
			Handler: handleLogout(deps),
			Auth:    webmodule.AuthRequirements{webmodule.AuthLocalOnly},
			Docs:    &webmodule.Docs{Summary: "Destroy the session", Tags: []string{"auth"}},
		},
	); err != nil {
		return err
	}
	if err := r.RegisterAPIRoute(
		webmodule.Route{
			Method:  webmodule.GET,
			Pattern: "/user",
			Handler: handleCurrentUser(deps),
			Auth:    webmodule.AuthRequirements{webmodule.AuthSession, webmodule.AuthToken},
			Docs:    &webmodule.Docs{Summary: "The authenticated user", Tags: []string{"auth"}},
		},
	); err != nil {
		return err
	}
	return r.RegisterAPIRoute(
		webmodule.Route{
			Method:  webmodule.PUT,
			Pattern: "/user",
			Handler: handleChangeOwnPassword(deps),
			Auth:    webmodule.AuthRequirements{webmodule.AuthSession, webmodule.AuthToken},
			Docs: &webmodule.Docs{
				Summary: "Change the authenticated user's password",
				Tags:    []string{"auth"},
				Responses: map[int]string{
					200: "Password changed",
					400: "Missing password",
				},
			},
		},
	)
}

func param(req *webmodule.Request, name string) string {
	if v := req.GetParam(name); v != "" {
		return v
	}
	return req.GetJSONParam(name)
}

func handleLogin(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		username := param(req, "username")
		password := param(req, "password")
		if username == "" {
			jsonError(res, 400, "username required")
			return
		}
		userID := deps.Auth.ValidateCredentials(username, password)
		if userID == "" {
			fields := log.Fields{"username": username, "clientIp": req.ClientIP()}
			if country := geoip.CountryCode(req.ClientIP()); country != "" {
				fields["country"] = country
			}
			log.WithFields(fields).Warn("failed login attempt")
			jsonError(res, 401, "invalid credentials")
			return
		}
		sessionID := deps.Auth.CreateSession(userID)
		if sessionID == "" {
			jsonError(res, 500, "session could not be created")
			return
		}
		res.AddCookie(sessionCookie(sessionID, deps.Auth.SessionDuration()))
		redirect := param(req, "redirect")
		if redirect != "" && strings.HasPrefix(redirect, "/") && !strings.HasPrefix(redirect, "//") {
			res.Redirect(redirect, 302)
			return
		}
		jsonResult(res, 200, map[string]any{"success": true})
	}
}

func handleLogout(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		if auth := req.AuthContext(); auth.SessionID != "" {
			deps.Auth.DeleteSession(auth.SessionID)
		}
		res.AddCookie(sessionCookie("", 0))
		res.Redirect("/", 302)
	}
}

func handleCurrentUser(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		user := deps.Auth.FindUserByID(req.AuthContext().UserID)
		if !user.IsValid() {
			jsonError(res, 404, "user not found")
			return
		}
		jsonResult(res, 200, map[string]any{"success": true, "user": user.Public()})
	}
}

func handleChangeOwnPassword(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		password := param(req, "password")
		if len(password) < minPasswordLength {
			jsonError(res, 400, "password too short")
			return
		}
		if !deps.Auth.UpdateUserPassword(req.AuthContext().UserID, password) {
			jsonError(res, 500, "password could not be updated")
			return
		}
		jsonResult(res, 200, map[string]any{"success": true})
	}
}

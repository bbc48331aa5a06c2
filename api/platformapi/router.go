// Package platformapi mounts the platform's own pages and REST
// surface: provisioning portal, login, account and user management,
// wifi control and the generated API document.
package platformapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
	"github.com/beacon-platform/beacon/wifi"
)

// StatusInfo is the platform snapshot served on the status routes.
type StatusInfo struct {
	State      string      `json:"state"`
	DeviceName string      `json:"deviceName"`
	Version    string      `json:"version"`
	Uptime     int64       `json:"uptimeSeconds"`
	WiFi       wifi.Status `json:"wifi"`
}

// Deps carries everything the platform routes need. Function fields
// keep the package decoupled from the platform runtime.
type Deps struct {
	Auth            *storage.AuthStorage
	Storage         *storage.Manager
	Controller      wifi.Controller
	DeviceName      string
	Status          func() StatusInfo
	OpenAPIDoc      func() []byte
	SaveCredentials func(ssid, password string) error
	FactoryReset    func() error
	Metrics         http.Handler
}

// Register mounts all platform routes on the given registrar, which
// must be the platform-level one (empty base path).
func Register(r webmodule.RouteRegistrar, deps Deps) error {
	for _, register := range []func(webmodule.RouteRegistrar, Deps) error{
		registerPages,
		registerAuth,
		registerUsers,
		registerTokens,
		registerWiFi,
		registerSystem,
	} {
		if err := register(r, deps); err != nil {
			return err
		}
	}
	return nil
}

func jsonError(res *webmodule.Response, code int, msg string) {
	res.SetStatus(code)
	res.SetJSONContent(map[string]string{"error": msg})
}

func jsonResult(res *webmodule.Response, code int, v any) {
	res.SetStatus(code)
	res.SetJSONContent(v)
}

// isAdmin resolves the requester's admin flag. Token and session auth
// both carry a user; page-token and local-only auth never grant admin.
func isAdmin(deps Deps, req *webmodule.Request) bool {
	auth := req.AuthContext()
	if !auth.IsAuthenticated || auth.UserID == "" {
		return false
	}
	return deps.Auth.FindUserByID(auth.UserID).IsAdmin
}

// sessionCookie builds the session Set-Cookie value.
func sessionCookie(sessionID string, ttl time.Duration) string {
	if sessionID == "" {
		return "session=; Path=/; Max-Age=0"
	}
	return "session=" + sessionID + "; Path=/; Max-Age=" +
		strconv.Itoa(int(ttl.Seconds())) + "; HttpOnly; SameSite=Strict"
}

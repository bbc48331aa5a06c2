package platformapi

import (
	"strconv"

	"github.com/beacon-platform/beacon/storage/model"
	"github.com/beacon-platform/beacon/webmodule"
)

func registerTokens(r webmodule.RouteRegistrar, deps Deps) error {
	routes := []webmodule.Route{
		{
			Method:  webmodule.GET,
			Pattern: "/user/tokens",
			Handler: handleListTokens(deps, selfUserID),
			Auth:    userAuth,
			Docs:    &webmodule.Docs{Summary: "List the authenticated user's API tokens", Tags: []string{"tokens"}},
		},
		{
			Method:  webmodule.POST,
			Pattern: "/user/tokens",
			Handler: handleCreateToken(deps, selfUserID),
			Auth:    userAuth,
			Docs: &webmodule.Docs{
				Summary:     "Create an API token",
				Description: "The token value is only returned once, in the creation response.",
				Tags:        []string{"tokens"},
				Params:      map[string]string{"name": "Display name", "expireInDays": "Days until expiry, 0 for never"},
				Responses:   map[int]string{200: "Token created"},
			},
		},
		{
			Method:  webmodule.DELETE,
			Pattern: "/user/tokens/{id}",
			Handler: handleDeleteToken(deps, selfUserID),
			Auth:    userAuth,
			Docs: &webmodule.Docs{
				Summary:   "Delete an API token",
				Tags:      []string{"tokens"},
				Responses: map[int]string{200: "Token deleted", 404: "No such token"},
			},
		},
		{
			Method:  webmodule.GET,
			Pattern: "/users/{id}/tokens",
			Handler: adminOnly(deps, handleListTokens(deps, routeUserID)),
			Auth:    userAuth,
			Docs:    &webmodule.Docs{Summary: "List a user's API tokens", Tags: []string{"tokens"}},
		},
		{
			Method:  webmodule.POST,
			Pattern: "/users/{id}/tokens",
			Handler: adminOnly(deps, handleCreateToken(deps, routeUserID)),
			Auth:    userAuth,
			Docs: &webmodule.Docs{
				Summary:   "Create an API token for a user",
				Tags:      []string{"tokens"},
				Responses: map[int]string{200: "Token created", 404: "No such user"},
			},
		},
		{
			Method:  webmodule.DELETE,
			Pattern: "/users/{id}/tokens/{tokenId}",
			Handler: adminOnly(deps, handleDeleteTokenByParam(deps, "tokenId")),
			Auth:    userAuth,
			Docs: &webmodule.Docs{
				Summary:   "Delete a user's API token",
				Tags:      []string{"tokens"},
				Responses: map[int]string{200: "Token deleted", 404: "No such token"},
			},
		},
	}
	for _, route := range routes {
		if err := r.RegisterAPIRoute(route); err != nil {
			return err
		}
	}
	return nil
}

// selfUserID and routeUserID select whose tokens a route works on.
func selfUserID(req *webmodule.Request) string { return req.AuthContext().UserID }
func routeUserID(req *webmodule.Request) string { return req.GetRouteParameter("id") }

type tokenResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

func publicToken(t model.APIToken) tokenResponse {
	return tokenResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt}
}

func handleListTokens(deps Deps, userID func(*webmodule.Request) string) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		tokens := deps.Auth.TokensForUser(userID(req))
		out := make([]tokenResponse, 0, len(tokens))
		for _, t := range tokens {
			out = append(out, publicToken(t))
		}
		jsonResult(res, 200, out)
	}
}

func handleCreateToken(deps Deps, userID func(*webmodule.Request) string) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		days := 0
		if raw := param(req, "expireInDays"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				jsonError(res, 400, "expireInDays must be a non-negative number")
				return
			}
			days = parsed
		}
		token, err := deps.Auth.CreateAPIToken(userID(req), param(req, "name"), days)
		if err != nil {
			if _, missing := err.(model.NotFoundError); missing {
				jsonError(res, 404, err.Error())
				return
			}
			jsonError(res, 500, err.Error())
			return
		}
		// The only response that ever carries the token value.
		jsonResult(
			res, 200, struct {
				Success bool `json:"success"`
				tokenResponse
				Token string `json:"token"`
			}{true, publicToken(token), token.Token},
		)
	}
}

func handleDeleteToken(deps Deps, userID func(*webmodule.Request) string) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		token := deps.Auth.FindAPITokenByID(req.GetRouteParameter("id"))
		if token.ID == "" || token.UserID != userID(req) {
			jsonError(res, 404, "token not found")
			return
		}
		deps.Auth.DeleteAPIToken(token.ID)
		jsonResult(res, 200, map[string]any{"success": true})
	}
}

func handleDeleteTokenByParam(deps Deps, paramName string) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		token := deps.Auth.FindAPITokenByID(req.GetRouteParameter(paramName))
		if token.ID == "" || token.UserID != req.GetRouteParameter("id") {
			jsonError(res, 404, "token not found")
			return
		}
		deps.Auth.DeleteAPIToken(token.ID)
		jsonResult(res, 200, map[string]any{"success": true})
	}
}

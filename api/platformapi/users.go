package platformapi

import (
	"github.com/beacon-platform/beacon/storage/model"
	"github.com/beacon-platform/beacon/webmodule"
)

var userAuth = webmodule.AuthRequirements{webmodule.AuthSession, webmodule.AuthToken}

const minPasswordLength = 4

func registerUsers(r webmodule.RouteRegistrar, deps Deps) error {
	routes := []webmodule.Route{
		{
			Method:  webmodule.GET,
			Pattern: "/users",
			Handler: adminOnly(deps, handleListUsers(deps)),
			Auth:    userAuth,
			Docs:    &webmodule.Docs{Summary: "List users", Tags: []string{"users"}},
		},
		{
			Method:  webmodule.POST,
			Pattern: "/users",
			Handler: adminOnly(deps, handleCreateUser(deps)),
			Auth:    userAuth,
			Docs: &webmodule.Docs{
				Summary: "Create a user",
				Tags:    []string{"users"},
				Responses: map[int]string{
					201: "User created",
					400: "Missing username",
					409: "Username taken",
				},
			},
		},
		{
			Method:  webmodule.GET,
			Pattern: "/users/{id}",
			Handler: selfOrAdmin(deps, handleGetUser(deps)),
			Auth:    userAuth,
			Docs: &webmodule.Docs{
				Summary:   "Fetch a user",
				Tags:      []string{"users"},
				Responses: map[int]string{200: "OK", 404: "No such user"},
			},
		},
		{
			Method:  webmodule.PUT,
			Pattern: "/users/{id}",
			Handler: selfOrAdmin(deps, handleUpdateUser(deps)),
			Auth:    userAuth,
			Docs: &webmodule.Docs{
				Summary: "Update a user's password",
				Tags:    []string{"users"},
				Responses: map[int]string{
					200: "Password changed",
					400: "Missing password",
					404: "No such user",
				},
			},
		},
		{
			Method:  webmodule.DELETE,
			Pattern: "/users/{id}",
			Handler: adminOnly(deps, handleDeleteUser(deps)),
			Auth:    userAuth,
			Docs: &webmodule.Docs{
				Summary:     "Delete a user",
				Description: "Removes the user together with all of their sessions and API tokens.",
				Tags:        []string{"users"},
				Responses:   map[int]string{200: "User deleted", 400: "Can not delete yourself", 404: "No such user"},
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

// adminOnly rejects authenticated non-admins with 403.
func adminOnly(deps Deps, next webmodule.Handler) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		if !isAdmin(deps, req) {
			jsonError(res, 403, "admin access required")
			return
		}
		next(req, res)
	}
}

// selfOrAdmin limits {id} routes to the user themselves or an admin.
func selfOrAdmin(deps Deps, next webmodule.Handler) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		if req.GetRouteParameter("id") != req.AuthContext().UserID && !isAdmin(deps, req) {
			jsonError(res, 403, "admin access required")
			return
		}
		next(req, res)
	}
}

func handleListUsers(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		users := deps.Auth.AllUsers()
		out := make([]model.PublicUser, 0, len(users))
		for _, user := range users {
			out = append(out, user.Public())
		}
		jsonResult(res, 200, out)
	}
}

func handleCreateUser(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		username := param(req, "username")
		password := param(req, "password")
		if username == "" {
			jsonError(res, 400, "username required")
			return
		}
		if len(password) < minPasswordLength {
			jsonError(res, 400, "password too short")
			return
		}
		userID, err := deps.Auth.CreateUser(username, password, false)
		if err != nil {
			if _, conflict := err.(model.AlreadyExistsError); conflict {
				jsonError(res, 409, err.Error())
				return
			}
			jsonError(res, 500, err.Error())
			return
		}
		jsonResult(res, 201, map[string]any{"success": true, "id": userID})
	}
}

func handleGetUser(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		user := deps.Auth.FindUserByID(req.GetRouteParameter("id"))
		if !user.IsValid() {
			jsonError(res, 404, "user not found")
			return
		}
		jsonResult(res, 200, user.Public())
	}
}

func handleUpdateUser(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		userID := req.GetRouteParameter("id")
		if !deps.Auth.FindUserByID(userID).IsValid() {
			jsonError(res, 404, "user not found")
			return
		}
		password := param(req, "password")
		if len(password) < minPasswordLength {
			jsonError(res, 400, "password too short")
			return
		}
		if !deps.Auth.UpdateUserPassword(userID, password) {
			jsonError(res, 500, "password could not be updated")
			return
		}
		jsonResult(res, 200, map[string]any{"success": true})
	}
}

func handleDeleteUser(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		userID := req.GetRouteParameter("id")
		if userID == req.AuthContext().UserID {
			jsonError(res, 400, "refusing to delete the requesting user")
			return
		}
		if !deps.Auth.FindUserByID(userID).IsValid() {
			jsonError(res, 404, "user not found")
			return
		}
		if !deps.Auth.DeleteUser(userID) {
			jsonError(res, 500, "user could not be deleted")
			return
		}
		jsonResult(res, 200, map[string]any{"success": true})
	}
}

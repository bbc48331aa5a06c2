package platformapi

import (
	"net/http/httptest"

	"github.com/beacon-platform/beacon/webmodule"
)

func registerSystem(r webmodule.RouteRegistrar, deps Deps) error {
	if err := r.RegisterAPIRoute(
		webmodule.Route{
			Method:  webmodule.GET,
			Pattern: "/status",
			Handler: handleStatus(deps),
			Auth:    webmodule.AuthRequirements{webmodule.AuthPageToken, webmodule.AuthToken, webmodule.AuthSession},
			Docs:    &webmodule.Docs{Summary: "Device status", Tags: []string{"platform"}},
		},
	); err != nil {
		return err
	}
	if err := r.RegisterAPIRoute(
		webmodule.Route{
			Method:  webmodule.GET,
			Pattern: "/openapi.json",
			Handler: handleOpenAPI(deps),
			Docs:    &webmodule.Docs{Summary: "The generated OpenAPI document", Tags: []string{"platform"}},
		},
	); err != nil {
		return err
	}
	if deps.Metrics == nil {
		return nil
	}
	return r.RegisterWebRoute(
		webmodule.Route{
			Method:  webmodule.GET,
			Pattern: "/metrics",
			Handler: handleMetrics(deps),
			Auth:    webmodule.AuthRequirements{webmodule.AuthLocalOnly},
			Docs:    &webmodule.Docs{Summary: "Prometheus metrics", Tags: []string{"platform"}},
		},
	)
}

func handleStatus(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		jsonResult(res, 200, deps.Status())
	}
}

func handleOpenAPI(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		res.SetMimeType("application/json")
		res.SetContentBytes(deps.OpenAPIDoc())
	}
}

// handleMetrics bridges the scrape handler into the pipeline; the
// exporter only writes to an http.ResponseWriter.
func handleMetrics(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		rec := httptest.NewRecorder()
		httpReq := httptest.NewRequest("GET", "/metrics", nil)
		deps.Metrics.ServeHTTP(rec, httpReq)
		res.SetStatus(rec.Code)
		res.SetMimeType(rec.Header().Get("Content-Type"))
		res.SetHeader(webmodule.SkipTemplateHeader, "1")
		res.SetContentBytes(rec.Body.Bytes())
	}
}

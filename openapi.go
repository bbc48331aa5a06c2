package beacon

import (
	"encoding/json"
	"strconv"
	"strings"

	arrops "github.com/adam-hanna/arrayOperations"
	"github.com/fatih/structs"
	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/internal/version"
	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
)

// OpenAPICollection caches generated documents, keyed by the route
// surface fingerprint.
const OpenAPICollection = "openapi"

type openAPIInfo struct {
	Title   string `structs:"title"`
	Version string `structs:"version"`
}

type openAPIOperation struct {
	Summary     string           `structs:"summary,omitempty"`
	Description string           `structs:"description,omitempty"`
	Tags        []string         `structs:"tags,omitempty"`
	Parameters  []map[string]any `structs:"parameters,omitempty"`
	Responses   map[string]any   `structs:"responses"`
	Security    []map[string]any `structs:"security,omitempty"`
}

// OpenAPIGenerator renders the registered route surface as an OpenAPI
// 3.0.3 document. Generation walks every registry entry, so the result
// is cached in storage and reused until the route surface changes.
type OpenAPIGenerator struct {
	registry   *RouteRegistry
	manager    *storage.Manager
	deviceName func() string
}

func NewOpenAPIGenerator(registry *RouteRegistry, manager *storage.Manager, deviceName func() string) *OpenAPIGenerator {
	return &OpenAPIGenerator{registry: registry, manager: manager, deviceName: deviceName}
}

// Document returns the JSON document, from cache when the fingerprint
// still matches.
func (g *OpenAPIGenerator) Document() []byte {
	fingerprint := g.registry.Fingerprint()
	driver := g.manager.Driver("")
	if cached := driver.Retrieve(OpenAPICollection, fingerprint); cached != "" {
		return []byte(cached)
	}
	doc := g.build()
	data, err := json.Marshal(doc)
	if err != nil {
		log.WithError(err).Error("openapi document marshal failed")
		return []byte("{}")
	}
	// Drop stale documents before caching the new one.
	for _, key := range driver.ListKeys(OpenAPICollection) {
		driver.Remove(OpenAPICollection, key)
	}
	driver.Store(OpenAPICollection, fingerprint, string(data))
	return data
}

func (g *OpenAPIGenerator) build() map[string]any {
	paths := make(map[string]any)
	var allTags []string
	for _, entry := range g.registry.Entries() {
		pattern := entry.Pattern
		if strings.HasSuffix(pattern, "/*") {
			// Wildcard trees have no stable operation shape.
			continue
		}
		item, _ := paths[pattern].(map[string]any)
		if item == nil {
			item = make(map[string]any)
		}
		op := g.operation(entry)
		allTags = append(allTags, op.Tags...)
		item[strings.ToLower(entry.Method.String())] = structs.Map(&op)
		paths[pattern] = item
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info":    structs.Map(&openAPIInfo{Title: g.deviceName(), Version: version.VERSION}),
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"session": map[string]any{
					"type": "apiKey",
					"in":   "cookie",
					"name": SessionCookieName,
				},
				"token": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
				"pageToken": map[string]any{
					"type": "apiKey",
					"in":   "header",
					"name": CSRFHeaderName,
				},
			},
		},
	}
	if tags := arrops.Distinct(allTags); len(tags) > 0 {
		entries := make([]map[string]any, 0, len(tags))
		for _, tag := range tags {
			entries = append(entries, map[string]any{"name": tag})
		}
		doc["tags"] = entries
	}
	return doc
}

func (g *OpenAPIGenerator) operation(entry routeEntry) openAPIOperation {
	op := openAPIOperation{
		Responses: map[string]any{"200": map[string]any{"description": "OK"}},
	}
	if entry.ModuleName != "" {
		op.Tags = []string{entry.ModuleName}
	}
	if docs := entry.Docs; docs != nil {
		op.Summary = docs.Summary
		op.Description = docs.Description
		if len(docs.Tags) > 0 {
			op.Tags = docs.Tags
		}
		for name, desc := range docs.Params {
			op.Parameters = append(
				op.Parameters, map[string]any{
					"name":        name,
					"in":          "query",
					"description": desc,
					"schema":      map[string]any{"type": "string"},
				},
			)
		}
		if len(docs.Responses) > 0 {
			op.Responses = make(map[string]any, len(docs.Responses))
			for code, desc := range docs.Responses {
				op.Responses[strconv.Itoa(code)] = map[string]any{"description": desc}
			}
		}
	}
	for _, part := range strings.Split(strings.Trim(entry.Pattern, "/"), "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			op.Parameters = append(
				op.Parameters, map[string]any{
					"name":     strings.Trim(part, "{}"),
					"in":       "path",
					"required": true,
					"schema":   map[string]any{"type": "string"},
				},
			)
		}
	}
	op.Security = securityFor(entry.Auth)
	return op
}

func securityFor(reqs webmodule.AuthRequirements) []map[string]any {
	if reqs.Open() {
		return nil
	}
	var out []map[string]any
	for _, req := range reqs {
		switch req {
		case webmodule.AuthSession:
			out = append(out, map[string]any{"session": []string{}})
		case webmodule.AuthToken:
			out = append(out, map[string]any{"token": []string{}})
		case webmodule.AuthPageToken:
			out = append(out, map[string]any{"pageToken": []string{}})
		}
	}
	return out
}

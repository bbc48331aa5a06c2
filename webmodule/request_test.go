package webmodule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestParsesQuery(t *testing.T) {
	req := NewRequest(GET, "/page", "a=1&b=two%20words", nil, "", "10.0.0.5")
	assert.Equal(t, "1", req.GetParam("a"))
	assert.Equal(t, "two words", req.GetParam("b"))
	assert.Equal(t, "", req.GetParam("missing"))
}

func TestNewRequestParsesForm(t *testing.T) {
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	req := NewRequest(POST, "/login", "src=portal", headers, "username=alice&password=p%40ss", "10.0.0.5")
	assert.Equal(t, "alice", req.GetParam("username"))
	assert.Equal(t, "p@ss", req.GetParam("password"))
	// Query and form merge into one parameter space.
	assert.Equal(t, "portal", req.GetParam("src"))
}

func TestNewRequestParsesFlatJSON(t *testing.T) {
	headers := map[string]string{"Content-Type": "application/json"}
	req := NewRequest(POST, "/api/login", "", headers, `{"username":"alice","count":3}`, "10.0.0.5")
	assert.Equal(t, "alice", req.GetJSONParam("username"))
	// Non-string values come back in their raw JSON form.
	assert.Equal(t, "3", req.GetJSONParam("count"))
	assert.Equal(t, "", req.GetJSONParam("missing"))
}

func TestNewRequestMalformedJSONIsIgnored(t *testing.T) {
	headers := map[string]string{"Content-Type": "application/json"}
	req := NewRequest(POST, "/api/x", "", headers, `{"broken`, "10.0.0.5")
	assert.Equal(t, "", req.GetJSONParam("broken"))
	assert.Equal(t, `{"broken`, req.Body())
}

func TestHeadersAreCaseInsensitive(t *testing.T) {
	req := NewRequest(GET, "/", "", map[string]string{"X-CSRF-Token": "abc"}, "", "")
	assert.Equal(t, "abc", req.GetHeader("x-csrf-token"))
	assert.Equal(t, "abc", req.GetHeader("X-CSRF-Token"))
}

func TestGetRouteParameter(t *testing.T) {
	req := NewRequest(GET, "/api/users/42/tokens/7", "", nil, "", "")
	req.SetMatchedRoute("/api/users/{id}/tokens/{tokenId}", "")
	assert.Equal(t, "42", req.GetRouteParameter("id"))
	assert.Equal(t, "7", req.GetRouteParameter("tokenId"))
	assert.Equal(t, "", req.GetRouteParameter("nope"))
}

func TestParseMethod(t *testing.T) {
	m, ok := ParseMethod("POST")
	assert.True(t, ok)
	assert.Equal(t, POST, m)

	m, ok = ParseMethod("post")
	assert.True(t, ok)
	assert.Equal(t, POST, m)

	_, ok = ParseMethod("BREW")
	assert.False(t, ok)
}

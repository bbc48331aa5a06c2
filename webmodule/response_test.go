package webmodule

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewResponseDefaults(t *testing.T) {
	res := NewResponse()
	assert.Equal(t, 200, res.Status())
	assert.Equal(t, "text/html", res.MimeType())
	assert.Equal(t, BodyInline, res.Mode())
	assert.Empty(t, res.Body())
}

func TestResponseBodyModes(t *testing.T) {
	res := NewResponse()

	res.SetContent("hello")
	assert.Equal(t, BodyInline, res.Mode())
	assert.Equal(t, "hello", string(res.Body()))

	res.SetFile("/srv/www/index.html")
	assert.Equal(t, BodyFile, res.Mode())
	assert.Equal(t, "/srv/www/index.html", res.FilePath())

	res.SetStorageContent("prefs", "pages", "index")
	assert.Equal(t, BodyStorage, res.Mode())
	assert.Equal(t, StorageRef{Driver: "prefs", Collection: "pages", Key: "index"}, res.Storage())

	res.SetReader(strings.NewReader("streamed"))
	assert.Equal(t, BodyReader, res.Mode())
	assert.NotNil(t, res.Reader())
}

func TestResponseJSONContent(t *testing.T) {
	res := NewResponse()
	res.SetJSONContent(map[string]int{"answer": 42})
	assert.Equal(t, "application/json", res.MimeType())
	assert.JSONEq(t, `{"answer": 42}`, string(res.Body()))

	// Unmarshalable values degrade to an empty object.
	res = NewResponse()
	res.SetJSONContent(func() {})
	assert.Equal(t, "{}", string(res.Body()))
}

func TestResponseRedirect(t *testing.T) {
	res := NewResponse()
	res.Redirect("/login", 302)
	assert.Equal(t, 302, res.Status())
	assert.Equal(t, "/login", res.Headers()["Location"])

	// Non-redirect codes are coerced.
	res = NewResponse()
	res.Redirect("/login", 200)
	assert.Equal(t, 302, res.Status())
}

func TestResponseFrozenAfterSend(t *testing.T) {
	res := NewResponse()
	res.SetContent("original")
	res.MarkSent()

	res.SetStatus(500)
	res.SetContent("changed")
	res.SetMimeType("text/plain")
	res.SetHeader("X-Extra", "1")
	res.AddCookie("a=b")
	res.Redirect("/elsewhere", 302)

	assert.True(t, res.Sent())
	assert.Equal(t, 200, res.Status())
	assert.Equal(t, "original", string(res.Body()))
	assert.Equal(t, "text/html", res.MimeType())
	assert.Empty(t, res.Headers())
	assert.Empty(t, res.Cookies())
}

func TestResponseCookies(t *testing.T) {
	res := NewResponse()
	res.AddCookie("session=abc; Path=/")
	res.AddCookie("page_token=def; Path=/")
	assert.Equal(t, []string{"session=abc; Path=/", "page_token=def; Path=/"}, res.Cookies())
}

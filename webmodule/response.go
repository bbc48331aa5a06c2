package webmodule

import (
	"encoding/json"
	"io"
)

// SkipTemplateHeader suppresses HTML post-processing for one response
// when a handler sets it; the platform strips it before sending.
const SkipTemplateHeader = "X-Skip-Template-Processing"

// BodyMode selects how the transport adapter produces the response
// body.
type BodyMode int

const (
	// BodyInline sends the buffered body bytes.
	BodyInline BodyMode = iota
	// BodyFile streams a file from the local filesystem.
	BodyFile
	// BodyStorage streams a record out of a byte-store collection.
	BodyStorage
	// BodyReader streams from an io.Reader in chunks.
	BodyReader
)

// StorageRef addresses a byte-store record for streaming responses.
type StorageRef struct {
	Driver     string
	Collection string
	Key        string
}

// Response accumulates the handler's answer. Once Sent is flagged the
// response is frozen; every later mutation is a no-op, so a handler
// that already committed output cannot be clobbered by error paths.
type Response struct {
	status  int
	mime    string
	headers map[string]string
	cookies []string

	mode       BodyMode
	body       []byte
	filePath   string
	storageRef StorageRef
	reader     io.Reader

	sent bool
}

// NewResponse returns an empty 200 text/html response.
func NewResponse() *Response {
	return &Response{
		status:  200,
		mime:    "text/html",
		headers: make(map[string]string),
	}
}

// Status returns the response status code.
func (r *Response) Status() int { return r.status }

// SetStatus sets the status code.
func (r *Response) SetStatus(code int) {
	if r.sent {
		return
	}
	r.status = code
}

// MimeType returns the content type.
func (r *Response) MimeType() string { return r.mime }

// SetMimeType sets the content type.
func (r *Response) SetMimeType(mime string) {
	if r.sent {
		return
	}
	r.mime = mime
}

// SetHeader sets an additional response header.
func (r *Response) SetHeader(name, value string) {
	if r.sent {
		return
	}
	r.headers[name] = value
}

// Headers returns the additional response headers.
func (r *Response) Headers() map[string]string { return r.headers }

// AddCookie appends a Set-Cookie header value. Cookies are kept apart
// from the header map so several can be set on one response.
func (r *Response) AddCookie(cookie string) {
	if r.sent {
		return
	}
	r.cookies = append(r.cookies, cookie)
}

// Cookies returns the accumulated Set-Cookie values.
func (r *Response) Cookies() []string { return r.cookies }

// Mode returns how the body should be produced.
func (r *Response) Mode() BodyMode { return r.mode }

// Body returns the buffered body for BodyInline responses.
func (r *Response) Body() []byte { return r.body }

// SetContent buffers an inline body.
func (r *Response) SetContent(body string) {
	if r.sent {
		return
	}
	r.mode = BodyInline
	r.body = []byte(body)
}

// SetContentBytes buffers an inline binary body.
func (r *Response) SetContentBytes(body []byte) {
	if r.sent {
		return
	}
	r.mode = BodyInline
	r.body = body
}

// SetJSONContent marshals v as the body and sets the JSON mime type.
// Marshal failures degrade to an empty object rather than a half-sent
// response.
func (r *Response) SetJSONContent(v any) {
	if r.sent {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte("{}")
	}
	r.mode = BodyInline
	r.body = data
	r.mime = "application/json"
}

// FilePath returns the path for BodyFile responses.
func (r *Response) FilePath() string { return r.filePath }

// SetFile streams a local file as the body.
func (r *Response) SetFile(path string) {
	if r.sent {
		return
	}
	r.mode = BodyFile
	r.filePath = path
}

// Storage returns the record reference for BodyStorage responses.
func (r *Response) Storage() StorageRef { return r.storageRef }

// SetStorageContent streams a byte-store record as the body.
func (r *Response) SetStorageContent(driver, collection, key string) {
	if r.sent {
		return
	}
	r.mode = BodyStorage
	r.storageRef = StorageRef{Driver: driver, Collection: collection, Key: key}
}

// Reader returns the stream for BodyReader responses.
func (r *Response) Reader() io.Reader { return r.reader }

// SetReader streams the body from rd in chunks.
func (r *Response) SetReader(rd io.Reader) {
	if r.sent {
		return
	}
	r.mode = BodyReader
	r.reader = rd
}

// Redirect sets a Location response.
func (r *Response) Redirect(location string, code int) {
	if r.sent {
		return
	}
	if code < 300 || code > 399 {
		code = 302
	}
	r.status = code
	r.headers["Location"] = location
	r.mode = BodyInline
	r.body = nil
}

// Sent reports whether the response has been committed.
func (r *Response) Sent() bool { return r.sent }

// MarkSent freezes the response; called by the transport adapter after
// writing it out.
func (r *Response) MarkSent() { r.sent = true }

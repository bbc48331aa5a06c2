package beacon

import (
	"fmt"
	"strings"

	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
)

// Template markers handlers can embed in HTML bodies. Unknown
// {{...}} sequences pass through untouched so client-side template
// engines keep working.
const (
	markerNavMenu        = "NAV_MENU"
	markerCSRFToken      = "csrfToken"
	markerDeviceName     = "DEVICE_NAME"
	markerUsername       = "username"
	markerRedirectURL    = "redirectUrl"
	markerModulePrefix   = "MODULE_PREFIX"
	markerSecurityNotice = "SECURITY_NOTICE"
)

// TemplateProcessor rewrites HTML responses on the way out: marker
// substitution, navigation menu injection, head/body state injection.
type TemplateProcessor struct {
	registry     *RouteRegistry
	auth         *storage.AuthStorage
	deviceName   func() string
	httpsEnabled func() bool
}

func NewTemplateProcessor(registry *RouteRegistry, auth *storage.AuthStorage, deviceName func() string, httpsEnabled func() bool) *TemplateProcessor {
	return &TemplateProcessor{
		registry:     registry,
		auth:         auth,
		deviceName:   deviceName,
		httpsEnabled: httpsEnabled,
	}
}

// Process rewrites the buffered HTML body of res in place. Processing
// is idempotent: a body without markers comes out unchanged apart from
// the head/body injections, which detect themselves.
func (p *TemplateProcessor) Process(req *webmodule.Request, res *webmodule.Response) {
	if res.Headers()[webmodule.SkipTemplateHeader] != "" {
		delete(res.Headers(), webmodule.SkipTemplateHeader)
		return
	}
	body := string(res.Body())
	if body == "" {
		return
	}
	// One page token per response no matter how often it is needed.
	var csrfToken string
	issueToken := func() string {
		if csrfToken == "" {
			csrfToken = p.auth.CreatePageToken(req.ClientIP())
			p.setPageTokenCookie(res, csrfToken)
		}
		return csrfToken
	}
	body = p.substituteMarkers(req, body, issueToken)
	body = p.injectHead(body, issueToken)
	body = p.injectBodyAttributes(req, body)
	res.SetContentBytes([]byte(body))
}

func (p *TemplateProcessor) substituteMarkers(req *webmodule.Request, body string, issueToken func() string) string {
	var out strings.Builder
	out.Grow(len(body) + 256)
	for {
		start := strings.Index(body, "{{")
		if start < 0 {
			out.WriteString(body)
			break
		}
		end := strings.Index(body[start:], "}}")
		if end < 0 {
			out.WriteString(body)
			break
		}
		end += start
		marker := strings.TrimSpace(body[start+2 : end])
		out.WriteString(body[:start])

		switch marker {
		case markerNavMenu:
			out.WriteString(p.navMenu(req))
		case markerCSRFToken:
			out.WriteString(issueToken())
		case markerDeviceName:
			out.WriteString(htmlEscape(p.deviceName()))
		case markerUsername:
			out.WriteString(htmlEscape(req.AuthContext().Username))
		case markerRedirectURL:
			if redirect := req.GetParam("redirect"); redirect != "" {
				out.WriteString(htmlEscape(redirect))
			} else {
				out.WriteString("/")
			}
		case markerModulePrefix:
			if base := req.ModuleBasePath(); base != "" {
				out.WriteString("/" + base)
			}
		case markerSecurityNotice:
			out.WriteString(p.securityNotice())
		default:
			out.WriteString(body[start : end+2])
		}
		body = body[end+2:]
	}
	return out.String()
}

func (p *TemplateProcessor) setPageTokenCookie(res *webmodule.Response, token string) {
	if token == "" {
		return
	}
	res.AddCookie(
		fmt.Sprintf(
			"%s=%s; Path=/; Max-Age=%d; SameSite=Strict; HttpOnly",
			PageTokenCookieName, token, int(p.auth.PageTokenDuration().Seconds()),
		),
	)
}

// navMenu renders the navigation entries visible to the requester.
func (p *TemplateProcessor) navMenu(req *webmodule.Request) string {
	auth := req.AuthContext()
	isAdmin := false
	if auth.IsAuthenticated && auth.UserID != "" {
		isAdmin = p.auth.FindUserByID(auth.UserID).IsAdmin
	}
	var b strings.Builder
	b.WriteString(`<nav class="nav-menu"><ul>`)
	for _, entry := range p.registry.NavEntries(isAdmin) {
		target := entry.Pattern
		class := ""
		if target == req.Path() {
			class = ` class="active"`
		}
		b.WriteString(
			fmt.Sprintf(`<li%s><a href="%s">%s</a></li>`, class, target, htmlEscape(entry.NavTitle)),
		)
	}
	if auth.IsAuthenticated && auth.Username != "" {
		b.WriteString(`<li class="nav-logout"><a href="/logout">Logout</a></li>`)
	}
	b.WriteString(`</ul></nav>`)
	return b.String()
}

// securityNotice renders one of two blocks depending on whether the
// connection is served over TLS.
func (p *TemplateProcessor) securityNotice() string {
	if p.httpsEnabled() {
		return `<div class="security-notice security-notice-secure">Connection is encrypted (HTTPS).</div>`
	}
	return `<div class="security-notice security-notice-warning">This connection is not encrypted. ` +
		`Credentials are transmitted in clear text.</div>`
}

// injectHead makes sure the document head carries a viewport meta tag
// and a csrf-token meta tag page scripts can read.
func (p *TemplateProcessor) injectHead(body string, issueToken func() string) string {
	i := strings.Index(body, "<head>")
	if i < 0 {
		return body
	}
	insert := ""
	if !strings.Contains(body, `name="viewport"`) {
		insert += viewportMeta
	}
	if !strings.Contains(body, `name="csrf-token"`) {
		insert += `<meta name="csrf-token" content="` + issueToken() + `">`
	}
	if insert == "" {
		return body
	}
	return body[:i+len("<head>")] + insert + body[i+len("<head>"):]
}

// injectBodyAttributes tags the body element with auth state so page
// scripts can react without another round trip.
func (p *TemplateProcessor) injectBodyAttributes(req *webmodule.Request, body string) string {
	i := strings.Index(body, "<body")
	if i < 0 || strings.Contains(body[i:min(i+200, len(body))], "data-authenticated") {
		return body
	}
	authValue := "false"
	if req.AuthContext().IsAuthenticated {
		authValue = "true"
	}
	attrs := fmt.Sprintf(
		` data-device-name="%s" data-authenticated="%s"`,
		htmlEscape(p.deviceName()), authValue,
	)
	if base := req.ModuleBasePath(); base != "" {
		attrs += fmt.Sprintf(` data-module-prefix="%s"`, htmlEscape(base))
	}
	return body[:i+len("<body")] + attrs + body[i+len("<body"):]
}

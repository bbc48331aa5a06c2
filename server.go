package beacon

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/internal/netutil"
	"github.com/beacon-platform/beacon/webmodule"
)

// ServerConf configures the HTTP frontends.
type ServerConf struct {
	IPListen          string   `yaml:"ip_listen"`
	Port              int      `yaml:"port"`
	TLS               TLSConf  `yaml:"tls"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	ForwardedIPHeader string   `yaml:"forwarded_ip_header"`
}

// TLSConf configures the HTTPS frontend. Cert and Key are PEM file
// paths; serving starts on the TLS port only when both load.
type TLSConf struct {
	Enabled      bool   `yaml:"enabled"`
	Port         int    `yaml:"port"`
	RedirectHTTP bool   `yaml:"redirect_http"`
	Cert         string `yaml:"cert"`
	Key          string `yaml:"key"`
}

func (c *ServerConf) applyDefaults() {
	if c.Port == 0 {
		c.Port = 80
	}
	if c.TLS.Port == 0 {
		c.TLS.Port = 443
	}
}

// FiberServerConfig is the fiber.Config used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:           3 * time.Second,
	WriteTimeout:          20 * time.Second,
	IdleTimeout:           150 * time.Second,
	ReadBufferSize:        8192,
	DisableStartupMessage: true,
	Network:               "tcp",
}

// Server owns the fiber frontends and feeds every request through the
// dispatcher.
type Server struct {
	conf       ServerConf
	dispatcher *Dispatcher
	app        *fiber.App
}

func NewServer(conf ServerConf, dispatcher *Dispatcher) *Server {
	conf.applyDefaults()
	cfg := FiberServerConfig
	if len(conf.TrustedProxies) > 0 {
		cfg.TrustedProxies = conf.TrustedProxies
		cfg.EnableTrustedProxyCheck = true
	}
	cfg.ProxyHeader = conf.ForwardedIPHeader
	app := fiber.New(cfg)
	app.Use(recover.New())
	app.Use(requestid.New())
	s := &Server{conf: conf, dispatcher: dispatcher, app: app}
	app.All("/*", s.handle)
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// handle adapts one fiber request into the transport-neutral pipeline
// and writes the resulting response back out.
func (s *Server) handle(ctx *fiber.Ctx) error {
	req := requestFromCtx(ctx)
	res := webmodule.NewResponse()
	s.dispatcher.Dispatch(req, res)
	return sendResponse(ctx, res)
}

// requestFromCtx copies the whitelisted headers and normalizes the
// client address; fiber already resolved proxy headers per the server
// config.
func requestFromCtx(ctx *fiber.Ctx) *webmodule.Request {
	headers := make(map[string]string, len(webmodule.HeaderWhitelist))
	for _, name := range webmodule.HeaderWhitelist {
		if v := ctx.Get(name); v != "" {
			headers[name] = v
		}
	}
	method, ok := webmodule.ParseMethod(ctx.Method())
	if !ok {
		method = webmodule.GET
	}
	return webmodule.NewRequest(
		method,
		ctx.Path(),
		string(ctx.Request().URI().QueryString()),
		headers,
		string(ctx.Body()),
		netutil.NormalizeIP(ctx.IP()),
	)
}

func sendResponse(ctx *fiber.Ctx, res *webmodule.Response) error {
	defer res.MarkSent()
	ctx.Status(res.Status())
	ctx.Set(fiber.HeaderContentType, res.MimeType())
	for name, value := range res.Headers() {
		ctx.Set(name, value)
	}
	for _, cookie := range res.Cookies() {
		ctx.Response().Header.Add(fiber.HeaderSetCookie, cookie)
	}
	switch res.Mode() {
	case webmodule.BodyFile:
		return ctx.SendFile(res.FilePath())
	case webmodule.BodyReader:
		ctx.Context().SetBodyStream(res.Reader(), -1)
		return nil
	case webmodule.BodyStorage:
		// The dispatcher resolves storage bodies into readers before
		// the response reaches the transport; an unresolved reference
		// means the record was gone.
		ctx.Status(fiber.StatusNotFound)
		return ctx.SendString("not found")
	default:
		return ctx.Send(res.Body())
	}
}

// newRedirectApp builds the plain-port frontend that 301-redirects
// every request to its https counterpart.
func newRedirectApp() *fiber.App {
	app := fiber.New(FiberServerConfig)
	app.All(
		"*", func(ctx *fiber.Ctx) error {
			//goland:noinspection HttpUrlsUsage
			return ctx.Redirect(
				strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
				fiber.StatusMovedPermanently,
			)
		},
	)
	return app
}

// Start brings the frontends up and blocks. With TLS enabled the plain
// port only serves redirects.
func (s *Server) Start() {
	conf := s.conf
	if !conf.TLS.Enabled {
		log.WithField("port", conf.Port).Info("TLS is disabled, starting http server")
		log.WithError(s.app.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.Port))).Fatal()
	}
	if conf.TLS.RedirectHTTP {
		httpServer := newRedirectApp()
		log.WithField("port", conf.Port).Info("TLS and http redirect enabled, starting redirect server")
		go func() {
			log.WithError(httpServer.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.Port))).Fatal()
		}()
	}
	log.WithField("port", conf.TLS.Port).Info("TLS enabled, starting https server")
	log.WithError(
		s.app.ListenTLS(
			fmt.Sprintf("%s:%d", conf.IPListen, conf.TLS.Port), conf.TLS.Cert, conf.TLS.Key,
		),
	).Fatal()
}

// Shutdown stops the main frontend gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}


package beacon

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/beacon-platform/beacon/api/platformapi"
	"github.com/beacon-platform/beacon/internal/geoip"
	"github.com/beacon-platform/beacon/internal/metrics"
	"github.com/beacon-platform/beacon/internal/version"
	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/webmodule"
	"github.com/beacon-platform/beacon/wifi"
)

// PlatformState is the platform's top level mode.
type PlatformState int

const (
	// StateStarting is the short window before the first wifi
	// decision.
	StateStarting PlatformState = iota
	// StateConfigPortal means the device runs its own access point
	// and serves the provisioning portal.
	StateConfigPortal
	// StateConnected means the device joined a network and serves the
	// application modules.
	StateConnected
)

func (s PlatformState) String() string {
	switch s {
	case StateConfigPortal:
		return "config_portal"
	case StateConnected:
		return "connected"
	default:
		return "starting"
	}
}

const (
	joinTimeout       = 10 * time.Second
	superviseInterval = 5 * time.Second
	moduleTickPeriod  = 100 * time.Millisecond
	cleanupInterval   = 5 * time.Minute
	restartDelay      = time.Second
)

// Options bundles everything the platform needs to run.
type Options struct {
	DeviceName string
	Server     ServerConf
	Portal     PortalConf
	Storage    storage.Config
	Auth       storage.AuthConfig
	WiFi       wifi.Config
	GeoIPDB    string
}

// Platform owns the whole runtime: storage, auth, route registry,
// module set, wifi lifecycle and the HTTP frontends.
type Platform struct {
	opts       Options
	manager    *storage.Manager
	auth       *storage.AuthStorage
	registry   *RouteRegistry
	modules    *ModuleSet
	dispatcher *Dispatcher
	server     *Server
	portal     *CaptivePortal
	controller wifi.Controller
	creds      *wifi.CredentialStore
	openapi    *OpenAPIGenerator
	mdns       *MDNSResponder

	mu        sync.RWMutex
	state     PlatformState
	startedAt time.Time
	restartCh chan struct{}
}

// NewPlatform wires the runtime together. The wifi controller is
// injected so tests and non-wireless deployments can run the full
// stack.
func NewPlatform(opts Options, controller wifi.Controller) (*Platform, error) {
	if opts.DeviceName == "" {
		opts.DeviceName = "Beacon"
	}
	if opts.WiFi.APSSID == "" {
		opts.WiFi.APSSID = opts.DeviceName + "Setup"
	}
	opts.WiFi.ApplyDefaults()
	if opts.GeoIPDB != "" {
		if err := geoip.Load(opts.GeoIPDB); err != nil {
			log.WithError(err).Warn("geoip database not loaded")
		}
	}
	manager, err := storage.NewManager(opts.Storage)
	if err != nil {
		return nil, err
	}
	auth, err := storage.NewAuthStorage(manager, "", opts.Auth)
	if err != nil {
		return nil, err
	}
	if err = auth.Initialize(); err != nil {
		return nil, err
	}

	p := &Platform{
		opts:       opts,
		manager:    manager,
		auth:       auth,
		registry:   NewRouteRegistry(),
		modules:    NewModuleSet(),
		portal:     NewCaptivePortal(opts.Portal),
		controller: controller,
		creds:      wifi.NewCredentialStore(opts.WiFi.CredentialsFile),
		state:      StateStarting,
		restartCh:  make(chan struct{}, 1),
	}
	p.mdns = NewMDNSResponder(opts.DeviceName, func() string { return controller.Status().IP })
	processor := NewTemplateProcessor(p.registry, auth, p.DeviceName, func() bool { return p.opts.Server.TLS.Enabled })
	p.dispatcher = NewDispatcher(p.registry, auth, processor, manager)
	p.openapi = NewOpenAPIGenerator(p.registry, manager, p.DeviceName)

	if tls := &p.opts.Server.TLS; tls.Enabled {
		if !fileutils.FileExists(tls.Cert) || !fileutils.FileExists(tls.Key) {
			log.WithField("cert", tls.Cert).WithField("key", tls.Key).
				Warn("TLS certificate not found, serving plain http")
			tls.Enabled = false
		}
	}
	p.server = NewServer(p.opts.Server, p.dispatcher)
	return p, nil
}

// DeviceName returns the configured display name.
func (p *Platform) DeviceName() string { return p.opts.DeviceName }

// Auth exposes the auth storage.
func (p *Platform) Auth() *storage.AuthStorage { return p.auth }

// Storage exposes the byte-store manager.
func (p *Platform) Storage() *storage.Manager { return p.manager }

// Registry exposes the route registry.
func (p *Platform) Registry() *RouteRegistry { return p.registry }

// OpenAPIDocument returns the generated API document.
func (p *Platform) OpenAPIDocument() []byte { return p.openapi.Document() }

// Server exposes the HTTP frontend, mainly for tests.
func (p *Platform) Server() *Server { return p.server }

// State returns the current platform mode.
func (p *Platform) State() PlatformState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Platform) setState(s PlatformState) {
	p.mu.Lock()
	old := p.state
	p.state = s
	p.mu.Unlock()
	if old != s {
		log.WithField("from", old.String()).WithField("to", s.String()).Info("platform state changed")
	}
}

// WiFiStatus returns the controller's view of the interface.
func (p *Platform) WiFiStatus() wifi.Status { return p.controller.Status() }

// Uptime returns the time since Run started.
func (p *Platform) Uptime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.startedAt.IsZero() {
		return 0
	}
	return time.Since(p.startedAt)
}

// AddModule registers an application module; only valid before Run.
func (p *Platform) AddModule(m webmodule.Module) error {
	return p.modules.Add(m)
}

// SaveCredentials stores new join parameters and schedules a network
// restart; the supervision loop picks it up within a second.
func (p *Platform) SaveCredentials(ssid, password string) error {
	if err := p.creds.Save(wifi.Credentials{SSID: ssid, Password: password}); err != nil {
		return err
	}
	log.WithField("ssid", ssid).Info("wifi credentials saved, scheduling reconnect")
	p.TriggerRestart()
	return nil
}

// FactoryReset clears the stored credentials and drops back into the
// portal on the next restart cycle.
func (p *Platform) FactoryReset() error {
	if err := p.creds.Clear(); err != nil {
		return err
	}
	log.Info("factory reset requested")
	p.TriggerRestart()
	return nil
}

// TriggerRestart asks the supervision loop to redo the network
// decision. Non-blocking; coalesces with a pending trigger.
func (p *Platform) TriggerRestart() {
	select {
	case p.restartCh <- struct{}{}:
	default:
	}
}

// startModules runs Begin and route registration for every module.
func (p *Platform) startModules() error {
	p.modules.seal()
	for _, m := range p.modules.All() {
		cfg := webmodule.Config{
			DeviceName:    p.opts.DeviceName,
			BasePath:      m.BasePath(),
			StorageDriver: p.manager.DefaultName(),
			DataDir:       p.opts.Storage.DataDir,
		}
		if err := m.Begin(cfg); err != nil {
			return errors.Wrapf(err, "module %q failed to start", m.Name())
		}
		if err := m.Routes(p.registry.Registrar(m.Name(), m.BasePath())); err != nil {
			return errors.Wrapf(err, "module %q failed to register routes", m.Name())
		}
		log.WithField("module", m.Name()).Info("module started")
	}
	return nil
}

// coldStart makes the initial network decision: join with stored
// credentials or open the provisioning portal.
func (p *Platform) coldStart() {
	creds, err := p.creds.Load()
	if err != nil {
		log.WithError(err).Error("credential region unreadable, falling back to portal")
	}
	if creds.Provisioned() {
		log.WithField("ssid", creds.SSID).Info("joining stored network")
		if err = p.controller.Join(creds.SSID, creds.Password, joinTimeout); err == nil {
			p.enterConnected()
			return
		}
		log.WithError(err).Warn("stored network unreachable")
	}
	p.enterPortal()
}

func (p *Platform) enterConnected() {
	p.portal.Stop()
	if err := p.controller.StopAccessPoint(); err != nil {
		log.WithError(err).Debug("access point teardown")
	}
	p.dispatcher.SetFallback(nil)
	if err := p.mdns.Start(); err != nil {
		log.WithError(err).Warn("mdns responder not started")
	}
	p.setState(StateConnected)
}

func (p *Platform) enterPortal() {
	p.mdns.Stop()
	if err := p.controller.StartAccessPoint(p.opts.WiFi.APSSID); err != nil {
		log.WithError(err).Error("access point start failed")
	}
	if err := p.portal.Start(); err != nil {
		log.WithError(err).Error("captive portal start failed")
	}
	p.dispatcher.SetFallback(PortalRedirectHandler("/portal"))
	p.setState(StateConfigPortal)
}

// restartNetwork redoes the network decision after credentials
// changed. The portal keeps serving for a short grace period so the
// saving client still gets its confirmation page.
func (p *Platform) restartNetwork() {
	time.Sleep(restartDelay)
	creds, err := p.creds.Load()
	if err != nil || !creds.Provisioned() {
		if p.State() != StateConfigPortal {
			_ = p.controller.Disconnect()
			p.enterPortal()
		}
		return
	}
	log.WithField("ssid", creds.SSID).Info("reconnecting with new credentials")
	if err = p.controller.Join(creds.SSID, creds.Password, joinTimeout); err != nil {
		log.WithError(err).Warn("reconnect failed, staying in portal")
		if p.State() != StateConfigPortal {
			p.enterPortal()
		}
		return
	}
	if p.State() == StateConfigPortal {
		time.Sleep(portalGrace)
	}
	p.enterConnected()
}

// supervise rechecks the connection while connected and rejoins after
// a drop.
func (p *Platform) supervise() {
	if p.State() != StateConnected {
		return
	}
	status := p.controller.Status()
	if status.State == wifi.StateConnected {
		return
	}
	log.WithField("state", status.State.String()).Warn("network connection lost, rejoining")
	creds, err := p.creds.Load()
	if err != nil || !creds.Provisioned() {
		p.enterPortal()
		return
	}
	if err = p.controller.Join(creds.SSID, creds.Password, joinTimeout); err != nil {
		log.WithError(err).Warn("rejoin failed, opening portal")
		p.enterPortal()
	}
}

// registerPlatformRoutes mounts the platform's own pages and API.
func (p *Platform) registerPlatformRoutes() error {
	return platformapi.Register(
		p.registry.Registrar("platform", ""), platformapi.Deps{
			Auth:       p.auth,
			Storage:    p.manager,
			Controller: p.controller,
			DeviceName: p.opts.DeviceName,
			Status: func() platformapi.StatusInfo {
				return platformapi.StatusInfo{
					State:      p.State().String(),
					DeviceName: p.opts.DeviceName,
					Version:    version.VERSION,
					Uptime:     int64(p.Uptime().Seconds()),
					WiFi:       p.controller.Status(),
				}
			},
			OpenAPIDoc:      p.OpenAPIDocument,
			SaveCredentials: p.SaveCredentials,
			FactoryReset:    p.FactoryReset,
			Metrics:         metrics.Handler(),
		},
	)
}

// Run starts the platform and blocks until ctx is cancelled. The HTTP
// frontend serves in both portal and connected mode; only the routes
// differ in what they do.
func (p *Platform) Run(ctx context.Context) error {
	if err := p.registerPlatformRoutes(); err != nil {
		return err
	}
	if err := p.startModules(); err != nil {
		return err
	}
	p.registry.PrintRoutes()
	p.mu.Lock()
	p.startedAt = time.Now()
	p.mu.Unlock()

	p.coldStart()
	go p.server.Start()

	superviseTicker := time.NewTicker(superviseInterval)
	defer superviseTicker.Stop()
	moduleTicker := time.NewTicker(moduleTickPeriod)
	defer moduleTicker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.portal.Stop()
			p.mdns.Stop()
			return p.server.Shutdown()
		case <-p.restartCh:
			p.restartNetwork()
		case <-superviseTicker.C:
			p.supervise()
		case <-moduleTicker.C:
			for _, m := range p.modules.All() {
				m.Handle()
			}
		case <-cleanupTicker.C:
			if n := p.auth.CleanupExpiredData(); n > 0 {
				log.WithField("removed", n).Debug("expired auth records cleaned up")
			}
		}
	}
}

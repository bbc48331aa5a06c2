package beacon

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/webmodule"
)

// PortalConf configures the captive portal that runs while the device
// is unprovisioned.
type PortalConf struct {
	// APAddress is the address clients reach the portal under.
	APAddress string `yaml:"ap_address"`
	// DNSPort is the port of the catch-all DNS responder.
	DNSPort string `yaml:"dns_port"`
}

func (c *PortalConf) applyDefaults() {
	if c.APAddress == "" {
		c.APAddress = "192.168.4.1"
	}
	if c.DNSPort == "" {
		c.DNSPort = "53"
	}
}

// CaptivePortal answers every DNS A query with the access point
// address so any hostname a client tries lands on the provisioning
// page.
type CaptivePortal struct {
	conf   PortalConf
	server *dns.Server
	mu     sync.Mutex
}

func NewCaptivePortal(conf PortalConf) *CaptivePortal {
	conf.applyDefaults()
	return &CaptivePortal{conf: conf}
}

// Start brings the DNS responder up; it serves until Stop.
func (p *CaptivePortal) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return nil
	}
	ip := net.ParseIP(p.conf.APAddress)
	if ip == nil || ip.To4() == nil {
		return errors.Errorf("captive portal address %q is not an IPv4 address", p.conf.APAddress)
	}
	mux := dns.NewServeMux()
	mux.HandleFunc(".", p.answer(ip.To4()))
	p.server = &dns.Server{
		Addr:    net.JoinHostPort("", p.conf.DNSPort),
		Net:     "udp",
		Handler: mux,
	}
	go func() {
		log.WithField("port", p.conf.DNSPort).Info("captive portal dns responder started")
		if err := p.server.ListenAndServe(); err != nil {
			log.WithError(err).Error("captive portal dns responder stopped")
		}
	}()
	return nil
}

// Stop shuts the DNS responder down.
func (p *CaptivePortal) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil {
		return
	}
	if err := p.server.Shutdown(); err != nil {
		log.WithError(err).Warn("captive portal dns shutdown")
	}
	p.server = nil
}

func (p *CaptivePortal) answer(ip net.IP) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Authoritative = true
		for _, q := range r.Question {
			if q.Qtype != dns.TypeA {
				continue
			}
			m.Answer = append(
				m.Answer, &dns.A{
					Hdr: dns.RR_Header{
						Name:   q.Name,
						Rrtype: dns.TypeA,
						Class:  dns.ClassINET,
						Ttl:    10,
					},
					A: ip,
				},
			)
		}
		if err := w.WriteMsg(m); err != nil {
			log.WithError(err).Debug("captive portal dns write failed")
		}
	}
}

// osProbePaths are the connectivity check URLs operating systems poll;
// answering them with a redirect makes the captive portal sheet pop
// up.
var osProbePaths = []string{
	"/generate_204",
	"/gen_204",
	"/hotspot-detect.html",
	"/connecttest.txt",
	"/ncsi.txt",
	"/success.txt",
	"/canonical.html",
}

// PortalRedirectHandler sends every unknown page to the provisioning
// portal. Requests already on the portal pass through untouched to
// avoid a redirect loop.
func PortalRedirectHandler(portalPath string) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		if strings.HasPrefix(req.Path(), portalPath) {
			return
		}
		res.Redirect(portalPath, 302)
		res.SetHeader("Cache-Control", "no-store")
	}
}

// IsOSProbePath reports whether path is a connectivity check URL.
func IsOSProbePath(path string) bool {
	for _, probe := range osProbePaths {
		if path == probe {
			return true
		}
	}
	return false
}

// portalGrace is how long the portal keeps serving after provisioning
// so the success page can still load.
const portalGrace = 5 * time.Second

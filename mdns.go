package beacon

import (
	"net"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const mdnsPort = 5353

var mdnsGroup = net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: mdnsPort}

// cache-flush bit of an mDNS resource record class.
const mdnsCacheFlush = 1 << 15

// MDNSResponder advertises the device as <hostname>.local on the local
// network so clients can reach it without knowing the DHCP-assigned
// address. It only runs while the device is connected; in portal mode
// the catch-all DNS responder takes over name resolution.
type MDNSResponder struct {
	hostname string
	addr     func() string
	mu       sync.Mutex
	server   *dns.Server
}

// NewMDNSResponder derives the hostname from the device name and takes
// a callback for the current interface address. The address is
// re-evaluated per query, so DHCP renewals need no restart.
func NewMDNSResponder(deviceName string, addr func() string) *MDNSResponder {
	return &MDNSResponder{hostname: MDNSHostname(deviceName), addr: addr}
}

// MDNSHostname converts a display name into its .local FQDN:
// lower-cased, spaces replaced with dashes.
func MDNSHostname(deviceName string) string {
	host := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(deviceName), " ", "-"))
	if host == "" {
		host = "beacon"
	}
	return host + ".local."
}

// Hostname returns the advertised FQDN.
func (m *MDNSResponder) Hostname() string { return m.hostname }

// Start joins the mDNS multicast group and answers name queries until
// Stop. Starting twice is a no-op.
func (m *MDNSResponder) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		return nil
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, &mdnsGroup)
	if err != nil {
		return errors.Wrap(err, "mdns: joining multicast group")
	}
	mux := dns.NewServeMux()
	mux.HandleFunc(m.hostname, m.answer)
	m.server = &dns.Server{PacketConn: conn, Handler: mux}
	go func() {
		log.WithField("hostname", m.hostname).Info("mdns responder started")
		if err := m.server.ActivateAndServe(); err != nil {
			log.WithError(err).Debug("mdns responder stopped")
		}
	}()
	return nil
}

// Stop leaves the multicast group.
func (m *MDNSResponder) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return
	}
	if err := m.server.Shutdown(); err != nil {
		log.WithError(err).Debug("mdns shutdown")
	}
	m.server = nil
}

func (m *MDNSResponder) answer(w dns.ResponseWriter, r *dns.Msg) {
	addr := net.ParseIP(m.addr())
	if addr == nil || addr.To4() == nil {
		return
	}
	reply := new(dns.Msg)
	reply.SetReply(r)
	reply.Authoritative = true
	// mDNS responses carry no question section.
	reply.Question = nil
	for _, q := range r.Question {
		if q.Qtype != dns.TypeA || !strings.EqualFold(q.Name, m.hostname) {
			continue
		}
		reply.Answer = append(
			reply.Answer, &dns.A{
				Hdr: dns.RR_Header{
					Name:   q.Name,
					Rrtype: dns.TypeA,
					Class:  dns.ClassINET | mdnsCacheFlush,
					Ttl:    120,
				},
				A: addr.To4(),
			},
		)
	}
	if len(reply.Answer) == 0 {
		return
	}
	if err := w.WriteMsg(reply); err != nil {
		log.WithError(err).Debug("mdns write failed")
	}
}

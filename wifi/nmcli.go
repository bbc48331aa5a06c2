package wifi

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const joinPollInterval = 500 * time.Millisecond

// NMCLIController drives the interface through NetworkManager's nmcli.
type NMCLIController struct {
	iface string
	mu    sync.Mutex
	state State
	ssid  string
}

func NewNMCLIController(cfg Config) *NMCLIController {
	cfg.ApplyDefaults()
	return &NMCLIController{iface: cfg.Interface, state: StateIdle}
}

func (c *NMCLIController) run(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "nmcli", args...).CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "nmcli %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Status queries the active connection on the interface.
func (c *NMCLIController) Status() Status {
	c.mu.Lock()
	state, ssid := c.state, c.ssid
	c.mu.Unlock()
	status := Status{State: state, SSID: ssid}
	if state != StateConnected {
		return status
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if out, err := c.run(ctx, "-t", "-f", "IP4.ADDRESS", "device", "show", c.iface); err == nil {
		for _, line := range strings.Split(out, "\n") {
			if v, ok := strings.CutPrefix(line, "IP4.ADDRESS[1]:"); ok {
				status.IP = strings.SplitN(strings.TrimSpace(v), "/", 2)[0]
			}
		}
	}
	if out, err := c.run(ctx, "-t", "-f", "ACTIVE,SIGNAL", "device", "wifi", "list", "ifname", c.iface); err == nil {
		for _, line := range strings.Split(out, "\n") {
			fields := strings.Split(line, ":")
			if len(fields) == 2 && fields[0] == "yes" {
				if signal, err := strconv.Atoi(fields[1]); err == nil {
					status.RSSI = signalToRSSI(signal)
				}
			}
		}
	}
	return status
}

// Scan lists visible networks, strongest first as nmcli returns them.
func (c *NMCLIController) Scan() ([]Network, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	out, err := c.run(ctx, "-t", "-f", "SSID,SIGNAL,CHAN,SECURITY", "device", "wifi", "list", "ifname", c.iface, "--rescan", "yes")
	if err != nil {
		return nil, err
	}
	var networks []Network
	seen := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, ":")
		if len(fields) < 4 || fields[0] == "" || seen[fields[0]] {
			continue
		}
		seen[fields[0]] = true
		signal, _ := strconv.Atoi(fields[1])
		channel, _ := strconv.Atoi(fields[2])
		security := fields[3]
		if security == "" {
			security = "open"
		}
		networks = append(
			networks, Network{
				SSID:     fields[0],
				RSSI:     signalToRSSI(signal),
				Channel:  channel,
				Security: security,
			},
		)
	}
	return networks, nil
}

// Join connects to ssid and polls until the interface reports
// connected or the timeout passes.
func (c *NMCLIController) Join(ssid, password string, timeout time.Duration) error {
	c.setState(StateConnecting, ssid)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	args := []string{"device", "wifi", "connect", ssid, "ifname", c.iface}
	if password != "" {
		args = append(args, "password", password)
	}
	if _, err := c.run(ctx, args...); err != nil {
		c.setState(StateFailed, "")
		return err
	}
	for {
		out, err := c.run(ctx, "-t", "-f", "GENERAL.STATE", "device", "show", c.iface)
		if err == nil && strings.Contains(out, "100 (connected)") {
			c.setState(StateConnected, ssid)
			return nil
		}
		select {
		case <-ctx.Done():
			c.setState(StateFailed, "")
			return errors.Errorf("wifi: joining %q timed out after %s", ssid, timeout)
		case <-time.After(joinPollInterval):
		}
	}
}

// StartAccessPoint brings the provisioning hotspot up.
func (c *NMCLIController) StartAccessPoint(ssid string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := c.run(ctx, "device", "wifi", "hotspot", "ifname", c.iface, "ssid", ssid); err != nil {
		return err
	}
	c.setState(StateAccessPoint, ssid)
	log.WithField("ssid", ssid).Info("access point started")
	return nil
}

// StopAccessPoint tears the hotspot down.
func (c *NMCLIController) StopAccessPoint() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := c.run(ctx, "connection", "down", "Hotspot")
	c.setState(StateIdle, "")
	return err
}

// Disconnect drops the current connection.
func (c *NMCLIController) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := c.run(ctx, "device", "disconnect", c.iface)
	c.setState(StateIdle, "")
	return err
}

func (c *NMCLIController) setState(state State, ssid string) {
	c.mu.Lock()
	c.state = state
	c.ssid = ssid
	c.mu.Unlock()
}

// signalToRSSI maps nmcli's 0..100 signal quality onto an approximate
// dBm value.
func signalToRSSI(signal int) int {
	return signal/2 - 100
}

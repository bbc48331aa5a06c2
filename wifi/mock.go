package wifi

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MockController is an in-memory Controller for tests and for running
// the platform on hardware without a wireless interface.
type MockController struct {
	mu       sync.Mutex
	state    State
	ssid     string
	ip       string
	Networks []Network
	// FailSSIDs lists networks whose join attempts fail.
	FailSSIDs map[string]bool
	// JoinDelay is slept before a join resolves.
	JoinDelay time.Duration
}

func NewMockController() *MockController {
	return &MockController{
		state: StateIdle,
		ip:    "192.168.1.50",
		Networks: []Network{
			{SSID: "testnet", RSSI: -42, Channel: 6, Security: "WPA2"},
			{SSID: "neighbour", RSSI: -77, Channel: 11, Security: "WPA2"},
		},
	}
}

func (c *MockController) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := Status{State: c.state, SSID: c.ssid}
	if c.state == StateConnected {
		status.IP = c.ip
		status.RSSI = -42
	}
	return status
}

func (c *MockController) Scan() ([]Network, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Network, len(c.Networks))
	copy(out, c.Networks)
	return out, nil
}

func (c *MockController) Join(ssid, password string, timeout time.Duration) error {
	if c.JoinDelay > 0 {
		time.Sleep(c.JoinDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSSIDs[ssid] {
		c.state = StateFailed
		return errors.Errorf("wifi: joining %q failed", ssid)
	}
	c.state = StateConnected
	c.ssid = ssid
	return nil
}

func (c *MockController) StartAccessPoint(ssid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateAccessPoint
	c.ssid = ssid
	return nil
}

func (c *MockController) StopAccessPoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.ssid = ""
	return nil
}

func (c *MockController) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.ssid = ""
	return nil
}

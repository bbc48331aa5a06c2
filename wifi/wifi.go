// Package wifi abstracts the wireless interface the platform runs on:
// joining a network, running the provisioning access point and
// scanning for neighbours.
package wifi

import "time"

// State is the wireless connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateAccessPoint
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAccessPoint:
		return "access_point"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the wireless interface.
type Status struct {
	State State  `json:"state"`
	SSID  string `json:"ssid,omitempty"`
	IP    string `json:"ip,omitempty"`
	RSSI  int    `json:"rssi,omitempty"`
}

// Network is one scan result.
type Network struct {
	SSID     string `json:"ssid"`
	RSSI     int    `json:"rssi"`
	Channel  int    `json:"channel"`
	Security string `json:"security"`
}

// Config configures the wireless controller.
type Config struct {
	Interface       string `yaml:"interface"`
	APSSID          string `yaml:"ap_ssid"`
	APAddress       string `yaml:"ap_address"`
	CredentialsFile string `yaml:"credentials_file"`
}

func (c *Config) ApplyDefaults() {
	if c.Interface == "" {
		c.Interface = "wlan0"
	}
	if c.APSSID == "" {
		c.APSSID = "beacon-setup"
	}
	if c.APAddress == "" {
		c.APAddress = "192.168.4.1"
	}
}

// Controller drives the wireless interface. Join blocks until the
// interface is up or the timeout passes.
type Controller interface {
	Status() Status
	Scan() ([]Network, error)
	Join(ssid, password string, timeout time.Duration) error
	StartAccessPoint(ssid string) error
	StopAccessPoint() error
	Disconnect() error
}

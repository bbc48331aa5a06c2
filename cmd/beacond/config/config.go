// Package config loads the beacond configuration file.
package config

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/duration"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"

	"github.com/beacon-platform/beacon"
	"github.com/beacon-platform/beacon/internal/logger"
	"github.com/beacon-platform/beacon/storage"
	"github.com/beacon-platform/beacon/wifi"
)

// Config is the whole beacond configuration.
type Config struct {
	DeviceName string            `yaml:"device_name"`
	Server     beacon.ServerConf `yaml:"server"`
	Portal     beacon.PortalConf `yaml:"portal"`
	Storage    storage.Config    `yaml:"storage"`
	Auth       authConf          `yaml:"auth"`
	WiFi       wifi.Config       `yaml:"wifi"`
	Logging    loggingConf       `yaml:"logging"`
	GeoIPDB    string            `yaml:"geoip_db"`
	// MockWiFi replaces the wireless controller with an in-memory one
	// for development machines.
	MockWiFi bool `yaml:"mock_wifi"`
}

type authConf struct {
	SessionLifetime   duration.DurationOption `yaml:"session_lifetime"`
	PageTokenLifetime duration.DurationOption `yaml:"page_token_lifetime"`
}

type loggingConf struct {
	Internal logger.Conf `yaml:"internal"`
}

var conf *Config

var defaultConf = Config{
	DeviceName: "Beacon",
	Logging: loggingConf{
		Internal: logger.Conf{Level: "INFO", StdErr: true},
	},
}

// possibleConfigLocations lists where Load searches when no file is
// passed on the command line.
var possibleConfigLocations = []string{
	"config.yaml",
	"/etc/beacond/config.yaml",
}

// Get returns the loaded configuration; Load must run first.
func Get() *Config {
	return conf
}

// Load reads the config file, fills defaults and validates. Any error
// is fatal; beacond can not run half configured.
func Load(file string) {
	if file == "" {
		for _, loc := range possibleConfigLocations {
			if fileutils.FileExists(loc) {
				file = loc
				break
			}
		}
	}
	c := defaultConf
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			log.WithError(err).Fatal("could not read config file")
		}
		if err = yaml.Unmarshal(data, &c); err != nil {
			log.WithError(err).Fatal("could not parse config file")
		}
	}
	if err := c.validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	conf = &c
}

func (c *Config) validate() error {
	if c.DeviceName == "" {
		c.DeviceName = defaultConf.DeviceName
	}
	if dir := c.Logging.Internal.Dir; dir != "" && !fileutils.FileExists(dir) {
		return errors.Errorf("logging directory '%s' does not exist", dir)
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	c.WiFi.ApplyDefaults()
	if c.WiFi.CredentialsFile == "" {
		c.WiFi.CredentialsFile = c.Storage.DataDir + "/wifi_credentials.bin"
	}
	return nil
}

// AuthConfig converts the yaml durations into the storage layer's
// config.
func (c *Config) AuthConfig() storage.AuthConfig {
	return storage.AuthConfig{
		SessionDuration:   c.Auth.SessionLifetime.Duration(),
		PageTokenDuration: c.Auth.PageTokenLifetime.Duration(),
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon"
	"github.com/beacon-platform/beacon/cmd/beacond/config"
	"github.com/beacon-platform/beacon/internal/logger"
	"github.com/beacon-platform/beacon/internal/version"
	"github.com/beacon-platform/beacon/wifi"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	config.Load(configFile)
	c := config.Get()
	if err := logger.Init(c.Logging.Internal); err != nil {
		log.WithError(err).Fatal("could not init logging")
	}
	log.WithField("version", version.VERSION).Info("beacond starting")

	var controller wifi.Controller
	if c.MockWiFi {
		controller = wifi.NewMockController()
		log.Info("using mock wifi controller")
	} else {
		controller = wifi.NewNMCLIController(c.WiFi)
	}

	platform, err := beacon.NewPlatform(
		beacon.Options{
			DeviceName: c.DeviceName,
			Server:     c.Server,
			Portal:     c.Portal,
			Storage:    c.Storage,
			Auth:       c.AuthConfig(),
			WiFi:       c.WiFi,
			GeoIPDB:    c.GeoIPDB,
		}, controller,
	)
	if err != nil {
		log.WithError(err).Fatal("could not init platform")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err = platform.Run(ctx); err != nil {
		log.WithError(err).Fatal("platform stopped")
	}
	log.Info("beacond stopped")
}

package platformapi

import (
	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/webmodule"
)

func registerWiFi(r webmodule.RouteRegistrar, deps Deps) error {
	routes := []webmodule.Route{
		{
			Method:  webmodule.GET,
			Pattern: "/scan",
			Handler: handleScan(deps),
			Auth:    webmodule.AuthRequirements{webmodule.AuthPageToken, webmodule.AuthToken, webmodule.AuthSession},
			Docs: &webmodule.Docs{
				Summary: "Scan for visible networks",
				Tags:    []string{"wifi"},
			},
		},
		{
			Method:  webmodule.POST,
			Pattern: "/wifi",
			Handler: handleSaveWiFi(deps),
			Auth:    webmodule.AuthRequirements{webmodule.AuthPageToken, webmodule.AuthToken, webmodule.AuthSession},
			Docs: &webmodule.Docs{
				Summary:     "Store join credentials",
				Description: "The device reconnects with the new credentials shortly after the call returns.",
				Tags:        []string{"wifi"},
				Responses:   map[int]string{200: "Credentials stored", 400: "Missing SSID"},
			},
		},
		{
			Method:  webmodule.POST,
			Pattern: "/reset",
			Handler: adminOnly(deps, handleFactoryReset(deps)),
			Auth:    webmodule.AuthRequirements{webmodule.AuthPageToken, webmodule.AuthToken, webmodule.AuthSession},
			Docs: &webmodule.Docs{
				Summary:     "Factory reset",
				Description: "Clears the stored credentials and reopens the provisioning portal.",
				Tags:        []string{"wifi"},
			},
		},
	}
	for _, route := range routes {
		if err := r.RegisterAPIRoute(route); err != nil {
			return err
		}
	}
	return nil
}

type scanEntry struct {
	SSID       string `json:"ssid"`
	RSSI       int    `json:"rssi"`
	Encryption string `json:"encryption"`
}

func handleScan(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		networks, err := deps.Controller.Scan()
		if err != nil {
			log.WithError(err).Error("wifi scan failed")
			jsonError(res, 500, "scan failed")
			return
		}
		entries := make([]scanEntry, 0, len(networks))
		for _, n := range networks {
			entries = append(entries, scanEntry{SSID: n.SSID, RSSI: n.RSSI, Encryption: n.Security})
		}
		jsonResult(res, 200, map[string]any{"networks": entries})
	}
}

func handleSaveWiFi(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		ssid := param(req, "ssid")
		if ssid == "" {
			jsonError(res, 400, "ssid required")
			return
		}
		if err := deps.SaveCredentials(ssid, param(req, "password")); err != nil {
			jsonError(res, 500, err.Error())
			return
		}
		jsonResult(res, 200, map[string]any{"success": true, "restart_required": true})
	}
}

func handleFactoryReset(deps Deps) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		if err := deps.FactoryReset(); err != nil {
			jsonError(res, 500, err.Error())
			return
		}
		jsonResult(res, 200, map[string]any{"success": true})
	}
}

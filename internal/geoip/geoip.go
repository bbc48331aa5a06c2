// Package geoip resolves client IPs to a country code for security
// telemetry on failed logins. The lookup is optional: without a loaded
// database every lookup returns the empty string.
package geoip

import (
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	log "github.com/sirupsen/logrus"
)

var (
	mu sync.RWMutex
	db *maxminddb.Reader
)

// Load opens the mmdb file at path. Passing an empty path is a no-op.
func Load(path string) error {
	if path == "" {
		return nil
	}
	r, err := maxminddb.Open(path)
	if err != nil {
		return err
	}
	mu.Lock()
	if db != nil {
		_ = db.Close()
	}
	db = r
	mu.Unlock()
	log.WithField("db", path).Info("loaded geoip database")
	return nil
}

// CountryCode returns the ISO country code for addr, or "" if no
// database is loaded or the address cannot be resolved.
func CountryCode(addr string) string {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return ""
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}
	var rec struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
	}
	if err := db.Lookup(ip, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

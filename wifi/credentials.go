package wifi

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"
)

// Credential region layout: a fixed-size blob so the file can be
// rewritten in place without resizing.
//
//	[0:32)   SSID, zero padded
//	[32:96)  passphrase, zero padded
//	[96]     provisioned flag, 0x01 when set
const (
	ssidOffset       = 0
	ssidSize         = 32
	passwordOffset   = 32
	passwordSize     = 64
	flagOffset       = 96
	regionSize       = 97
	provisionedValue = 0x01
)

// Credentials are the stored join parameters.
type Credentials struct {
	SSID     string
	Password string
}

// Provisioned reports whether an SSID has been stored.
func (c Credentials) Provisioned() bool { return c.SSID != "" }

// CredentialStore persists wifi credentials in a fixed-layout blob
// file.
type CredentialStore struct {
	path string
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Load reads the region. A missing file or a cleared provisioned flag
// both return empty credentials without error.
func (s *CredentialStore) Load() (Credentials, error) {
	if !fileutils.FileExists(s.path) {
		return Credentials{}, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "wifi: reading credential region")
	}
	if len(data) < regionSize {
		return Credentials{}, errors.Errorf("wifi: credential region truncated (%d bytes)", len(data))
	}
	if data[flagOffset] != provisionedValue {
		return Credentials{}, nil
	}
	return Credentials{
		SSID:     trimRegion(data[ssidOffset : ssidOffset+ssidSize]),
		Password: trimRegion(data[passwordOffset : passwordOffset+passwordSize]),
	}, nil
}

// Save writes the region atomically via a temp file rename.
func (s *CredentialStore) Save(c Credentials) error {
	if c.SSID == "" {
		return errors.New("wifi: ssid must not be empty")
	}
	if len(c.SSID) > ssidSize {
		return errors.Errorf("wifi: ssid longer than %d bytes", ssidSize)
	}
	if len(c.Password) > passwordSize {
		return errors.Errorf("wifi: passphrase longer than %d bytes", passwordSize)
	}
	region := make([]byte, regionSize)
	copy(region[ssidOffset:], c.SSID)
	copy(region[passwordOffset:], c.Password)
	region[flagOffset] = provisionedValue

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "wifi: creating credential dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, region, 0o600); err != nil {
		return errors.Wrap(err, "wifi: writing credential region")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "wifi: committing credential region")
	}
	return nil
}

// Clear drops the provisioned flag but keeps the file so the region
// stays allocated.
func (s *CredentialStore) Clear() error {
	if !fileutils.FileExists(s.path) {
		return nil
	}
	return errors.Wrap(
		os.WriteFile(s.path, make([]byte, regionSize), 0o600),
		"wifi: clearing credential region",
	)
}

func trimRegion(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

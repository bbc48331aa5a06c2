package wifi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeFixture(t *testing.T) *CredentialStore {
	t.Helper()
	return NewCredentialStore(filepath.Join(t.TempDir(), "sub", "wifi_credentials.bin"))
}

func TestCredentialsRoundTrip(t *testing.T) {
	store := storeFixture(t)

	creds, err := store.Load()
	require.NoError(t, err)
	assert.False(t, creds.Provisioned())

	want := Credentials{SSID: "homenet", Password: "pass phrase"}
	require.NoError(t, store.Save(want))

	creds, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, creds)
	assert.True(t, creds.Provisioned())
}

func TestCredentialsSaveValidation(t *testing.T) {
	store := storeFixture(t)

	assert.Error(t, store.Save(Credentials{}))
	assert.Error(t, store.Save(Credentials{SSID: strings.Repeat("x", ssidSize+1)}))
	assert.Error(t, store.Save(Credentials{SSID: "ok", Password: strings.Repeat("x", passwordSize+1)}))

	// Maximum lengths still fit.
	maxed := Credentials{
		SSID:     strings.Repeat("s", ssidSize),
		Password: strings.Repeat("p", passwordSize),
	}
	require.NoError(t, store.Save(maxed))
	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, maxed, creds)
}

func TestCredentialsTruncatedRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifi_credentials.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, regionSize-1), 0o600))

	_, err := NewCredentialStore(path).Load()
	assert.Error(t, err)
}

func TestCredentialsClear(t *testing.T) {
	store := storeFixture(t)

	// Clearing a store that never existed is fine.
	require.NoError(t, store.Clear())

	require.NoError(t, store.Save(Credentials{SSID: "homenet", Password: "secret"}))
	require.NoError(t, store.Clear())

	creds, err := store.Load()
	require.NoError(t, err)
	assert.False(t, creds.Provisioned())
	assert.Empty(t, creds.SSID)
	assert.Empty(t, creds.Password)
}

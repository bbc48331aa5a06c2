package wifi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockControllerJoin(t *testing.T) {
	c := NewMockController()
	assert.Equal(t, StateIdle, c.Status().State)

	require.NoError(t, c.Join("testnet", "secret", time.Second))
	status := c.Status()
	assert.Equal(t, StateConnected, status.State)
	assert.Equal(t, "testnet", status.SSID)
	assert.NotEmpty(t, status.IP)

	require.NoError(t, c.Disconnect())
	status = c.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Empty(t, status.IP)
}

func TestMockControllerJoinFailure(t *testing.T) {
	c := NewMockController()
	c.FailSSIDs = map[string]bool{"badnet": true}

	assert.Error(t, c.Join("badnet", "secret", time.Second))
	assert.Equal(t, StateFailed, c.Status().State)
}

func TestMockControllerAccessPoint(t *testing.T) {
	c := NewMockController()
	require.NoError(t, c.StartAccessPoint("beacon-setup"))
	status := c.Status()
	assert.Equal(t, StateAccessPoint, status.State)
	assert.Equal(t, "beacon-setup", status.SSID)

	require.NoError(t, c.StopAccessPoint())
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestMockControllerScan(t *testing.T) {
	c := NewMockController()
	networks, err := c.Scan()
	require.NoError(t, err)
	require.NotEmpty(t, networks)
	assert.Equal(t, "testnet", networks[0].SSID)
}

package registration_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/registration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PutGetPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")

	reg, err := registration.OpenRegistry(path)
	require.NoError(t, err)

	rec := registration.DeviceRecord{
		HostId:    "AA:BB:CC:DD:EE:FF",
		IpAddress: "192.168.1.50",
		HostType:  registration.HostTypePS5,
		RegistKey: "deadbeef",
		RPKey:     "cafef00d",
		KeyType:   2,
		LastSeen:  time.Now(),
	}
	require.NoError(t, reg.Put(rec))

	got, ok := reg.Get(rec.HostId)
	require.True(t, ok)
	assert.Equal(t, rec.RegistKey, got.RegistKey)

	// Reopen from disk to confirm persistence survived the round trip.
	reopened, err := registration.OpenRegistry(path)
	require.NoError(t, err)
	got2, ok := reopened.Get(rec.HostId)
	require.True(t, ok)
	assert.Equal(t, rec.RPKey, got2.RPKey)
}

func TestRegistry_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	reg, err := registration.OpenRegistry(path)
	require.NoError(t, err)

	rec := registration.DeviceRecord{HostId: "host-1"}
	require.NoError(t, reg.Put(rec))
	require.NoError(t, reg.Delete("host-1"))

	_, ok := reg.Get("host-1")
	assert.False(t, ok)
}

func TestRegistry_OpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.json")
	reg, err := registration.OpenRegistry(path)
	require.NoError(t, err)
	assert.Empty(t, reg.All())
}

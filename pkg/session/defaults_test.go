package session_test

import (
	"testing"

	"github.com/ethan/rp-webrtc-gateway/pkg/config"
	"github.com/ethan/rp-webrtc-gateway/pkg/session"
	"github.com/stretchr/testify/assert"
)

func TestDefaultsTable_ResolvesBuiltinWhenNoOverrides(t *testing.T) {
	table := session.NewDefaultsTable(config.SessionDefaults{
		Width: 1280, Height: 720, Fps: 60, BitrateKbps: 10000, Codec: "avc",
	})

	resolved := table.Resolve("host-1", "user-1")
	assert.Equal(t, 1280, resolved.Width)
	assert.Equal(t, session.CodecAVC, resolved.Codec)
}

func TestDefaultsTable_DeviceOverrideWins(t *testing.T) {
	table := session.NewDefaultsTable(config.SessionDefaults{
		Width: 1280, Height: 720, Fps: 60, BitrateKbps: 10000, Codec: "avc",
	})
	table.SetDeviceOverride("host-1", session.SessionStartOptions{BitrateKbps: 5000})

	resolved := table.Resolve("host-1", "user-1")
	assert.Equal(t, 5000, resolved.BitrateKbps)
	assert.Equal(t, 1280, resolved.Width) // unset fields fall through
}

func TestDefaultsTable_UserOverrideWinsOverDevice(t *testing.T) {
	table := session.NewDefaultsTable(config.SessionDefaults{
		Width: 1280, Height: 720, Fps: 60, BitrateKbps: 10000, Codec: "avc",
	})
	table.SetDeviceOverride("host-1", session.SessionStartOptions{BitrateKbps: 5000})
	table.SetUserOverride("user-1", session.SessionStartOptions{BitrateKbps: 8000})

	resolved := table.Resolve("host-1", "user-1")
	assert.Equal(t, 8000, resolved.BitrateKbps)
}

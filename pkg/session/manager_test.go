package session_test

import (
	"testing"

	"github.com/ethan/rp-webrtc-gateway/pkg/config"
	"github.com/ethan/rp-webrtc-gateway/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults() *session.DefaultsTable {
	return session.NewDefaultsTable(config.SessionDefaults{
		Width: 1280, Height: 720, Fps: 60, BitrateKbps: 10000,
		Codec: "avc", AudioChannels: "5.1", MTU: 1454,
		Language: "en", AcceptButton: "X", Controllers: []string{"ds4"},
	})
}

func TestManager_StartSessionReturnsExistingOnDuplicate(t *testing.T) {
	mgr := session.NewManager(testDefaults())

	first, created := mgr.StartSession("host-1", "192.168.1.10", "user-1")
	require.True(t, created)

	second, created := mgr.StartSession("host-1", "192.168.1.10", "user-1")
	require.False(t, created)
	assert.Equal(t, first.SessionId, second.SessionId)
}

func TestManager_DifferentUsersGetDifferentSessions(t *testing.T) {
	mgr := session.NewManager(testDefaults())

	a, _ := mgr.StartSession("host-1", "192.168.1.10", "user-1")
	b, _ := mgr.StartSession("host-1", "192.168.1.10", "user-2")

	assert.NotEqual(t, a.SessionId, b.SessionId)
}

func TestManager_StopRemovesSessionAllowingRestart(t *testing.T) {
	mgr := session.NewManager(testDefaults())

	first, _ := mgr.StartSession("host-1", "192.168.1.10", "user-1")
	require.NoError(t, mgr.Stop("host-1", "user-1"))

	_, ok := mgr.Get("host-1", "user-1")
	assert.False(t, ok)

	second, created := mgr.StartSession("host-1", "192.168.1.10", "user-1")
	assert.True(t, created)
	assert.NotEqual(t, first.SessionId, second.SessionId)
}

func TestManager_TransitionUpdatesState(t *testing.T) {
	mgr := session.NewManager(testDefaults())
	mgr.StartSession("host-1", "192.168.1.10", "user-1")

	mgr.Transition("host-1", "user-1", session.StateStreaming)

	sess, ok := mgr.Get("host-1", "user-1")
	require.True(t, ok)
	assert.Equal(t, session.StateStreaming, sess.State)
}

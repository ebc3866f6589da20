package session

import (
	"sync"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
)

// hostUserKey identifies the (host, user) pair a RemoteSession is unique
// under, mirroring the teacher's map-keyed-camera-name registry pattern.
type hostUserKey struct {
	hostId string
	userId string
}

// Manager owns every live RemoteSession, enforcing at most one active
// session per (host, user) pair.
type Manager struct {
	mu       sync.Mutex
	sessions map[hostUserKey]*RemoteSession
	defaults *DefaultsTable
	deps     *StreamDeps
}

// NewManager creates a session Manager resolving options from defaults.
// Configure must be called separately before StartSession can actually
// drive a stream; without it, StartSession only performs bookkeeping.
func NewManager(defaults *DefaultsTable) *Manager {
	return &Manager{
		sessions: make(map[hostUserKey]*RemoteSession),
		defaults: defaults,
	}
}

// Configure supplies the collaborators StartSession needs to dial a
// console, run the handshake, and wire up the streaming pipeline (§4.3,
// §2/§5 data flow). Call once at startup before any StartSession call
// that should actually stream; a Manager with no configured deps still
// registers sessions at StateCreated but never advances them.
func (m *Manager) Configure(deps StreamDeps) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps = &deps
}

// StartSession returns the existing RemoteSession for (hostId, userId) if
// one is already active, or creates, registers, and — if the Manager has
// been Configure'd — asynchronously starts a new one (§4.3: "Starts the
// stream asynchronously; Created → Connecting → Streaming").
func (m *Manager) StartSession(hostId, hostIp, userId string) (*RemoteSession, bool) {
	m.mu.Lock()

	key := hostUserKey{hostId: hostId, userId: userId}
	if existing, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return existing, false
	}

	now := time.Now()
	sess := &RemoteSession{
		SessionId:    NewSessionId(),
		HostId:       hostId,
		HostIp:       hostIp,
		UserId:       userId,
		StartOptions: m.defaults.Resolve(hostId, userId),
		State:        StateCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.sessions[key] = sess
	deps := m.deps
	m.mu.Unlock()

	if deps != nil {
		go m.runStream(sess, *deps)
	}
	return sess, true
}

// failSession records why a session never reached Streaming and stops it.
func (m *Manager) failSession(sess *RemoteSession, reason FailureReason) {
	m.mu.Lock()
	sess.FailureReason = reason
	m.mu.Unlock()
	m.Stop(sess.HostId, sess.UserId)
}

// Transition moves a session to a new lifecycle state.
func (m *Manager) Transition(hostId, userId string, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hostUserKey{hostId: hostId, userId: userId}
	if sess, ok := m.sessions[key]; ok {
		sess.State = state
		sess.UpdatedAt = time.Now()
	}
}

// Stop transitions a session to Stopped, closes its Stream if any, and
// removes it from the active map so a subsequent StartSession for the same
// (host, user) pair creates a fresh session.
func (m *Manager) Stop(hostId, userId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := hostUserKey{hostId: hostId, userId: userId}
	sess, ok := m.sessions[key]
	if !ok {
		return nil
	}

	sess.State = StateStopping
	var closeErr error
	if sess.Stream != nil {
		closeErr = sess.Stream.Close()
	}
	sess.State = StateStopped
	sess.UpdatedAt = time.Now()
	delete(m.sessions, key)

	if closeErr != nil {
		return rperrors.Wrap(rperrors.KindTransport, rperrors.CodeIoError, "stop stream", closeErr)
	}
	return nil
}

// Get returns the active session for (hostId, userId), if any.
func (m *Manager) Get(hostId, userId string) (*RemoteSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[hostUserKey{hostId: hostId, userId: userId}]
	return sess, ok
}

// All returns every currently active session, for the diagnostic endpoint
// and the stats loop.
func (m *Manager) All() []*RemoteSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RemoteSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}

// Package session resolves and tracks the lifecycle of a logical Remote
// Play session (§3, §4.3): at most one per (host, user) pair, each owning
// at most one active Stream.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Codec is the negotiated video codec.
type Codec string

const (
	CodecAVC  Codec = "avc"
	CodecHEVC Codec = "hevc"
)

// SessionStartOptions is immutable once a session is created.
type SessionStartOptions struct {
	Width              int
	Height             int
	Fps                int
	QualityTier        int
	BitrateKbps        int
	Codec              Codec
	Hdr                bool
	AudioChannels      string
	RTTHintMs          int
	MTU                int
	Language           string
	AcceptButton       string
	Controllers        []string
}

// LaunchOptions is the effective codec/bitrate actually negotiated with the
// console, which may differ from the requested SessionStartOptions.
type LaunchOptions struct {
	Codec       Codec
	BitrateKbps int
}

// State is a RemoteSession's lifecycle stage.
type State string

const (
	StateCreated    State = "created"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
)

// FailureReason enumerates why StartSession can fail (§4.3).
type FailureReason string

const (
	FailureDeviceNotFound    FailureReason = "device_not_found"
	FailureNotRegistered     FailureReason = "not_registered"
	FailureAlreadyActive     FailureReason = "already_active"
	FailureHandshakeTimeout  FailureReason = "handshake_timeout"
	FailureCryptoFailure     FailureReason = "crypto_failure"
)

// RemoteSession is the session-control-layer handle for one logical
// session. Its active Stream (a transport.Stream, held behind the
// StreamHandle interface) is set once streaming begins.
type RemoteSession struct {
	SessionId     string
	HostId        string
	HostIp        string
	UserId        string
	StartOptions  SessionStartOptions
	LaunchOptions LaunchOptions
	State         State
	FailureReason FailureReason
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Stream StreamHandle
}

// StreamHandle is the minimal lifecycle contract a RemoteSession needs from
// its Stream.
type StreamHandle interface {
	Close() error
}

// NewSessionId generates a fresh, unique session identifier.
func NewSessionId() string {
	return uuid.NewString()
}

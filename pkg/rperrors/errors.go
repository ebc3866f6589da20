// Package rperrors defines the typed error hierarchy shared across the
// gateway: every fallible operation in transport, handshake, crypto, media,
// backpressure, and configuration returns (or wraps) one of these.
package rperrors

import (
	"errors"
	"fmt"
)

// Kind groups errors by the subsystem that raised them.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindHandshake    Kind = "handshake"
	KindCrypto       Kind = "crypto"
	KindMedia        Kind = "media"
	KindBackpressure Kind = "backpressure"
	KindConfig       Kind = "config"
)

// Code identifies a specific error within a Kind.
type Code string

const (
	// Transport
	CodeIoError  Code = "io_error"
	CodeGmacInvalid Code = "gmac_invalid"
	CodeKeyPosGap   Code = "key_pos_gap"
	CodeTimeout     Code = "timeout"

	// Handshake
	CodeBadState    Code = "bad_state"
	CodeDecodeError Code = "decode_error"
	CodeRejected    Code = "rejected"

	// Crypto
	CodeBadKey Code = "bad_key"
	CodeBadTag Code = "bad_tag"
	CodeBadPin Code = "bad_pin"

	// Media
	CodeCorruptFrame Code = "corrupt_frame"
	CodeNoIdrYet     Code = "no_idr_yet"
	CodeCodecUnknown Code = "codec_unknown"

	// Backpressure
	CodeQueueFull   Code = "queue_full"
	CodePeerClosed  Code = "peer_closed"

	// Config
	CodeInvalidResolution Code = "invalid_resolution"
	CodeInvalidBitrate    Code = "invalid_bitrate"
)

// Error is the typed error carried through the gateway. It renders as
// "<kind>.<code>: <detail>" and supports errors.Is against its Kind/Code
// pair via a sentinel constructed with the same Kind and Code.
type Error struct {
	Kind   Kind
	Code   Code
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s.%s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s.%s: %s", e.Kind, e.Code, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind and Code,
// ignoring Detail and the wrapped cause. This lets callers write
// errors.Is(err, rperrors.New(KindTransport, CodeGmacInvalid, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, code Code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

// Wrap constructs an Error that wraps an underlying cause.
func Wrap(kind Kind, code Code, detail string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail, Err: cause}
}

// Sentinels for errors.Is comparisons that don't need a detail string.
var (
	ErrGmacInvalid   = New(KindTransport, CodeGmacInvalid, "")
	ErrKeyPosGap     = New(KindTransport, CodeKeyPosGap, "")
	ErrTransportIO   = New(KindTransport, CodeIoError, "")
	ErrTimeout       = New(KindTransport, CodeTimeout, "")
	ErrHandshakeBadState = New(KindHandshake, CodeBadState, "")
	ErrHandshakeRejected = New(KindHandshake, CodeRejected, "")
	ErrBadTag        = New(KindCrypto, CodeBadTag, "")
	ErrBadPin        = New(KindCrypto, CodeBadPin, "")
	ErrCorruptFrame  = New(KindMedia, CodeCorruptFrame, "")
	ErrNoIdrYet      = New(KindMedia, CodeNoIdrYet, "")
	ErrQueueFull     = New(KindBackpressure, CodeQueueFull, "")
	ErrPeerClosed    = New(KindBackpressure, CodePeerClosed, "")
)

// HealthStatus is the coarse, user-visible status surface §7 requires:
// internal Kind/Code detail never escapes past this enum.
type HealthStatus string

const (
	StatusOK     HealthStatus = "ok"
	StatusWarn   HealthStatus = "warn"
	StatusFrozen HealthStatus = "frozen"
	StatusError  HealthStatus = "error"
)

// ToHealthStatus coarsens an error into the user-visible enum. Transport
// and handshake failures that leave the stream unusable map to Error;
// media corruption is Warn (observable, not fatal); everything else that
// isn't nil is also Warn since it was already handled internally.
func ToHealthStatus(err error) HealthStatus {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindTransport, KindHandshake, KindCrypto:
			return StatusError
		case KindMedia, KindBackpressure:
			return StatusWarn
		}
	}
	return StatusWarn
}

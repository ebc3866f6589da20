package transport

import (
	"context"
	"net"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"
	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
)

// HandshakeState is one step of the console handshake (§4.6).
type HandshakeState int

const (
	StateSentInit HandshakeState = iota
	StateGotInitAck
	StateSentCookie
	StateGotCookieAck
	StateSentBig
	StateGotBang
	StateReceivedStreamInfo
	StateSentStreamInfoAck
	StateSentControllerConn
	StateStreaming
)

func (s HandshakeState) String() string {
	switch s {
	case StateSentInit:
		return "SentInit"
	case StateGotInitAck:
		return "GotInitAck"
	case StateSentCookie:
		return "SentCookie"
	case StateGotCookieAck:
		return "GotCookieAck"
	case StateSentBig:
		return "SentBig"
	case StateGotBang:
		return "GotBang"
	case StateReceivedStreamInfo:
		return "ReceivedStreamInfo"
	case StateSentStreamInfoAck:
		return "SentStreamInfoAck"
	case StateSentControllerConn:
		return "SentControllerConn"
	case StateStreaming:
		return "Streaming"
	default:
		return "unknown"
	}
}

// HandshakeStepTimeout and HandshakeRetries implement §4.6's "4s per step,
// 3 retries" rule.
const (
	HandshakeStepTimeout = 4 * time.Second
	HandshakeRetries     = 3
)

// HandshakeTransport is the narrow plain-packet send/receive surface the
// handshake needs before a StreamCipher exists. INIT and COOKIE packets are
// unauthenticated; BANG onward use the live cipher via Stream.
type HandshakeTransport interface {
	WritePlain(data []byte) error
	ReadPlain(ctx context.Context) ([]byte, error)
}

// udpHandshakeTransport adapts a raw *net.UDPConn for the pre-cipher steps.
type udpHandshakeTransport struct {
	conn *net.UDPConn
}

// NewUDPHandshakeTransport wraps a dialed UDP socket for handshake use.
func NewUDPHandshakeTransport(conn *net.UDPConn) HandshakeTransport {
	return &udpHandshakeTransport{conn: conn}
}

func (t *udpHandshakeTransport) WritePlain(data []byte) error {
	_, err := t.conn.Write(data)
	return err
}

func (t *udpHandshakeTransport) ReadPlain(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 65535)
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(HandshakeStepTimeout)
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// KeyMaterial is derived once the ECDH shared secret is available.
type KeyMaterial struct {
	SendKeys rpcrypto.DerivedKeys
	RecvKeys rpcrypto.DerivedKeys
}

// SaltInfoForHostType resolves the HKDF salt/info pair for a console type.
// The spec (§9) leaves the exact bytes as an unresolved, console-specific
// black box; these are placeholders a deployment supplies from reference
// capture data, wired through rather than hardcoded here.
type SaltInfoForHostType func(hostType string) (salt, info []byte)

// Handshake drives the state machine in §4.6 over a HandshakeTransport,
// producing the derived key material for both directions (KeyMaterial)
// once BANG is received.
type Handshake struct {
	transport HandshakeTransport
	keyPair   *rpcrypto.ECDHKeyPair
	log       *logger.Logger

	state HandshakeState
}

// NewHandshake creates a Handshake starting at SentInit.
func NewHandshake(t HandshakeTransport, log *logger.Logger) (*Handshake, error) {
	kp, err := rpcrypto.NewECDHKeyPair()
	if err != nil {
		return nil, err
	}
	return &Handshake{transport: t, keyPair: kp, log: log, state: StateSentInit}, nil
}

// State returns the current handshake step.
func (h *Handshake) State() HandshakeState { return h.state }

// step runs one request/response exchange with the handshake's configured
// retry policy, returning the peer's response bytes.
func (h *Handshake) step(ctx context.Context, name string, request []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= HandshakeRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, rperrors.Wrap(rperrors.KindHandshake, rperrors.CodeTimeout, name, err)
		}
		if err := h.transport.WritePlain(request); err != nil {
			lastErr = err
			continue
		}
		stepCtx, cancel := context.WithTimeout(ctx, HandshakeStepTimeout)
		resp, err := h.transport.ReadPlain(stepCtx)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		h.log.DebugHandshake("handshake step retry", "step", name, "attempt", attempt, "error", err)
	}
	return nil, rperrors.Wrap(rperrors.KindHandshake, rperrors.CodeTimeout, name, lastErr)
}

// RunToBang drives INIT → INIT_ACK → COOKIE → COOKIE_ACK → BIG → BANG,
// advancing h.state at each step, and returns the derived key material for
// both directions once BANG authenticates. buildBig must produce the BIG
// packet bytes (LaunchSpec + our ECDH public key) given our public key.
func (h *Handshake) RunToBang(ctx context.Context, initReq []byte, buildCookie func(initAck []byte) []byte, buildBig func(ourPublicKey []byte) []byte, parseBang func(bang []byte) (peerPublicKey []byte, err error), saltInfo SaltInfoForHostType, hostType string) (*KeyMaterial, error) {
	initAck, err := h.step(ctx, "INIT", initReq)
	if err != nil {
		return nil, err
	}
	h.state = StateGotInitAck

	cookieReq := buildCookie(initAck)
	cookieAck, err := h.step(ctx, "COOKIE", cookieReq)
	if err != nil {
		return nil, err
	}
	h.state = StateGotCookieAck
	_ = cookieAck

	h.state = StateSentBig
	bigReq := buildBig(h.keyPair.PublicKeyBytes())
	bang, err := h.step(ctx, "BIG", bigReq)
	if err != nil {
		return nil, err
	}

	peerPublicKey, err := parseBang(bang)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindHandshake, rperrors.CodeDecodeError, "parse BANG", err)
	}
	h.state = StateGotBang

	secret, err := h.keyPair.SharedSecret(peerPublicKey)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindCrypto, rperrors.CodeBadKey, "ecdh", err)
	}

	salt, info := saltInfo(hostType)
	sendKeys, err := rpcrypto.DeriveStreamKeys(secret, salt, append(append([]byte{}, info...), 's'))
	if err != nil {
		return nil, err
	}
	recvKeys, err := rpcrypto.DeriveStreamKeys(secret, salt, append(append([]byte{}, info...), 'r'))
	if err != nil {
		return nil, err
	}

	return &KeyMaterial{SendKeys: sendKeys, RecvKeys: recvKeys}, nil
}

// AdvanceToStreaming is called by the session layer once STREAMINFO,
// STREAMINFO_ACK, and CONTROLLER_CONNECTION have all been exchanged over
// the now-live Stream, completing the state machine.
func (h *Handshake) AdvanceToStreaming() {
	h.state = StateStreaming
}

// AdvanceToReceivedStreamInfo marks STREAMINFO as received.
func (h *Handshake) AdvanceToReceivedStreamInfo() { h.state = StateReceivedStreamInfo }

// AdvanceToSentStreamInfoAck marks STREAMINFO_ACK as sent.
func (h *Handshake) AdvanceToSentStreamInfoAck() { h.state = StateSentStreamInfoAck }

// AdvanceToSentControllerConn marks CONTROLLER_CONNECTION as sent.
func (h *Handshake) AdvanceToSentControllerConn() { h.state = StateSentControllerConn }

// Package registration implements the console-PIN pairing exchange that
// produces persistent device credentials (§4.2) and their on-disk registry
// (§3.1).
package registration

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
)

// HostType distinguishes the console generations that use different
// registration key schedules.
type HostType string

const (
	HostTypePS4 HostType = "PS4"
	HostTypePS5 HostType = "PS5"
)

// DeviceRecord is the persistent credential set produced by a successful
// registration, per §3 DeviceRecord.
type DeviceRecord struct {
	HostId    string
	IpAddress string
	HostType  HostType
	RegistKey string
	RPKey     string
	KeyType   int
	LastSeen  time.Time
}

// DeriveFunc produces the request/response ciphers for one registration
// attempt from (pin, accountId, hostType). The exact key schedule is
// console-type-specific and the spec treats it as a black box; callers
// supply the concrete derivation (reverse-engineered per console
// generation) rather than this package hardcoding one.
type DeriveFunc func(pin, accountId string, hostType HostType) (reqCipher, parseCipher cipher.Block, err error)

// Client performs registration exchanges against a console.
type Client struct {
	derive DeriveFunc
	log    *logger.Logger
	dial   func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewClient builds a registration Client using derive for the console's key
// schedule.
func NewClient(derive DeriveFunc, log *logger.Logger) *Client {
	d := &net.Dialer{}
	return &Client{
		derive: derive,
		log:    log,
		dial:   d.DialContext,
	}
}

// registrationPort is the console's registration listener.
const registrationPort = 9295

// Register performs one registration attempt. On a bad PIN the console
// responds with a rejection the parse cipher cannot make sense of; this is
// surfaced as a rperrors.CodeBadPin error and the call never mutates caller
// state.
func (c *Client) Register(ctx context.Context, hostIP, accountId, pin string, hostType HostType) (*DeviceRecord, error) {
	reqCipher, parseCipher, err := c.derive(pin, accountId, hostType)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindCrypto, rperrors.CodeBadKey, "register_derive", err)
	}

	req := buildRegisterRequest(reqCipher, accountId, hostType)

	addr := fmt.Sprintf("%s:%d", hostIP, registrationPort)
	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindTransport, rperrors.CodeIoError, "dial registration port", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(req); err != nil {
		return nil, rperrors.Wrap(rperrors.KindTransport, rperrors.CodeIoError, "send registration request", err)
	}

	resp := make([]byte, 512)
	n, err := conn.Read(resp)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindTransport, rperrors.CodeIoError, "read registration response", err)
	}

	rec, err := parseRegisterResponse(parseCipher, resp[:n], hostIP, hostType)
	if err != nil {
		c.log.DebugRegistration("registration rejected", "host_ip", hostIP, "error", err)
		return nil, rperrors.Wrap(rperrors.KindCrypto, rperrors.CodeBadPin, "", err)
	}

	c.log.DebugRegistration("registration succeeded", "host_id", rec.HostId, "host_ip", hostIP)
	return rec, nil
}

// RegisterWithRetry retries the underlying wake-up-then-connect dance with
// exponential backoff, mirroring the teacher's Cloudflare retry shape — but
// a rejected PIN is always terminal on the first attempt (§7: "registration
// does not retry"), since retrying a bad credential can never succeed and
// the console may rate-limit or lock out repeated attempts.
func (c *Client) RegisterWithRetry(ctx context.Context, hostIP, accountId, pin string, hostType HostType, maxAttempts int) (*DeviceRecord, error) {
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec, err := c.Register(ctx, hostIP, accountId, pin, hostType)
		if err == nil {
			return rec, nil
		}

		if errors.Is(err, rperrors.ErrBadPin) {
			return nil, err
		}

		if attempt == maxAttempts-1 {
			return nil, err
		}

		c.log.Warn("registration attempt failed, retrying", "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("max retries exceeded for registration")
}

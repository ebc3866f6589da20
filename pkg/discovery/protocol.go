// Package discovery implements the UDP DDP-style text protocol used to
// find and wake PlayStation consoles on the local network (§4.1, §6.1).
package discovery

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Console ports per generation.
const (
	PortPS4 = 987
	PortPS5 = 9302

	ProtocolVersion = "00030010"
)

// DeviceResponse is the parsed form of a console's SRCH/WAKEUP reply.
type DeviceResponse struct {
	HostName      string
	HostId        string
	HostType      string
	SystemVersion string
	Status        string // "OK" or "STANDBY"
}

var statusLineRe = regexp.MustCompile(`^HTTP/1\.1\s+(\d+)\s+(.+)$`)

// SearchRequest is the literal SRCH broadcast datagram.
func SearchRequest() []byte {
	return []byte("SRCH * HTTP/1.1\ndevice-discovery-protocol-version:" + ProtocolVersion + "\n")
}

// ParseDeviceResponse parses a console's reply datagram into a
// DeviceResponse. Status is taken from the HTTP-like status line; all other
// fields come from the recognized key:value lines.
func ParseDeviceResponse(data []byte) (DeviceResponse, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))

	var resp DeviceResponse
	sawStatusLine := false

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if !sawStatusLine {
			m := statusLineRe.FindStringSubmatch(line)
			if m == nil {
				return DeviceResponse{}, fmt.Errorf("malformed status line: %q", line)
			}
			resp.Status = strings.TrimSpace(m[2])
			sawStatusLine = true
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "host-name":
			resp.HostName = value
		case "host-id":
			resp.HostId = value
		case "host-type":
			resp.HostType = value
		case "system-version":
			resp.SystemVersion = value
		case "device-discovery-protocol-version":
			// recognized but not surfaced on DeviceResponse
		}
	}

	if !sawStatusLine {
		return DeviceResponse{}, fmt.Errorf("missing status line")
	}
	if resp.HostId == "" {
		return DeviceResponse{}, fmt.Errorf("response missing host-id")
	}

	return resp, nil
}

// WakeupRequest builds the WAKEUP * HTTP/1.1 datagram that encodes the
// registered RegistKey as a user-credential header.
func WakeupRequest(port int, regKeyHex string) ([]byte, error) {
	cred, err := encodeUserCredential(regKeyHex)
	if err != nil {
		return nil, fmt.Errorf("encode user-credential: %w", err)
	}
	req := fmt.Sprintf(
		"WAKEUP * HTTP/1.1\nclient-type:vr\nauth-type:R\nmodel:w\napp-type:r\nuser-credential:%s\ndevice-discovery-protocol-version:%s\n",
		cred, ProtocolVersion,
	)
	return []byte(req), nil
}

// encodeUserCredential turns a persisted RegistKey (itself a hex string
// whose decoded bytes spell out an ASCII hex string for the console's
// 4-byte credential) into the decimal user-credential the WAKEUP line
// expects: hex-decode once to recover the ASCII digits, hex-decode again to
// recover the raw credential bytes, then render them as a big-endian
// big.Int in decimal.
func encodeUserCredential(regKeyHex string) (string, error) {
	asciiDigits, err := hex.DecodeString(regKeyHex)
	if err != nil {
		return "", fmt.Errorf("decode regist key: %w", err)
	}
	credBytes, err := hex.DecodeString(string(asciiDigits))
	if err != nil {
		return "", fmt.Errorf("decode credential digits: %w", err)
	}
	n := new(big.Int).SetBytes(credBytes)
	return n.String(), nil
}

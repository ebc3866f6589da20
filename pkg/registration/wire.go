package registration

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"
)

// registrationNonce is fixed because each registration attempt derives a
// fresh reqCipher/parseCipher pair from a new PIN entry — key reuse across
// attempts never happens, so a per-attempt random nonce isn't needed.
var registrationNonce = make([]byte, rpcrypto.NonceSize)

// buildRegisterRequest encodes the HTTP-like registration request body: the
// account identifier and host type sealed under the request cipher the
// derive function produced for this PIN attempt.
func buildRegisterRequest(reqCipher cipher.Block, accountId string, hostType HostType) []byte {
	plaintext := fmt.Sprintf("accountId=%s&hostType=%s", accountId, hostType)
	sealed, err := rpcrypto.SealGCM(reqCipher, registrationNonce, []byte(plaintext), nil)
	if err != nil {
		// reqCipher is always a valid AES block from the derive function;
		// a sealing failure here indicates a derive-function bug, not a
		// runtime condition callers can recover from.
		panic(fmt.Sprintf("seal registration request: %v", err))
	}
	body := base64.StdEncoding.EncodeToString(sealed)
	header := fmt.Sprintf("POST /sie/ps5/rp/sess/rgst HTTP/1.1\r\nContent-Length: %d\r\n\r\n", len(body))
	return []byte(header + body)
}

// parseRegisterResponse decodes the console's registration response: the
// body is base64, then AES-GCM-sealed under parseCipher. An undecryptable
// body or a missing `RP-Key` field both mean the PIN was rejected.
func parseRegisterResponse(parseCipher cipher.Block, resp []byte, hostIP string, hostType HostType) (*DeviceRecord, error) {
	header, body, ok := strings.Cut(string(resp), "\r\n\r\n")
	_ = header
	if !ok {
		return nil, fmt.Errorf("malformed registration response: no body")
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}

	plaintext, err := rpcrypto.OpenGCM(parseCipher, registrationNonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt registration response: %w", err)
	}

	fields := parseFields(string(plaintext))

	rpKey, ok := fields["RP-Key"]
	if !ok || rpKey == "" {
		return nil, fmt.Errorf("response missing RP-Key (pin rejected)")
	}
	registKey, ok := fields["RegistKey"]
	if !ok || registKey == "" {
		return nil, fmt.Errorf("response missing RegistKey")
	}
	if _, err := hex.DecodeString(rpKey); err != nil {
		return nil, fmt.Errorf("malformed RP-Key: %w", err)
	}

	keyType := 0
	if kt, ok := fields["RP-KeyType"]; ok {
		keyType, _ = strconv.Atoi(kt)
	}

	return &DeviceRecord{
		HostId:    fields["Mac"],
		IpAddress: hostIP,
		HostType:  hostType,
		RegistKey: registKey,
		RPKey:     rpKey,
		KeyType:   keyType,
		LastSeen:  time.Now(),
	}, nil
}

// parseFields parses "&"-separated "key=value" pairs, the on-wire shape of a
// decrypted registration response.
func parseFields(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "&") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}

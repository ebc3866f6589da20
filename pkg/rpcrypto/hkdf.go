package rpcrypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DerivedKeys is the (GCM key, base nonce) pair a StreamCipher is built
// from, produced by HKDF over the ECDH shared secret.
type DerivedKeys struct {
	Key       []byte
	BaseNonce []byte
}

// DeriveStreamKeys runs HKDF-SHA256 over secret with the given salt and info
// strings, producing a 16-byte AES-128 key followed by a 12-byte base
// nonce. The exact salt/info strings are console-type-specific (§4.6's open
// question) and are supplied by the handshake layer rather than hardcoded
// here.
func DeriveStreamKeys(secret, salt, info []byte) (DerivedKeys, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	buf := make([]byte, 16+NonceSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return DerivedKeys{}, fmt.Errorf("hkdf expand: %w", err)
	}
	return DerivedKeys{
		Key:       buf[:16],
		BaseNonce: buf[16:],
	}, nil
}

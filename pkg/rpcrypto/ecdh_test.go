package rpcrypto_test

import (
	"testing"

	"github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestECDH_SharedSecretMatches(t *testing.T) {
	a, err := rpcrypto.NewECDHKeyPair()
	require.NoError(t, err)
	b, err := rpcrypto.NewECDHKeyPair()
	require.NoError(t, err)

	secretA, err := a.SharedSecret(b.PublicKeyBytes())
	require.NoError(t, err)
	secretB, err := b.SharedSecret(a.PublicKeyBytes())
	require.NoError(t, err)

	assert.Equal(t, secretA, secretB)
}

func TestDeriveStreamKeys_Deterministic(t *testing.T) {
	secret := []byte("shared-secret-from-ecdh-exchange")
	salt := []byte("console-type-a-salt")
	info := []byte("console-type-a-info")

	derived1, err := rpcrypto.DeriveStreamKeys(secret, salt, info)
	require.NoError(t, err)
	derived2, err := rpcrypto.DeriveStreamKeys(secret, salt, info)
	require.NoError(t, err)

	assert.Equal(t, derived1.Key, derived2.Key)
	assert.Equal(t, derived1.BaseNonce, derived2.BaseNonce)
	assert.Len(t, derived1.Key, 16)
	assert.Len(t, derived1.BaseNonce, rpcrypto.NonceSize)

	otherSalt, err := rpcrypto.DeriveStreamKeys(secret, []byte("different-salt"), info)
	require.NoError(t, err)
	assert.NotEqual(t, derived1.Key, otherSalt.Key)
}

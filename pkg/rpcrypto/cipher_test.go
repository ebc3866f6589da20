package rpcrypto_test

import (
	"testing"

	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
	"github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipherPair(t *testing.T) (*rpcrypto.StreamCipher, *rpcrypto.StreamCipher) {
	key := make([]byte, 16)
	nonce := make([]byte, rpcrypto.NonceSize)
	for i := range key {
		key[i] = byte(i)
	}
	for i := range nonce {
		nonce[i] = byte(0x40 + i)
	}
	send, err := rpcrypto.NewStreamCipher(key, nonce)
	require.NoError(t, err)
	recv, err := rpcrypto.NewStreamCipher(key, nonce)
	require.NoError(t, err)
	return send, recv
}

func TestStreamCipher_RoundTripEncrypted(t *testing.T) {
	send, recv := newTestCipherPair(t)

	header := []byte{2, 0x01, 0, 0, 0, 1}
	payload := []byte("feedback-state-payload-28bytes")

	out, gmac, err := send.Seal(header, payload, rpcrypto.AdvanceFeedbackState, true)
	require.NoError(t, err)

	plain, err := recv.Open(header, out, gmac, 0, rpcrypto.AdvanceFeedbackState, true)
	require.NoError(t, err)
	assert.Equal(t, payload, plain)
	assert.Equal(t, uint64(rpcrypto.AdvanceFeedbackState), send.KeyPos())
	assert.Equal(t, send.KeyPos(), recv.KeyPos())
}

func TestStreamCipher_RoundTripUnencrypted(t *testing.T) {
	send, recv := newTestCipherPair(t)

	header := []byte{1, 0x01, 0, 0, 0, 2}
	payload := []byte("control-message")

	out, gmac, err := send.Seal(header, payload, rpcrypto.AdvanceForControl(len(payload)), false)
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	plain, err := recv.Open(header, out, gmac, 0, rpcrypto.AdvanceForControl(len(payload)), false)
	require.NoError(t, err)
	assert.Equal(t, payload, plain)
}

func TestStreamCipher_RejectsGmacTamper(t *testing.T) {
	send, recv := newTestCipherPair(t)

	header := []byte{2, 0x01, 0, 0, 0, 1}
	payload := []byte("payload")

	out, gmac, err := send.Seal(header, payload, uint64(len(payload)), false)
	require.NoError(t, err)

	out[0] ^= 0xFF

	_, err = recv.Open(header, out, gmac, 0, uint64(len(payload)), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, rperrors.ErrGmacInvalid)
}

func TestStreamCipher_RejectsKeyPosGap(t *testing.T) {
	send, recv := newTestCipherPair(t)

	header := []byte{2, 0x01, 0, 0, 0, 1}
	payload := []byte("payload")

	out, gmac, err := send.Seal(header, payload, uint64(len(payload)), false)
	require.NoError(t, err)

	_, err = recv.Open(header, out, gmac, 5, uint64(len(payload)), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, rperrors.ErrKeyPosGap)
}

func TestGMAC_RoundTrip(t *testing.T) {
	block, err := rpcrypto.NewAESBlock(make([]byte, 16))
	require.NoError(t, err)
	nonce := make([]byte, rpcrypto.NonceSize)

	data := []byte("header-with-gmac-zeroed||payload")
	tag, err := rpcrypto.ComputeGMAC(block, nonce, data)
	require.NoError(t, err)

	require.NoError(t, rpcrypto.VerifyGMAC(block, nonce, data, tag))

	data[0] ^= 0x01
	require.Error(t, rpcrypto.VerifyGMAC(block, nonce, data, tag))
}

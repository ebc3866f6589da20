package rperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Render(t *testing.T) {
	err := rperrors.New(rperrors.KindTransport, rperrors.CodeGmacInvalid, "packet 42")
	assert.Equal(t, "transport.gmac_invalid: packet 42", err.Error())
}

func TestError_RenderNoDetail(t *testing.T) {
	err := rperrors.New(rperrors.KindHandshake, rperrors.CodeTimeout, "")
	assert.Equal(t, "handshake.timeout", err.Error())
}

func TestError_IsSentinel(t *testing.T) {
	wrapped := fmt.Errorf("reading socket: %w", rperrors.Wrap(rperrors.KindTransport, rperrors.CodeGmacInvalid, "seq 7", errors.New("short read")))
	require.True(t, errors.Is(wrapped, rperrors.ErrGmacInvalid))
	require.False(t, errors.Is(wrapped, rperrors.ErrBadPin))
}

func TestToHealthStatus(t *testing.T) {
	assert.Equal(t, rperrors.StatusOK, rperrors.ToHealthStatus(nil))
	assert.Equal(t, rperrors.StatusError, rperrors.ToHealthStatus(rperrors.ErrGmacInvalid))
	assert.Equal(t, rperrors.StatusWarn, rperrors.ToHealthStatus(rperrors.ErrCorruptFrame))
	assert.Equal(t, rperrors.StatusWarn, rperrors.ToHealthStatus(errors.New("unrelated")))
}

package oidc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

func TestStateCodec(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	codec := NewStateCodec("state-secret", 10*time.Minute)
	codec.now = clock.Now

	t.Run("RoundTripKeepsArbitraryClientState", func(t *testing.T) {
		in := FederatedState{Code: "abc123", State: "a.b|c:d=e", Provider: "wechat", UserType: "provider"}
		s, err := codec.Encode(in)
		require.NoError(t, err)

		out, err := codec.Decode(s)
		require.NoError(t, err)
		assert.Equal(t, in.Code, out.Code)
		assert.Equal(t, in.State, out.State)
		assert.Equal(t, in.Provider, out.Provider)
		assert.Equal(t, in.UserType, out.UserType)
	})

	t.Run("TamperedPayloadRejected", func(t *testing.T) {
		s, err := codec.Encode(FederatedState{Code: "abc123", Provider: "wechat"})
		require.NoError(t, err)
		other, err := codec.Encode(FederatedState{Code: "zzz999", Provider: "wechat"})
		require.NoError(t, err)

		payload, _, _ := strings.Cut(other, ".")
		_, sig, _ := strings.Cut(s, ".")
		_, err = codec.Decode(payload + "." + sig)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidState))
	})

	t.Run("WrongSecretRejected", func(t *testing.T) {
		s, err := NewStateCodec("other", time.Minute).Encode(FederatedState{Code: "c", Provider: "p"})
		require.NoError(t, err)
		_, err = codec.Decode(s)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidState))
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, s := range []string{"", "nodot", ".", "abc.", "!!.??"} {
			_, err := codec.Decode(s)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidState), s)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		s, err := codec.Encode(FederatedState{Code: "c", Provider: "p"})
		require.NoError(t, err)
		clock.Advance(11 * time.Minute)
		_, err = codec.Decode(s)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidState))
	})
}

package oidc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// FederatedState travels through the remote IdP inside its state parameter so
// the callback can recover the pending code and the client's own state.
type FederatedState struct {
	Code     string `json:"c"`
	State    string `json:"s,omitempty"`
	Provider string `json:"p"`
	UserType string `json:"u,omitempty"`
	IssuedAt int64  `json:"t"`
}

// StateCodec signs FederatedState values with HMAC-SHA256. The wire form is
// base64url(json) "." base64url(mac); the client state is never split on a
// separator, so it may contain any characters.
type StateCodec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewStateCodec creates a codec. maxAge should match the code TTL.
func NewStateCodec(secret string, maxAge time.Duration) *StateCodec {
	return &StateCodec{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (c *StateCodec) mac(payload string) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

// Encode stamps IssuedAt and returns the signed state string
func (c *StateCodec) Encode(st FederatedState) (string, error) {
	st.IssuedAt = c.now().Unix()
	raw, err := json.Marshal(st)
	if err != nil {
		return "", apperrors.InternalWrap(err, "failed to encode federated state")
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + base64.RawURLEncoding.EncodeToString(c.mac(payload)), nil
}

// Decode verifies the signature and age of s. Any failure is ErrCodeInvalidState.
func (c *StateCodec) Decode(s string) (*FederatedState, error) {
	invalid := func(reason string) error {
		return apperrors.New(apperrors.ErrCodeInvalidState, "invalid state: "+reason)
	}

	payload, sig, ok := strings.Cut(s, ".")
	if !ok || payload == "" || sig == "" {
		return nil, invalid("malformed")
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, invalid("malformed signature")
	}
	if !hmac.Equal(got, c.mac(payload)) {
		return nil, invalid("signature mismatch")
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, invalid("malformed payload")
	}
	var st FederatedState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, invalid("malformed payload")
	}
	if st.Code == "" || st.Provider == "" {
		return nil, invalid("missing fields")
	}
	if c.maxAge > 0 && c.now().Sub(time.Unix(st.IssuedAt, 0)) > c.maxAge {
		return nil, invalid("expired")
	}
	return &st, nil
}

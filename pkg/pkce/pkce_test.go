package pkce

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS256Challenge(t *testing.T) {
	// RFC 7636 appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", S256Challenge(verifier))
}

func TestGenerateCodeVerifier(t *testing.T) {
	v, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.Len(t, v, 43)
	assert.NoError(t, ValidateVerifierFormat(v))
}

func TestValidateVerifierFormat(t *testing.T) {
	assert.Error(t, ValidateVerifierFormat(""))
	assert.Error(t, ValidateVerifierFormat("short"))
	assert.Error(t, ValidateVerifierFormat(strings.Repeat("a", 129)))
	assert.Error(t, ValidateVerifierFormat(strings.Repeat("a", 42)+"!"))
	assert.NoError(t, ValidateVerifierFormat(strings.Repeat("a", 43)))
}

func TestNormalizeChallengeMethod(t *testing.T) {
	m, err := NormalizeChallengeMethod("")
	require.NoError(t, err)
	assert.Equal(t, ChallengeS256, m)

	_, err = NormalizeChallengeMethod("plain")
	assert.Error(t, err)
}

package secretary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asunaverse/equipledger/internal/config"
)

func TestTokenRoundTrip(t *testing.T) {
	secretaryService, err := NewSecretaryService(&config.SecretConfig{SecretKey: "jds__63h3_7ds"})
	require.NoError(t, err)

	token, err := secretaryService.GetTokenForAddress("0xAbC123")
	require.NoError(t, err)

	address, err := secretaryService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0xAbC123", address)
}

func TestValidateToken_WrongKey(t *testing.T) {
	issuer, err := NewSecretaryService(&config.SecretConfig{SecretKey: "key-one"})
	require.NoError(t, err)
	verifier, err := NewSecretaryService(&config.SecretConfig{SecretKey: "key-two"})
	require.NoError(t, err)

	token, err := issuer.GetTokenForAddress("0xAbC123")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	secretaryService, err := NewSecretaryService(&config.SecretConfig{SecretKey: "jds__63h3_7ds"})
	require.NoError(t, err)

	_, err = secretaryService.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestNewSecretaryService_EmptyKey(t *testing.T) {
	_, err := NewSecretaryService(&config.SecretConfig{})
	assert.Error(t, err)
}

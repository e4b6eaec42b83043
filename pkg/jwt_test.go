package pkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	token, err := GenerateToken("42", "canvas@flow.dev", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "canvas@flow.dev", claims.Email)
}

func TestValidateToken_Rejects(t *testing.T) {
	token, err := GenerateToken("42", "canvas@flow.dev", "secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("42", "canvas@flow.dev", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateToken("not-a-token", "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

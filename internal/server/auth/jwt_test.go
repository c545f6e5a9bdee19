package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestTokenRoundtrip(t *testing.T) {
	token, err := GenerateToken("u1", secret, time.Hour)
	require.NoError(t, err)

	uid, err := GetUserIDFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateToken("u1", secret, -time.Minute)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(token, secret)
	assert.Error(t, err)
}

func TestWrongSecret(t *testing.T) {
	token, err := GenerateToken("u1", secret, time.Hour)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(token, []byte("other-secret"))
	assert.Error(t, err)
}

func TestGarbageToken(t *testing.T) {
	_, err := GetUserIDFromToken("not.a.jwt", secret)
	assert.Error(t, err)
}

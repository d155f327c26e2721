package services

import (
	"testing"
	"time"

	"civilsite-backend-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService("secret", "civilsite", time.Hour)

	signed, exp, err := tokens.CreateSessionToken(models.Admin{ID: 7, Username: "dana", Role: models.RoleEmployee})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	session, err := tokens.ParseSession(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(7), session.AdminID)
	assert.Equal(t, "dana", session.Username)
	assert.Equal(t, models.RoleEmployee, session.Role)
	assert.False(t, session.IsAdmin())
}

func TestParseSessionRejectsExpiredToken(t *testing.T) {
	tokens := NewTokenService("secret", "civilsite", time.Hour)
	signed, _, err := tokens.CreateSessionToken(models.Admin{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tokens.ParseSession(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseSessionRejectsForeignTokens(t *testing.T) {
	tokens := NewTokenService("secret", "civilsite", time.Hour)

	other := NewTokenService("other-secret", "civilsite", time.Hour)
	signed, _, err := other.CreateSessionToken(models.Admin{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = tokens.ParseSession(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer := NewTokenService("secret", "elsewhere", time.Hour)
	signed, _, err = otherIssuer.CreateSessionToken(models.Admin{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = tokens.ParseSession(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.ParseSession("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseSessionRejectsUnknownRole(t *testing.T) {
	tokens := NewTokenService("secret", "civilsite", time.Hour)
	signed, _, err := tokens.CreateSessionToken(models.Admin{ID: 1, Role: "OWNER"})
	require.NoError(t, err)
	_, err = tokens.ParseSession(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	tokens := NewTokenService("secret", "civilsite", time.Hour)

	hash, err := tokens.HashPassword("correct horse")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")
	assert.True(t, tokens.VerifyPassword("correct horse", hash))
	assert.False(t, tokens.VerifyPassword("wrong horse", hash))

	legacy, err := bcrypt.GenerateFromPassword([]byte("old password"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, tokens.VerifyPassword("old password", string(legacy)))
	assert.False(t, tokens.VerifyPassword("new password", string(legacy)))

	assert.False(t, tokens.VerifyPassword("x", "$argon2id$garbage"))
}

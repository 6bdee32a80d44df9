package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticateJWT(t *testing.T) {
	require.NoError(t, Init(0))

	id := Identity{ID: uuid.New(), Name: "alice"}
	token, err := CreateJWT(id)
	require.NoError(t, err)

	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestAuthenticateJWTRejectsForeignKey(t *testing.T) {
	require.NoError(t, Init(time.Hour))
	token, err := CreateJWT(NewGuest())
	require.NoError(t, err)

	require.NoError(t, Init(time.Hour))
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticateJWTRejectsExpired(t *testing.T) {
	require.NoError(t, Init(time.Hour))
	c := claims{Name: "old", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c).SignedString(privateKey)
	require.NoError(t, err)

	_, err = AuthenticateJWT(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthenticateJWTRejectsBadSubject(t *testing.T) {
	require.NoError(t, Init(0))
	c := claims{Name: "x", RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c).SignedString(privateKey)
	require.NoError(t, err)

	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
	_, err = AuthenticateJWT("garbage")
	assert.Error(t, err)
}

func TestInitFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath, pubPath := filepath.Join(dir, "key"), filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	require.NoError(t, InitFromPath(privPath, pubPath, time.Hour))
	token, err := CreateJWT(Identity{ID: uuid.New(), Name: "bob"})
	require.NoError(t, err)
	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Name)

	assert.Error(t, InitFromPath(filepath.Join(dir, "missing"), pubPath, 0))
}

func TestNewGuest(t *testing.T) {
	g := NewGuest()
	assert.True(t, g.Guest)
	assert.NotEqual(t, uuid.Nil, g.ID)
	assert.Contains(t, g.Name, "Guest-")
}

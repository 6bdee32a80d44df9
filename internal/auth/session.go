// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session token.
const CookieName = "auth_token"

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenExpire is the JWT lifetime; zero issues tokens without an exp claim.
	tokenExpire time.Duration
)

// Identity is who a connection plays as.
type Identity struct {
	ID    uuid.UUID
	Name  string
	Guest bool
}

type claims struct {
	Name  string `json:"name"`
	Guest bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// Init generates a fresh ed25519 key pair at runtime and sets the token lifetime.
func Init(expire time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	publicKey, privateKey = pub, priv
	tokenExpire = expire
	return nil
}

// InitFromPath reads ed25519 private/public keys from file and sets the token lifetime.
func InitFromPath(privatePath, publicPath string, expire time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return errors.New("key files are not raw ed25519 keys")
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenExpire = expire
	return nil
}

// CreateJWT signs a token with "sub" = id and the display name.
func CreateJWT(id Identity) (string, error) {
	if privateKey == nil {
		return "", errors.New("auth keys not initialized")
	}
	c := claims{
		Name:  id.Name,
		Guest: id.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.ID.String(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if tokenExpire > 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(tokenExpire))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a JWT string and returns the identity it carries.
func AuthenticateJWT(tokenString string) (Identity, error) {
	var c claims
	t, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Identity{}, errors.New("invalid token")
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid user ID in token: %w", err)
	}
	return Identity{ID: id, Name: c.Name, Guest: c.Guest}, nil
}

// NewGuest mints an identity for a visitor without a valid token.
func NewGuest() Identity {
	id := uuid.New()
	return Identity{ID: id, Name: "Guest-" + id.String()[:4], Guest: true}
}

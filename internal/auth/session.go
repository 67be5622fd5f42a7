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

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated user behind a request. The game treats both
// fields as opaque.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Authenticator signs and verifies EdDSA session tokens.
type Authenticator struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// ttl is the token lifetime; zero means tokens never expire.
	ttl time.Duration
}

// NewEphemeral generates a fresh ed25519 key pair at runtime. Tokens signed
// by a previous process are rejected.
func NewEphemeral(ttl time.Duration) (*Authenticator, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Authenticator{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// NewFromPath reads raw ed25519 private/public keys from file.
func NewFromPath(privatePath, publicPath string, ttl time.Duration) (*Authenticator, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("unexpected ed25519 key sizes %d/%d", len(privateKeyData), len(publicKeyData))
	}
	return &Authenticator{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
	}, nil
}

// CreateJWT creates a signed token with "sub" = user id and "name" = username.
func (a *Authenticator) CreateJWT(id Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":  id.UserID.String(),
		"name": id.Username,
		"iat":  time.Now().Unix(),
	}
	if a.ttl > 0 {
		claims["exp"] = time.Now().Add(a.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(a.privateKey)
}

// AuthenticateJWT verifies a token string and returns the identity it carries.
func (a *Authenticator) AuthenticateJWT(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrUnauthenticated
	}
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.publicKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: jwt parse error: %v", ErrUnauthenticated, err)
	}
	if !t.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid jwt claims", ErrUnauthenticated)
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return Identity{}, fmt.Errorf("%w: missing sub in jwt", ErrUnauthenticated)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: malformed sub: %v", ErrUnauthenticated, err)
	}
	name, _ := claims["name"].(string)

	return Identity{UserID: userID, Username: name}, nil
}

// internal/auth/tokens.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Tokens signs and verifies ed25519 JWTs whose subject is a user id.
type Tokens struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	ttl     time.Duration // zero means tokens never expire
	clock   clockwork.Clock
}

// NewTokens generates a fresh key pair. Tokens do not survive a restart.
func NewTokens(ttl time.Duration, clock clockwork.Clock) (*Tokens, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Tokens{private: private, public: public, ttl: ttl, clock: clock}, nil
}

// NewTokensFromFiles loads a raw ed25519 key pair from disk.
func NewTokensFromFiles(privatePath, publicPath string, ttl time.Duration, clock clockwork.Clock) (*Tokens, error) {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("unexpected ed25519 key sizes %d/%d", len(priv), len(pub))
	}
	return &Tokens{private: priv, public: pub, ttl: ttl, clock: clock}, nil
}

// CreateToken signs a token for userID.
func (t *Tokens) CreateToken(userID uuid.UUID) (string, error) {
	now := t.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(t.private)
}

// VerifyToken checks the signature and expiry and returns the subject.
func (t *Tokens) VerifyToken(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.public, nil
	}, jwt.WithTimeFunc(t.clock.Now), jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

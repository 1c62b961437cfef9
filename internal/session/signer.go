package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Signer signs and validates session tokens.
type Signer struct {
	keys       *KeyManager
	sessionTTL time.Duration
}

// NewSigner constructs a session token signer.
func NewSigner(keys *KeyManager, sessionTTL time.Duration) *Signer {
	return &Signer{keys: keys, sessionTTL: sessionTTL}
}

// TTL returns the fixed session lifetime.
func (s *Signer) TTL() time.Duration {
	return s.sessionTTL
}

// Sign produces a signed compact token carrying the claims. Session
// lifetime is fixed; sliding refresh happens by reissuing, not extending.
func (s *Signer) Sign(ctx context.Context, claims Claims) (string, error) {
	key, err := s.keys.EnsureSigningKey(ctx)
	if err != nil {
		return "", fmt.Errorf("signing key: %w", err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.SignatureAlgorithm(key.Algorithm), Key: key.Secret},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", key.KID),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   strconv.FormatInt(claims.UserID, 10),
		IssuedAt:  gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(s.sessionTTL)),
		NotBefore: gojwt.NewNumericDate(now),
	}

	serialized, err := gojwt.Signed(signer).Claims(std).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize session token: %w", err)
	}
	return serialized, nil
}

// Validate verifies the token signature and expiry and returns its claims.
func (s *Signer) Validate(ctx context.Context, token string) (Claims, error) {
	key, err := s.keys.EnsureSigningKey(ctx)
	if err != nil {
		return Claims{}, fmt.Errorf("signing key: %w", err)
	}

	parsed, err := gojwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.SignatureAlgorithm(key.Algorithm)})
	if err != nil {
		return Claims{}, fmt.Errorf("parse session token: %w", err)
	}

	var std gojwt.Claims
	var claims Claims
	if err := parsed.Claims(key.Secret, &std, &claims); err != nil {
		return Claims{}, fmt.Errorf("verify session token: %w", err)
	}
	if err := std.Validate(gojwt.Expected{Time: time.Now()}); err != nil {
		return Claims{}, fmt.Errorf("validate session token: %w", err)
	}

	return claims, nil
}

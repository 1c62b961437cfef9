// Package token issues the single-use tokens backing email verification,
// password reset, and two-factor login.
package token

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/repository"
)

// Issuer creates tokens, replacing any outstanding token for the same
// (purpose, email) pair.
type Issuer struct {
	tokens    repository.TokenRepository
	node      *snowflake.Node
	verifyTTL time.Duration
	resetTTL  time.Duration
	codeTTL   time.Duration
}

// NewIssuer wires dependencies.
func NewIssuer(tokens repository.TokenRepository, node *snowflake.Node, verifyTTL, resetTTL, codeTTL time.Duration) *Issuer {
	return &Issuer{
		tokens:    tokens,
		node:      node,
		verifyTTL: verifyTTL,
		resetTTL:  resetTTL,
		codeTTL:   codeTTL,
	}
}

// Issue generates a token for the given purpose and subject email. The
// value is a UUID for verification/reset tokens and a 6-digit numeric code
// for two-factor tokens. Storage failures propagate to the caller.
func (i *Issuer) Issue(ctx context.Context, purpose domain.TokenPurpose, email string) (domain.AuthToken, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return domain.AuthToken{}, fmt.Errorf("issue token: empty email")
	}

	var (
		value string
		ttl   time.Duration
	)
	switch purpose {
	case domain.TokenEmailVerify:
		value = uuid.NewString()
		ttl = i.verifyTTL
	case domain.TokenPasswordReset:
		value = uuid.NewString()
		ttl = i.resetTTL
	case domain.TokenTwoFactor:
		code, err := numericCode(6)
		if err != nil {
			return domain.AuthToken{}, fmt.Errorf("generate code: %w", err)
		}
		value = code
		ttl = i.codeTTL
	default:
		return domain.AuthToken{}, fmt.Errorf("issue token: unknown purpose %q", purpose)
	}

	created, err := i.tokens.Replace(ctx, domain.AuthToken{
		ID:        i.node.Generate().Int64(),
		Purpose:   purpose,
		Email:     normalized,
		Token:     value,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("persist token: %w", err)
	}
	return created, nil
}

func numericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for range digits {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// Package twofactor validates submitted two-factor codes and manages the
// single-use confirmation consumed at the next credentials sign-in.
package twofactor

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/repository"
)

// Outcome is the terminal state of a code submission.
type Outcome string

const (
	Accepted Outcome = "ACCEPTED"
	Rejected Outcome = "REJECTED"
	Expired  Outcome = "EXPIRED"
)

// Gate validates codes against the latest issued two-factor token.
type Gate struct {
	tokens        repository.TokenRepository
	confirmations repository.ConfirmationRepository
	limiter       *Limiter
	node          *snowflake.Node
	logger        *zap.Logger
}

// NewGate wires dependencies. The limiter is optional.
func NewGate(tokens repository.TokenRepository, confirmations repository.ConfirmationRepository, limiter *Limiter, node *snowflake.Node, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.L()
	}
	return &Gate{
		tokens:        tokens,
		confirmations: confirmations,
		limiter:       limiter,
		node:          node,
		logger:        logger,
	}
}

// Submit checks the code for the user. Expiry is decided before the value
// comparison so a stale code always reports Expired, never Rejected. On
// acceptance the consumed token is deleted and a fresh confirmation row
// replaces any prior one.
func (g *Gate) Submit(ctx context.Context, user domain.User, code string) (Outcome, error) {
	if g.limiter != nil && !g.limiter.Allow(ctx, user.Email) {
		g.logger.Warn("two-factor attempts throttled", zap.Int64("user_id", user.ID))
		return Rejected, autherr.ErrTwoFactorInvalid
	}

	stored, err := g.tokens.GetByEmail(ctx, domain.TokenTwoFactor, user.Email)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return Rejected, autherr.ErrTwoFactorInvalid
		}
		return Rejected, fmt.Errorf("load two-factor token: %w", err)
	}

	if stored.Expired(time.Now()) {
		if err := g.tokens.Delete(ctx, stored.ID); err != nil {
			g.logger.Warn("delete expired two-factor token", zap.Error(err))
		}
		return Expired, autherr.ErrTwoFactorExpired
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(stored.Token)) != 1 {
		return Rejected, autherr.ErrTwoFactorInvalid
	}

	if err := g.tokens.Delete(ctx, stored.ID); err != nil {
		return Rejected, fmt.Errorf("consume two-factor token: %w", err)
	}
	if _, err := g.confirmations.Replace(ctx, domain.TwoFactorConfirmation{
		ID:     g.node.Generate().Int64(),
		UserID: user.ID,
	}); err != nil {
		return Rejected, fmt.Errorf("create confirmation: %w", err)
	}

	if g.limiter != nil {
		g.limiter.Reset(ctx, user.Email)
	}
	return Accepted, nil
}

// Consume uses up the confirmation created by an accepted code. It succeeds
// exactly once per confirmation.
func (g *Gate) Consume(ctx context.Context, userID int64) error {
	if err := g.confirmations.Consume(ctx, userID); err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return autherr.ErrTwoFactorRequired
		}
		return fmt.Errorf("consume confirmation: %w", err)
	}
	return nil
}

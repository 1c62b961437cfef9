package twofactor_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/twofactor"
)

func newGate(t *testing.T) (*twofactor.Gate, *memoryTokenRepo, *memoryConfirmationRepo) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	tokens := &memoryTokenRepo{}
	confirmations := &memoryConfirmationRepo{}
	return twofactor.NewGate(tokens, confirmations, nil, node, zap.NewNop()), tokens, confirmations
}

func testUser() domain.User {
	return domain.User{ID: 7, Email: "a@x.com", TwoFactorEnabled: true}
}

func TestSubmitRejectsWhenNoToken(t *testing.T) {
	gate, _, _ := newGate(t)

	outcome, err := gate.Submit(context.Background(), testUser(), "123456")
	require.Equal(t, twofactor.Rejected, outcome)
	require.ErrorIs(t, err, autherr.ErrTwoFactorInvalid)
}

func TestSubmitRejectsWrongCode(t *testing.T) {
	gate, tokens, confirmations := newGate(t)
	tokens.put(domain.AuthToken{ID: 1, Purpose: domain.TokenTwoFactor, Email: "a@x.com", Token: "123456", ExpiresAt: time.Now().Add(time.Minute)})

	outcome, err := gate.Submit(context.Background(), testUser(), "654321")
	require.Equal(t, twofactor.Rejected, outcome)
	require.ErrorIs(t, err, autherr.ErrTwoFactorInvalid)
	require.Zero(t, confirmations.replaced)
}

func TestSubmitExpiredBeatsWrongCode(t *testing.T) {
	gate, tokens, _ := newGate(t)
	tokens.put(domain.AuthToken{ID: 1, Purpose: domain.TokenTwoFactor, Email: "a@x.com", Token: "123456", ExpiresAt: time.Now().Add(-time.Second)})

	// Expired wins even when the value is also wrong.
	outcome, err := gate.Submit(context.Background(), testUser(), "000000")
	require.Equal(t, twofactor.Expired, outcome)
	require.ErrorIs(t, err, autherr.ErrTwoFactorExpired)
	require.Empty(t, tokens.tokens)
}

func TestSubmitAcceptedConsumesTokenAndCreatesConfirmation(t *testing.T) {
	gate, tokens, confirmations := newGate(t)
	tokens.put(domain.AuthToken{ID: 1, Purpose: domain.TokenTwoFactor, Email: "a@x.com", Token: "123456", ExpiresAt: time.Now().Add(time.Minute)})
	ctx := context.Background()

	outcome, err := gate.Submit(ctx, testUser(), "123456")
	require.NoError(t, err)
	require.Equal(t, twofactor.Accepted, outcome)
	require.Empty(t, tokens.tokens)
	require.Equal(t, 1, confirmations.replaced)

	// The confirmation is consumed exactly once.
	require.NoError(t, gate.Consume(ctx, 7))
	require.ErrorIs(t, gate.Consume(ctx, 7), autherr.ErrTwoFactorRequired)
}

func TestSubmitAcceptedResetsAttemptBudget(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	tokens := &memoryTokenRepo{}
	limiter := newTestLimiter(t, 2)
	gate := twofactor.NewGate(tokens, &memoryConfirmationRepo{}, limiter, node, zap.NewNop())
	ctx := context.Background()

	tokens.put(domain.AuthToken{ID: 1, Purpose: domain.TokenTwoFactor, Email: "a@x.com", Token: "123456", ExpiresAt: time.Now().Add(time.Minute)})

	// One wrong attempt, then a correct one.
	_, err = gate.Submit(ctx, testUser(), "000000")
	require.ErrorIs(t, err, autherr.ErrTwoFactorInvalid)

	outcome, err := gate.Submit(ctx, testUser(), "123456")
	require.NoError(t, err)
	require.Equal(t, twofactor.Accepted, outcome)

	// Acceptance cleared the counter, so the next sign-in starts fresh.
	require.True(t, limiter.Allow(ctx, "a@x.com"))
	require.True(t, limiter.Allow(ctx, "a@x.com"))
}

type memoryTokenRepo struct {
	tokens []domain.AuthToken
}

func (m *memoryTokenRepo) put(token domain.AuthToken) {
	m.tokens = append(m.tokens, token)
}

func (m *memoryTokenRepo) Replace(ctx context.Context, token domain.AuthToken) (domain.AuthToken, error) {
	kept := m.tokens[:0]
	for _, t := range m.tokens {
		if t.Purpose != token.Purpose || t.Email != token.Email {
			kept = append(kept, t)
		}
	}
	m.tokens = append(kept, token)
	return token, nil
}

func (m *memoryTokenRepo) GetByEmail(ctx context.Context, purpose domain.TokenPurpose, email string) (domain.AuthToken, error) {
	for _, t := range m.tokens {
		if t.Purpose == purpose && t.Email == email {
			return t, nil
		}
	}
	return domain.AuthToken{}, autherr.ErrNotFound
}

func (m *memoryTokenRepo) GetByToken(ctx context.Context, purpose domain.TokenPurpose, value string) (domain.AuthToken, error) {
	for _, t := range m.tokens {
		if t.Purpose == purpose && t.Token == value {
			return t, nil
		}
	}
	return domain.AuthToken{}, autherr.ErrNotFound
}

func (m *memoryTokenRepo) Delete(ctx context.Context, tokenID int64) error {
	for i, t := range m.tokens {
		if t.ID == tokenID {
			m.tokens = append(m.tokens[:i], m.tokens[i+1:]...)
			return nil
		}
	}
	return nil
}

type memoryConfirmationRepo struct {
	byUser   map[int64]domain.TwoFactorConfirmation
	replaced int
}

func (m *memoryConfirmationRepo) Replace(ctx context.Context, c domain.TwoFactorConfirmation) (domain.TwoFactorConfirmation, error) {
	if m.byUser == nil {
		m.byUser = make(map[int64]domain.TwoFactorConfirmation)
	}
	m.byUser[c.UserID] = c
	m.replaced++
	return c, nil
}

func (m *memoryConfirmationRepo) Consume(ctx context.Context, userID int64) error {
	if _, ok := m.byUser[userID]; !ok {
		return autherr.ErrNotFound
	}
	delete(m.byUser, userID)
	return nil
}

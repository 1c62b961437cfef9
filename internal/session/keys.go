package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/repository"
)

// KeyManager ensures an active signing key always exists.
type KeyManager struct {
	repo repository.KeyRepository
	node *snowflake.Node
}

// NewKeyManager creates a KeyManager.
func NewKeyManager(repo repository.KeyRepository, node *snowflake.Node) *KeyManager {
	return &KeyManager{repo: repo, node: node}
}

// EnsureSigningKey returns the active key or creates one if missing.
func (m *KeyManager) EnsureSigningKey(ctx context.Context) (domain.SigningKey, error) {
	key, err := m.repo.GetActiveKey(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, autherr.ErrNotFound) {
		return domain.SigningKey{}, fmt.Errorf("ensure signing key: %w", err)
	}

	secret := make([]byte, 64)
	if _, randErr := rand.Read(secret); randErr != nil {
		return domain.SigningKey{}, fmt.Errorf("generate secret: %w", randErr)
	}

	created, err := m.repo.CreateKey(ctx, domain.SigningKey{
		ID:        m.node.Generate().Int64(),
		KID:       uuid.NewString(),
		Secret:    secret,
		Algorithm: string(jose.HS256),
		Active:    true,
	})
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("persist signing key: %w", err)
	}
	return created, nil
}

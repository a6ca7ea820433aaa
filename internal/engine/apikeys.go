package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shiftflow/internal/domain"
	"shiftflow/internal/repo"
)

// CreateAPIKey mints a key for an employee and stores only its hash. The
// plaintext is returned once and never recoverable afterwards.
func (e Engine) CreateAPIKey(ctx context.Context, employeeID, name, actorID string) (domain.APIKey, string, error) {
	if _, err := e.requireManager(ctx, actorID, "apikey.create"); err != nil {
		return domain.APIKey{}, "", err
	}
	if _, err := e.Repo.GetEmployee(ctx, employeeID); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("employee %s: %w", employeeID, err)
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", err
	}
	plaintext := "sfk_" + hex.EncodeToString(raw)
	key := domain.APIKey{
		ID:         uuid.New().String(),
		EmployeeID: employeeID,
		Name:       name,
		KeyHash:    repo.HashAPIKey(plaintext),
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, employeeID, actorID string) ([]domain.APIKey, error) {
	if _, err := e.requireManager(ctx, actorID, "apikey.list"); err != nil {
		return nil, err
	}
	return e.Repo.ListAPIKeys(ctx, employeeID)
}

func (e Engine) DeleteAPIKey(ctx context.Context, id, actorID string) error {
	if _, err := e.requireManager(ctx, actorID, "apikey.delete"); err != nil {
		return err
	}
	return e.Repo.DeleteAPIKey(ctx, id)
}

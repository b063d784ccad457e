package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"

	"checkline/internal/domain"
	"checkline/internal/repo"
	"checkline/internal/validate"
)

// CreateAPIKey mints a key for a principal. The plaintext is returned once
// and never stored; only its hash lands in the database.
func (e Engine) CreateAPIKey(ctx context.Context, email, name, role string) (domain.APIKey, string, error) {
	if email == "" {
		return domain.APIKey{}, "", ValidationError{"email is required"}
	}
	if !validate.Email(email) {
		return domain.APIKey{}, "", ValidationError{"invalid email format"}
	}
	if !validate.Role(role) {
		return domain.APIKey{}, "", ValidationError{"invalid role: must be supervisor or collaborator"}
	}
	plaintext, err := newAPIKeySecret()
	if err != nil {
		return domain.APIKey{}, "", err
	}
	key := domain.APIKey{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Role:      role,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.nowString(),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}

func (e Engine) DeleteAPIKey(ctx context.Context, id string) error {
	err := e.Repo.DeleteAPIKey(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{"api key not found"}
	}
	return err
}

func newAPIKeySecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "clk_" + hex.EncodeToString(buf), nil
}

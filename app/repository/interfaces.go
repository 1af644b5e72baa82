package repository

import (
	"context"

	"github.com/ManuelReschke/ScreenShow/app/models"
)

// CredentialRepository defines the interface for API secret storage
type CredentialRepository interface {
	// GetByAccountID returns gorm.ErrRecordNotFound when the account has no secret.
	GetByAccountID(ctx context.Context, accountID string) (*models.Credential, error)
	// CreateIfAbsent inserts cred unless the account already has one and
	// reports whether the row was written.
	CreateIfAbsent(ctx context.Context, cred *models.Credential) (bool, error)
	// Upsert replaces the account's secret in a single statement.
	Upsert(ctx context.Context, cred *models.Credential) error
}

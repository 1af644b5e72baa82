package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/ScreenShow/app/models"
)

// credentialRepository implements the CredentialRepository interface
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository instance
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) CreateIfAbsent(ctx context.Context, cred *models.Credential) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(cred)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"digest",
			"last4",
			"created_at",
			"updated_at",
		}),
	}).Create(cred).Error; err != nil {
		return err
	}

	// The surviving row keeps its original primary key.
	var stored models.Credential
	if err := db.Where("account_id = ?", cred.AccountID).First(&stored).Error; err != nil {
		return err
	}
	*cred = stored
	return nil
}

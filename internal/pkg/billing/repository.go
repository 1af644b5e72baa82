package billing

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/ScreenShow/app/models"
)

// Repository provides DB operations used by the billing services.
type Repository interface {
	GetSubscription(ctx context.Context, accountID string) (*models.Subscription, error)
	// LockSubscription reads the row with SELECT ... FOR UPDATE. Only
	// meaningful inside Transaction.
	LockSubscription(ctx context.Context, accountID string) (*models.Subscription, error)
	// UpsertSubscription writes sub keyed by account id. The plan column is
	// only overwritten on existing rows when updatePlan is set.
	UpsertSubscription(ctx context.Context, sub *models.Subscription, updatePlan bool) error
	GetCustomerMapping(ctx context.Context, accountID string) (*models.CustomerMapping, error)
	GetCustomerMappingByStripeID(ctx context.Context, stripeCustomerID string) (*models.CustomerMapping, error)
	CreateCustomerMappingIfNotExists(ctx context.Context, m *models.CustomerMapping) (bool, error)
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
	// Transaction runs fn against a repository bound to one DB transaction.
	Transaction(ctx context.Context, fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSubscription(ctx context.Context, accountID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) LockSubscription(ctx context.Context, accountID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := subscriptionForUpdate(r.db.WithContext(ctx), accountID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func subscriptionForUpdate(db *gorm.DB, accountID string) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("account_id = ?", accountID)
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription, updatePlan bool) error {
	columns := []string{
		"stripe_subscription_id",
		"status",
		"current_period_end",
		"last_event_id",
		"last_event_at",
		"updated_at",
	}
	if updatePlan {
		columns = append(columns, "plan")
	}

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(sub).Error; err != nil {
		return err
	}

	var stored models.Subscription
	if err := db.Where("account_id = ?", sub.AccountID).First(&stored).Error; err != nil {
		return err
	}
	*sub = stored
	return nil
}

func (r *gormRepository) GetCustomerMapping(ctx context.Context, accountID string) (*models.CustomerMapping, error) {
	var m models.CustomerMapping
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) GetCustomerMappingByStripeID(ctx context.Context, stripeCustomerID string) (*models.CustomerMapping, error) {
	var m models.CustomerMapping
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", stripeCustomerID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) CreateCustomerMappingIfNotExists(ctx context.Context, m *models.CustomerMapping) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(m)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

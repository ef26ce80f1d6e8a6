package billing

import (
	"time"

	"github.com/mfeldt/litestripe/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service. The store is
// expected to give atomic lookup-or-create plus update semantics per
// subscription row (unique index on stripe_subscription_id); the
// reconciliation logic is written as single-threaded per record on top of
// that guarantee.
type Repository interface {
	GetOrCreateSubscription(stripeSubscriptionID string) (*models.StripeSubscription, bool, error)
	SaveSubscription(sub *models.StripeSubscription) error
	GetSubscription(stripeSubscriptionID string) (*models.StripeSubscription, error)
	CreateOrphanedPayment(op *models.OrphanedPayment) error
	ListOrphanedPayments(limit int) ([]models.OrphanedPayment, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrCreateSubscription(stripeSubscriptionID string) (*models.StripeSubscription, bool, error) {
	sub := &models.StripeSubscription{StripeSubscriptionID: stripeSubscriptionID}
	tx := r.db.Where("stripe_subscription_id = ?", stripeSubscriptionID).FirstOrCreate(sub)
	if tx.Error != nil {
		return nil, false, tx.Error
	}
	return sub, tx.RowsAffected > 0, nil
}

func (r *gormRepository) SaveSubscription(sub *models.StripeSubscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) GetSubscription(stripeSubscriptionID string) (*models.StripeSubscription, error) {
	var sub models.StripeSubscription
	err := r.db.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateOrphanedPayment(op *models.OrphanedPayment) error {
	return r.db.Create(op).Error
}

func (r *gormRepository) ListOrphanedPayments(limit int) ([]models.OrphanedPayment, error) {
	var orphans []models.OrphanedPayment
	q := r.db.Order("dt_created DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&orphans).Error
	return orphans, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("stripe_event_id = ?", event.StripeEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

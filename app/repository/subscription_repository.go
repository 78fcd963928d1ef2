package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yuu19/SubTrack/app/models"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUserID returns the user's subscriptions newest-created-first.
func (r *subscriptionRepository) GetByUserID(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// Delete removes a subscription scoped to its owner.
func (r *subscriptionRepository) Delete(id, userID uint) error {
	return r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Subscription{}).Error
}

// GetAll returns every subscription regardless of owner. Used by the
// notification dispatcher.
func (r *subscriptionRepository) GetAll(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).Find(&subs).Error
	return subs, err
}

// UpdateBilling persists recomputed derived billing fields only.
func (r *subscriptionRepository) UpdateBilling(ctx context.Context, id uint, nextBillingAt string, daysUntil int) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Updates(map[string]interface{}{
		"next_billing_at":         nextBillingAt,
		"days_until_next_billing": daysUntil,
	}).Error
}

// StampNotified sets the same-day notification watermark.
func (r *subscriptionRepository) StampNotified(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).
		Update("last_notified_at", at).Error
}

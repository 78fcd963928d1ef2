package repository

import (
	"context"
	"time"

	"github.com/yuu19/SubTrack/app/models"
)

// SubscriptionRepository defines the database operations for tracked
// subscriptions. The context-taking methods are the ones the notification
// dispatcher runs against.
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByUserID(userID uint) ([]models.Subscription, error)
	Update(sub *models.Subscription) error
	Delete(id, userID uint) error

	GetAll(ctx context.Context) ([]models.Subscription, error)
	UpdateBilling(ctx context.Context, id uint, nextBillingAt string, daysUntil int) error
	StampNotified(ctx context.Context, id uint, at time.Time) error
}

// PushEndpointRepository defines the database operations for registered
// web-push endpoints.
type PushEndpointRepository interface {
	Upsert(endpoint *models.PushEndpoint) error
	DeleteByUserEndpoint(userID uint, endpoint string) error
	CountByUserID(userID uint) (int64, error)

	GetByUserIDs(ctx context.Context, userIDs []uint) ([]models.PushEndpoint, error)
	Delete(ctx context.Context, id uint) error
}

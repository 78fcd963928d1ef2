package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yuu19/SubTrack/app/models"
)

// pushEndpointRepository implements the PushEndpointRepository interface
type pushEndpointRepository struct {
	db *gorm.DB
}

// NewPushEndpointRepository creates a new push endpoint repository instance
func NewPushEndpointRepository(db *gorm.DB) PushEndpointRepository {
	return &pushEndpointRepository{db: db}
}

// Upsert registers an endpoint, updating the key material of an existing
// (user, endpoint) pair instead of duplicating it.
func (r *pushEndpointRepository) Upsert(endpoint *models.PushEndpoint) error {
	var existing models.PushEndpoint
	err := r.db.Where("user_id = ? AND endpoint = ?", endpoint.UserID, endpoint.Endpoint).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.Create(endpoint).Error
		}
		return err
	}

	existing.P256dh = endpoint.P256dh
	existing.Auth = endpoint.Auth
	existing.ExpirationTime = endpoint.ExpirationTime
	existing.UserAgent = endpoint.UserAgent
	if err := r.db.Save(&existing).Error; err != nil {
		return err
	}
	*endpoint = existing
	return nil
}

func (r *pushEndpointRepository) DeleteByUserEndpoint(userID uint, endpoint string) error {
	return r.db.Where("user_id = ? AND endpoint = ?", userID, endpoint).Delete(&models.PushEndpoint{}).Error
}

func (r *pushEndpointRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.PushEndpoint{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// GetByUserIDs loads the endpoints of several owners in a single query.
func (r *pushEndpointRepository) GetByUserIDs(ctx context.Context, userIDs []uint) ([]models.PushEndpoint, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var endpoints []models.PushEndpoint
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&endpoints).Error
	return endpoints, err
}

func (r *pushEndpointRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.PushEndpoint{}, id).Error
}

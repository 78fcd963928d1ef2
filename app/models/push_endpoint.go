package models

import "time"

// PushEndpoint is one registered web-push delivery target of a user. A user
// may hold several (one per browser/device); (UserID, Endpoint) is unique.
type PushEndpoint struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index:ux_push_endpoints_user_endpoint,unique,priority:1" json:"user_id"`
	Endpoint       string    `gorm:"type:varchar(500);not null;index:ux_push_endpoints_user_endpoint,unique,priority:2" json:"endpoint"`
	P256dh         string    `gorm:"type:varchar(255);not null" json:"p256dh"`
	Auth           string    `gorm:"type:varchar(255);not null" json:"auth"`
	ExpirationTime *int64    `gorm:"default:null" json:"expiration_time,omitempty"`
	UserAgent      string    `gorm:"type:varchar(255);default:null" json:"user_agent,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

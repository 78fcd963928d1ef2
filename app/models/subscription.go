package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	CycleMonthly   = "monthly"
	CycleQuarterly = "quarterly"
	CycleYearly    = "yearly"
)

// TagList is an ordered list of free-form tags stored as a JSON text column.
type TagList []string

func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		t = TagList{}
	}
	return json.Marshal(t)
}

func (t *TagList) Scan(value interface{}) error {
	if value == nil {
		*t = TagList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported tag list source type %T", value)
	}
}

// Subscription is a user-declared recurring payment. NextBillingAt and
// DaysUntilNextBilling are derived fields kept self-correcting by the
// billing calculator on every load and dispatch run.
type Subscription struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	UserID               uint            `gorm:"not null;index" json:"user_id"`
	ServiceName          string          `gorm:"type:varchar(150)" json:"service_name" validate:"required,min=1,max=150"`
	Cycle                string          `gorm:"type:varchar(20);default:'monthly'" json:"cycle" validate:"oneof=monthly quarterly yearly"`
	Amount               decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	FirstPaymentDate     string          `gorm:"type:varchar(30)" json:"first_payment_date" validate:"required"`
	NextBillingAt        string          `gorm:"type:varchar(40)" json:"next_billing_at"`
	DaysUntilNextBilling int             `json:"days_until_next_billing"`
	NotifyDaysBefore     int             `gorm:"default:1" json:"notify_days_before" validate:"gte=0"`
	LastNotifiedAt       *time.Time      `gorm:"type:timestamp;default:null" json:"last_notified_at,omitempty"`
	Tags                 TagList         `gorm:"type:text" json:"tags"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// NotifiedOn reports whether the last-notified watermark falls on the given
// calendar day. A nil watermark means the subscription was never notified.
func (s *Subscription) NotifiedOn(day time.Time) bool {
	if s.LastNotifiedAt == nil {
		return false
	}
	y1, m1, d1 := s.LastNotifiedAt.UTC().Date()
	y2, m2, d2 := day.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Customer links a platform user to a Stripe customer.
type Customer struct {
	ID               string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	StripeCustomerID string            `gorm:"column:stripe_customer_id;type:varchar(255);not null;uniqueIndex" json:"stripe_customer_id"`
	WeeblyUserID     string            `gorm:"column:weebly_user_id;type:varchar(64);not null;uniqueIndex" json:"weebly_user_id"`
	Email            string            `gorm:"column:email;type:varchar(255)" json:"email"`
	Name             string            `gorm:"column:name;type:varchar(255)" json:"name"`
	Metadata         datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customer"
}

package models

import (
	"time"

	"github.com/codoplex/paybridge/pkg/types"
)

// WhitelistEntry grants manual access to a product. A revoked or expired
// entry behaves exactly as if it never existed.
type WhitelistEntry struct {
	ID           string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	WeeblyUserID string                `gorm:"column:weebly_user_id;type:varchar(64);not null;index:idx_whitelist_user_product,priority:1" json:"weebly_user_id"`
	ProductID    string                `gorm:"column:product_id;type:varchar(64);not null;index:idx_whitelist_user_product,priority:2" json:"product_id"`
	Status       types.WhitelistStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ExpiryDate   *time.Time            `gorm:"column:expiry_date;default:null" json:"expiry_date"`
	Reason       string                `gorm:"column:reason;type:text" json:"reason"`
	GrantedBy    string                `gorm:"column:granted_by;type:varchar(64)" json:"granted_by"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func (WhitelistEntry) TableName() string {
	return "whitelist_entry"
}

func (e *WhitelistEntry) Active(now time.Time) bool {
	if e == nil || e.Status != types.WhitelistStatusActive {
		return false
	}
	return e.ExpiryDate == nil || e.ExpiryDate.After(now)
}

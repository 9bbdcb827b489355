package models

import (
	"time"

	"github.com/codoplex/paybridge/pkg/types"
)

// AccessLog is an audit row written whenever access is granted.
type AccessLog struct {
	ID           string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	WeeblyUserID string             `gorm:"column:weebly_user_id;type:varchar(64);not null;index" json:"weebly_user_id"`
	WeeblySiteID string             `gorm:"column:weebly_site_id;type:varchar(64)" json:"weebly_site_id"`
	ProductID    string             `gorm:"column:product_id;type:varchar(64);not null" json:"product_id"`
	Source       types.AccessSource `gorm:"column:source;type:varchar(32);not null" json:"source"`
	GrantedAt    time.Time          `gorm:"column:granted_at;not null" json:"granted_at"`
}

func (AccessLog) TableName() string {
	return "access_log"
}

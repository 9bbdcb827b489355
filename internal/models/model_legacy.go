package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LegacyOrder is an archival row migrated from the previous one-time
// purchase system. Rows are read-mostly; the only write ever performed is
// refreshing the stored access token. Product ids here use the legacy
// numbering and must be translated through ProductLink before lookup.
type LegacyOrder struct {
	ID           string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	WCOrderID    string          `gorm:"column:wc_order_id;type:varchar(64);not null;uniqueIndex" json:"wc_order_id"`
	OrderNumber  string          `gorm:"column:order_number;type:varchar(64)" json:"order_number"`
	WeeblyUserID string          `gorm:"column:weebly_user_id;type:varchar(64);not null;index:idx_legacy_order_user_site,priority:1" json:"weebly_user_id"`
	WeeblySiteID string          `gorm:"column:weebly_site_id;type:varchar(64);index:idx_legacy_order_user_site,priority:2" json:"weebly_site_id"`
	ProductID    string          `gorm:"column:product_id;type:varchar(64);not null" json:"product_id"`
	Status       string          `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(10,2)" json:"amount"`
	AccessToken  *string         `gorm:"column:access_token;type:text" json:"-"`
	OrderDate    time.Time       `gorm:"column:order_date;default:null" json:"order_date"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (LegacyOrder) TableName() string {
	return "legacy_order"
}

// Lifetime order statuses that still grant access. Legacy purchases never
// expire.
var LegacyOrderAccessStatuses = []string{"completed", "processing"}

// LegacySubscription is kept for archival completeness only. The legacy
// subscription access path was disabled before the migration and is not
// consulted by access resolution.
type LegacySubscription struct {
	ID           string     `gorm:"column:id;type:uuid;primary_key" json:"id"`
	WCOrderID    string     `gorm:"column:wc_order_id;type:varchar(64);not null;uniqueIndex" json:"wc_order_id"`
	WeeblyUserID string     `gorm:"column:weebly_user_id;type:varchar(64);not null;index" json:"weebly_user_id"`
	ProductID    string     `gorm:"column:product_id;type:varchar(64);not null" json:"product_id"`
	Status       string     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ExpiryDate   *time.Time `gorm:"column:expiry_date;default:null" json:"expiry_date"`
	RenewalCount int        `gorm:"column:renewal_count;not null;default:0" json:"renewal_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (LegacySubscription) TableName() string {
	return "legacy_subscription"
}

// ProductLink maps a current product id to its legacy counterpart.
type ProductLink struct {
	ProductID       string    `gorm:"column:product_id;type:varchar(64);primary_key" json:"product_id"`
	LegacyProductID string    `gorm:"column:legacy_product_id;type:varchar(64);not null;index" json:"legacy_product_id"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ProductLink) TableName() string {
	return "product_link"
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the read model for a sellable item. Catalog management happens
// elsewhere; checkout and notification only read these rows.
type Product struct {
	ID            string          `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Name          string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Currency      string          `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Recurring     bool            `gorm:"column:recurring;not null;default:false" json:"recurring"`
	StripePriceID string          `gorm:"column:stripe_price_id;type:varchar(255);not null" json:"stripe_price_id"`
	// Billing cycle, only meaningful when Recurring is set.
	CycleLength int       `gorm:"column:cycle_length;default:1" json:"cycle_length"`
	CycleUnit   string    `gorm:"column:cycle_unit;type:varchar(16);default:'month'" json:"cycle_unit"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "product"
}

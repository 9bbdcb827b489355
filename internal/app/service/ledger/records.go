package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/tool"
	"github.com/codoplex/paybridge/pkg/types"
)

func (s *Service) GetCustomerByWeeblyUserID(ctx context.Context, weeblyUserID string) (*models.Customer, error) {
	var c models.Customer
	err := s.db.WithContext(ctx).Where("weebly_user_id = ?", weeblyUserID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

func (s *Service) CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	c.ID = tool.GenerateUUIDV7()
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where("id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// LegacyProductID translates a current product id to its legacy counterpart.
// Returns "" when the product has no legacy mapping.
func (s *Service) LegacyProductID(ctx context.Context, productID string) (string, error) {
	var link models.ProductLink
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get product link: %w", err)
	}
	return link.LegacyProductID, nil
}

// LatestLegacyOrder returns the newest archival order still granting access.
// Legacy lifetime purchases never expire, so only the status is checked.
func (s *Service) LatestLegacyOrder(ctx context.Context, weeblyUserID, weeblySiteID, legacyProductID string) (*models.LegacyOrder, error) {
	var order models.LegacyOrder
	err := s.db.WithContext(ctx).
		Where("weebly_user_id = ? AND weebly_site_id = ? AND product_id = ?", weeblyUserID, weeblySiteID, legacyProductID).
		Where("status IN ?", models.LegacyOrderAccessStatuses).
		Order("order_date DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get legacy order: %w", err)
	}
	return &order, nil
}

// AttachAccessToken stores the freshly encrypted platform credential on the
// record that granted access, so later notifications can authenticate.
func (s *Service) AttachAccessToken(ctx context.Context, source types.AccessSource, recordID, encryptedToken string) error {
	var err error
	switch source {
	case types.AccessSourceStripeSubscription:
		err = s.db.WithContext(ctx).Model(&models.Subscription{}).
			Where("id = ?", recordID).Update("access_token", encryptedToken).Error
	case types.AccessSourceStripePurchase:
		err = s.db.WithContext(ctx).Model(&models.Transaction{}).
			Where("id = ?", recordID).Update("access_token", encryptedToken).Error
	case types.AccessSourceLegacyLifetime:
		err = s.db.WithContext(ctx).Model(&models.LegacyOrder{}).
			Where("id = ?", recordID).Update("access_token", encryptedToken).Error
	case types.AccessSourceWhitelist:
		// whitelist grants carry no provider credential
		return nil
	default:
		return fmt.Errorf("unknown access source: %s", source)
	}
	if err != nil {
		return fmt.Errorf("attach access token: %w", err)
	}
	return nil
}

// InsertAccessLog writes the audit row for a granted access decision.
func (s *Service) InsertAccessLog(ctx context.Context, weeblyUserID, weeblySiteID, productID string, source types.AccessSource) error {
	row := &models.AccessLog{
		ID:           tool.GenerateUUIDV7(),
		WeeblyUserID: weeblyUserID,
		WeeblySiteID: weeblySiteID,
		ProductID:    productID,
		Source:       source,
		GrantedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

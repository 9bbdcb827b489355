package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/tool"
	"github.com/codoplex/paybridge/pkg/types"
)

type AddWhitelistRequest struct {
	WeeblyUserID string     `json:"weebly_user_id"`
	ProductID    string     `json:"product_id"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	Reason       string     `json:"reason"`
	GrantedBy    string     `json:"granted_by"`
}

// AddWhitelistEntry grants manual access. Re-adding a user+product pair
// reactivates and updates the existing entry instead of stacking rows.
func (s *Service) AddWhitelistEntry(ctx context.Context, req *AddWhitelistRequest) (*models.WhitelistEntry, error) {
	if req.WeeblyUserID == "" || req.ProductID == "" {
		return nil, fmt.Errorf("weebly_user_id and product_id are required")
	}

	var existing models.WhitelistEntry
	err := s.db.WithContext(ctx).
		Where("weebly_user_id = ? AND product_id = ?", req.WeeblyUserID, req.ProductID).
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find whitelist entry: %w", err)
	}

	entry := &models.WhitelistEntry{
		WeeblyUserID: req.WeeblyUserID,
		ProductID:    req.ProductID,
		Status:       types.WhitelistStatusActive,
		ExpiryDate:   req.ExpiryDate,
		Reason:       req.Reason,
		GrantedBy:    req.GrantedBy,
	}
	if err == nil {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
		if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
			return nil, fmt.Errorf("update whitelist entry: %w", err)
		}
		return entry, nil
	}

	entry.ID = tool.GenerateUUIDV7()
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create whitelist entry: %w", err)
	}
	return entry, nil
}

// RevokeWhitelistEntry marks the entry revoked and reports whether one existed.
func (s *Service) RevokeWhitelistEntry(ctx context.Context, weeblyUserID, productID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.WhitelistEntry{}).
		Where("weebly_user_id = ? AND product_id = ?", weeblyUserID, productID).
		Where("status = ?", types.WhitelistStatusActive).
		Update("status", types.WhitelistStatusRevoked)
	if res.Error != nil {
		return false, fmt.Errorf("revoke whitelist entry: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ActiveWhitelistEntry returns the entry currently granting access, if any.
// Expired and revoked entries are treated as absent.
func (s *Service) ActiveWhitelistEntry(ctx context.Context, weeblyUserID, productID string) (*models.WhitelistEntry, error) {
	var entry models.WhitelistEntry
	err := s.db.WithContext(ctx).
		Where("weebly_user_id = ? AND product_id = ?", weeblyUserID, productID).
		Where("status = ?", types.WhitelistStatusActive).
		Where("expiry_date IS NULL OR expiry_date > ?", time.Now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active whitelist entry: %w", err)
	}
	return &entry, nil
}

type ListWhitelistRequest struct {
	Filters []*types.CommonFilter `json:"filters"`
	From    int                   `json:"from"`
	Size    int                   `json:"size"`
}

type ListWhitelistResponse struct {
	Items []*models.WhitelistEntry `json:"items"`
	Total int64                    `json:"total"`
}

func (s *Service) ListWhitelist(ctx context.Context, req *ListWhitelistRequest) (*ListWhitelistResponse, error) {
	if req == nil {
		req = &ListWhitelistRequest{}
	}
	if req.Size <= 0 {
		req.Size = 10
	}

	q := s.db.WithContext(ctx).Model(&models.WhitelistEntry{})
	if len(req.Filters) > 0 {
		q = q.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count whitelist entries: %w", err)
	}

	var rows []*models.WhitelistEntry
	if err := q.Order("created_at DESC").Limit(req.Size).Offset(req.From).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list whitelist entries: %w", err)
	}
	return &ListWhitelistResponse{Items: rows, Total: total}, nil
}

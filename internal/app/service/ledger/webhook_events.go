package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/tool"
)

// RecordWebhookEvent inserts the dedup row for a provider event. When the
// event id was seen before, the stored row is returned with duplicate=true
// and nothing is written.
func (s *Service) RecordWebhookEvent(ctx context.Context, eventID, eventType string, payload []byte) (*models.WebhookEvent, bool, error) {
	var existing models.WebhookEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&existing).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find webhook event: %w", err)
	}

	row := &models.WebhookEvent{
		ID:        tool.GenerateUUIDV7(),
		EventID:   eventID,
		EventType: eventType,
		Payload:   payload,
		Processed: false,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		// A concurrent delivery may have won the unique-index race; treat it
		// as a duplicate so the caller no-ops.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if ferr := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&existing).Error; ferr == nil {
				return &existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("record webhook event: %w", err)
	}
	return row, false, nil
}

// MarkWebhookProcessed finalizes the event row, storing the handler error
// when dispatch failed. Failed events are still acked to the provider.
func (s *Service) MarkWebhookProcessed(ctx context.Context, eventID string, handlerErr error) error {
	updates := map[string]any{"processed": true, "error": nil}
	if handlerErr != nil {
		updates["error"] = lo.ToPtr(handlerErr.Error())
	}
	if err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vidcourier/internal/models"
)

// ErrInvalidTransition is returned when a status update would move a transfer
// record backward or overwrite a terminal state.
var ErrInvalidTransition = errors.New("invalid transfer status transition")

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create persists a new transfer record at pipeline start.
func (r *TransferRepository) Create(ctx context.Context, transfer *models.VideoTransfer) error {
	result := r.db.WithContext(ctx).Create(transfer)
	if result.Error != nil {
		return fmt.Errorf("failed to create video transfer: %w", result.Error)
	}
	return nil
}

// MarkUploading moves a downloading record to uploading.
func (r *TransferRepository) MarkUploading(ctx context.Context, transferID string) error {
	return r.transition(ctx, transferID, models.TransferStatusUploading, map[string]interface{}{})
}

// MarkSuccess writes the terminal success state exactly once, together with
// the published identifier and elapsed duration.
func (r *TransferRepository) MarkSuccess(ctx context.Context, transferID string, youtubeID string, duration time.Duration) error {
	now := time.Now()
	seconds := duration.Seconds()
	return r.transition(ctx, transferID, models.TransferStatusSuccess, map[string]interface{}{
		"youtube_id":       youtubeID,
		"completed_at":     now,
		"duration_seconds": seconds,
	})
}

// MarkFailed writes the terminal failed state exactly once, with the error
// text for the audit trail. Any non-terminal status may fail.
func (r *TransferRepository) MarkFailed(ctx context.Context, transferID string, errMsg string) error {
	now := time.Now()
	return r.transition(ctx, transferID, models.TransferStatusFailed, map[string]interface{}{
		"error_message": errMsg,
		"completed_at":  now,
	})
}

// transition performs a guarded status update. The legal prior statuses come
// from the state machine on TransferStatus; the WHERE clause on them is what
// enforces monotonicity, since an update matching zero rows means the record
// was already past the allowed states.
func (r *TransferRepository) transition(ctx context.Context, transferID string, next models.TransferStatus, extra map[string]interface{}) error {
	allowedFrom := models.AllowedPredecessors(next)
	updates := map[string]interface{}{
		"status":     next,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).Model(&models.VideoTransfer{}).
		Where("id = ? AND status IN ?", transferID, allowedFrom).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update transfer status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: transfer %s cannot move to %s", ErrInvalidTransition, transferID, next)
	}
	return nil
}

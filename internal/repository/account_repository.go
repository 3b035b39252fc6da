package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vidcourier/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByID retrieves account by ID
func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	result := r.db.WithContext(ctx).First(&account, "id = ?", accountID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}
	return &account, nil
}

// ListActiveByLastServed retrieves active accounts in round-robin order.
// Never-served accounts (lastServedAt = NULL) get picked first, then the
// stalest served ones.
func (r *AccountRepository) ListActiveByLastServed(ctx context.Context, limit int) ([]models.Account, error) {
	var accounts []models.Account
	result := r.db.WithContext(ctx).
		Where(`"isActive" = ?`, true).
		Order(`"lastServedAt" ASC NULLS FIRST, "createdAt" ASC`).
		Limit(limit).
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", result.Error)
	}
	return accounts, nil
}

// UpdateTokens updates the credential bundle after a successful refresh exchange
func (r *AccountRepository) UpdateTokens(ctx context.Context, accountID string, accessToken string, refreshToken string, expiresAt time.Time) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"accessToken":      accessToken,
			"refreshToken":     refreshToken,
			"tokenExpiresAt":   expiresAt,
			"tokenRefreshedAt": now,
			"updatedAt":        now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update tokens: %w", result.Error)
	}
	return nil
}

// Deactivate flips the account inactive. It is never flipped back
// automatically; only an explicit re-authorization reactivates an account.
func (r *AccountRepository) Deactivate(ctx context.Context, accountID string) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"isActive":  false,
			"updatedAt": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate account: %w", result.Error)
	}
	return nil
}

// RecordSuccess increments the lifetime upload counter and pushes the account
// to the back of the round-robin queue.
func (r *AccountRepository) RecordSuccess(ctx context.Context, accountID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"totalUploads": gorm.Expr(`"totalUploads" + 1`),
			"lastServedAt": now,
			"updatedAt":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record success: %w", result.Error)
	}
	return nil
}

// RecordFailure increments the lifetime failure counter. served reports
// whether the attempt reached the publish stage, which is what advances the
// account's round-robin position.
func (r *AccountRepository) RecordFailure(ctx context.Context, accountID string, served bool) error {
	now := time.Now()
	updates := map[string]interface{}{
		"totalFailures": gorm.Expr(`"totalFailures" + 1`),
		"updatedAt":     now,
	}
	if served {
		updates["lastServedAt"] = now
	}
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to record failure: %w", result.Error)
	}
	return nil
}

// Ping probes storage connectivity before a cycle touches any account.
func (r *AccountRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

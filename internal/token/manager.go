package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vidcourier/internal/models"
)

// ErrAuthExpired marks a refresh exchange that failed for good. The pipeline
// recognizes it to send a re-authorization notice instead of a generic alert.
// It is account-fatal for the current cycle: the account is deactivated and
// only an explicit re-authorization brings it back.
var ErrAuthExpired = errors.New("authentication expired, re-authorization required")

// RefreshResult is what the upstream authorization exchange returns.
type RefreshResult struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string // May be same or rotated
}

// Refresher exchanges a refresh token for a fresh access token.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResult, error)
}

// AccountStore is the slice of the account repository the manager needs.
type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (*models.Account, error)
	UpdateTokens(ctx context.Context, accountID string, accessToken string, refreshToken string, expiresAt time.Time) error
	Deactivate(ctx context.Context, accountID string) error
}

// Manager owns the credential lifecycle: it hands out valid bundles,
// refreshes expiring ones, and deactivates accounts whose grant is gone.
type Manager struct {
	store     AccountStore
	refresher Refresher
	logger    *zap.Logger
	now       func() time.Time
}

func NewManager(store AccountStore, refresher Refresher, logger *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureValid returns a credential bundle that is safe to use right now.
// A valid bundle is returned as stored, with no network call and no write.
// An expiring bundle triggers exactly one refresh exchange; the refreshed
// bundle is persisted before it is returned. Any refresh failure deactivates
// the account and surfaces as ErrAuthExpired.
func (m *Manager) EnsureValid(ctx context.Context, account *models.Account) (models.Credentials, error) {
	creds, state := account.Credentials(m.now())

	switch state {
	case models.CredentialsValid:
		return creds, nil

	case models.CredentialsUnusable:
		m.logger.Warn("account credential bundle unusable, deactivating",
			zap.String("accountId", account.ID))
		if err := m.store.Deactivate(ctx, account.ID); err != nil {
			m.logger.Error("failed to deactivate account", zap.String("accountId", account.ID), zap.Error(err))
		}
		account.IsActive = false
		return models.Credentials{}, fmt.Errorf("%w: account %s has no refresh token", ErrAuthExpired, account.ID)

	case models.CredentialsExpiring:
		return m.refresh(ctx, account, creds)

	default:
		return models.Credentials{}, fmt.Errorf("unknown credential state %d", state)
	}
}

// Validate is a non-throwing probe: it reports whether the account currently
// holds a usable credential bundle, refreshing it if necessary.
func (m *Manager) Validate(ctx context.Context, accountID string) bool {
	account, err := m.store.GetByID(ctx, accountID)
	if err != nil {
		m.logger.Warn("credential probe failed to load account",
			zap.String("accountId", accountID), zap.Error(err))
		return false
	}
	_, err = m.EnsureValid(ctx, account)
	return err == nil
}

func (m *Manager) refresh(ctx context.Context, account *models.Account, creds models.Credentials) (models.Credentials, error) {
	m.logger.Info("access token expiring, refreshing",
		zap.String("accountId", account.ID))

	result, err := m.refresher.RefreshAccessToken(ctx, creds.RefreshToken)
	if err != nil {
		// Refresh failure is never retried silently. The account is out of
		// the rotation until someone re-authorizes it.
		m.logger.Warn("refresh exchange failed, deactivating account",
			zap.String("accountId", account.ID), zap.Error(err))
		if derr := m.store.Deactivate(ctx, account.ID); derr != nil {
			m.logger.Error("failed to deactivate account after refresh failure",
				zap.String("accountId", account.ID), zap.Error(derr))
		}
		account.IsActive = false
		return models.Credentials{}, fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}

	refreshToken := result.RefreshToken
	if refreshToken == "" {
		refreshToken = creds.RefreshToken // upstream did not rotate it
	}

	if err := m.store.UpdateTokens(ctx, account.ID, result.AccessToken, refreshToken, result.ExpiresAt); err != nil {
		return models.Credentials{}, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	// Keep the in-memory account in step with the write-through.
	now := m.now()
	account.AccessToken = &result.AccessToken
	account.RefreshToken = &refreshToken
	account.TokenExpiresAt = &result.ExpiresAt
	account.TokenRefreshedAt = &now

	creds.AccessToken = result.AccessToken
	creds.RefreshToken = refreshToken
	creds.ExpiresAt = &result.ExpiresAt

	m.logger.Info("token refreshed",
		zap.String("accountId", account.ID),
		zap.Time("expiresAt", result.ExpiresAt))

	return creds, nil
}

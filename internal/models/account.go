package models

import "time"

// ExpiryGuardWindow is how close to the recorded expiry a credential is
// already treated as expiring, so a refresh happens before an upload can
// run into a mid-flight 401.
const ExpiryGuardWindow = 5 * time.Minute

// Account represents a registered publishing destination (one YouTube channel)
// Note: Column names use camelCase to match Prisma/frontend schema
type Account struct {
	ID               string     `gorm:"column:id;primaryKey"`
	ChannelID        string     `gorm:"column:channelId;uniqueIndex"`
	Email            string     `gorm:"column:email"`
	DisplayName      string     `gorm:"column:displayName"`
	AccessToken      *string    `gorm:"column:accessToken"`
	RefreshToken     *string    `gorm:"column:refreshToken"`
	Scope            *string    `gorm:"column:scope"`
	TokenType        *string    `gorm:"column:tokenType"`
	TokenExpiresAt   *time.Time `gorm:"column:tokenExpiresAt"`
	TokenRefreshedAt *time.Time `gorm:"column:tokenRefreshedAt"`
	IsActive         bool       `gorm:"column:isActive;index"`
	LastServedAt     *time.Time `gorm:"column:lastServedAt"`
	TotalUploads     int        `gorm:"column:totalUploads"`
	TotalFailures    int        `gorm:"column:totalFailures"`
	CreatedAt        time.Time  `gorm:"column:createdAt"`
	UpdatedAt        time.Time  `gorm:"column:updatedAt"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "account"
}

// CredentialState classifies the stored credential bundle so callers branch
// exhaustively instead of null-checking individual token columns.
type CredentialState int

const (
	// CredentialsUnusable means the bundle cannot be used or refreshed
	// (no refresh token on record).
	CredentialsUnusable CredentialState = iota
	// CredentialsExpiring means a refresh exchange is required before use:
	// either no expiry is recorded or it falls within the guard window.
	CredentialsExpiring
	// CredentialsValid means the stored access token can be used as-is.
	CredentialsValid
)

// Credentials is the usable view of an account's credential bundle.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	TokenType    string
	ExpiresAt    *time.Time
}

// Credentials returns the stored bundle together with its state at the given
// instant. The bundle is all-or-nothing: without a refresh token it is
// unusable regardless of what else is present.
func (a *Account) Credentials(now time.Time) (Credentials, CredentialState) {
	if a.RefreshToken == nil || *a.RefreshToken == "" {
		return Credentials{}, CredentialsUnusable
	}

	creds := Credentials{
		RefreshToken: *a.RefreshToken,
		ExpiresAt:    a.TokenExpiresAt,
	}
	if a.AccessToken != nil {
		creds.AccessToken = *a.AccessToken
	}
	if a.Scope != nil {
		creds.Scope = *a.Scope
	}
	if a.TokenType != nil {
		creds.TokenType = *a.TokenType
	}

	if a.AccessToken == nil || a.TokenExpiresAt == nil || !now.Add(ExpiryGuardWindow).Before(*a.TokenExpiresAt) {
		return creds, CredentialsExpiring
	}
	return creds, CredentialsValid
}

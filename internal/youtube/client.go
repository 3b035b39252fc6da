package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"vidcourier/internal/models"
	"vidcourier/internal/token"
)

var (
	// ErrQuotaExceeded is the publish target's rate limiting. The account
	// stays active; the video simply did not go out this cycle.
	ErrQuotaExceeded = errors.New("upload quota exceeded")
	// ErrAuthFailed is an upload rejected for credential reasons.
	ErrAuthFailed = errors.New("upload authentication failed")
	// ErrFileVanished means the local artifact disappeared mid-upload.
	ErrFileVanished = errors.New("video file vanished before upload completed")
)

// uploadCeiling bounds a single resumable upload.
const uploadCeiling = time.Hour

// UploadResult identifies the published video.
type UploadResult struct {
	VideoID string
	URL     string
}

type Client struct {
	clientID     string
	clientSecret string
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Upload publishes the video file with the given sanitized metadata and
// returns the published identifier and canonical watch URL.
func (c *Client) Upload(ctx context.Context, creds models.Credentials, meta VideoMetadata, media io.Reader) (*UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadCeiling)
	defer cancel()

	oauthToken := &oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
	}

	service, err := youtube.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(oauthToken)))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: meta.PrivacyStatus,
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video).Media(media)
	resp, err := call.Do()
	if err != nil {
		return nil, classifyUploadError(err)
	}

	return &UploadResult{
		VideoID: resp.Id,
		URL:     "https://www.youtube.com/watch?v=" + resp.Id,
	}, nil
}

// RefreshAccessToken refreshes the OAuth2 access token
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*token.RefreshResult, error) {
	config := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	stale := &oauth2.Token{
		RefreshToken: refreshToken,
	}

	tokenSource := config.TokenSource(ctx, stale)
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	result := &token.RefreshResult{
		AccessToken: newToken.AccessToken,
		ExpiresAt:   newToken.Expiry,
	}

	// Check if refresh token was rotated
	if newToken.RefreshToken != "" && newToken.RefreshToken != refreshToken {
		result.RefreshToken = newToken.RefreshToken
	} else {
		result.RefreshToken = refreshToken
	}

	return result, nil
}

// classifyUploadError maps API failures onto the publish taxonomy so the
// pipeline can route alerts and decide whether the account stays active.
func classifyUploadError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrFileVanished, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		case apiErr.Code == http.StatusForbidden && hasReason(apiErr, "quotaExceeded", "uploadLimitExceeded", "rateLimitExceeded"):
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		case apiErr.Code == http.StatusForbidden && strings.Contains(strings.ToLower(apiErr.Message), "quota"):
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
	}
	return fmt.Errorf("upload failed: %w", err)
}

func hasReason(apiErr *googleapi.Error, reasons ...string) bool {
	for _, item := range apiErr.Errors {
		for _, reason := range reasons {
			if item.Reason == reason {
				return true
			}
		}
	}
	return false
}

// Package pipeline executes the per-account transfer sequence:
// fetch -> download -> validate -> publish -> acknowledge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vidcourier/internal/catalog"
	"vidcourier/internal/models"
	"vidcourier/internal/token"
	"vidcourier/internal/youtube"
)

// acknowledgeTimeout bounds the best-effort consumed notification.
const acknowledgeTimeout = 30 * time.Second

// Catalog yields the next pending video and records its consumption.
type Catalog interface {
	NextPending(ctx context.Context) (*catalog.Video, error)
	Acknowledge(ctx context.Context, videoID string) error
}

// AccountStore is the slice of the account repository the runner mutates.
type AccountStore interface {
	RecordSuccess(ctx context.Context, accountID string) error
	RecordFailure(ctx context.Context, accountID string, served bool) error
}

// TransferStore persists the durable transfer record at each transition.
type TransferStore interface {
	Create(ctx context.Context, transfer *models.VideoTransfer) error
	MarkUploading(ctx context.Context, transferID string) error
	MarkSuccess(ctx context.Context, transferID string, youtubeID string, duration time.Duration) error
	MarkFailed(ctx context.Context, transferID string, errMsg string) error
}

// CredentialManager hands out a valid credential bundle before publishing.
type CredentialManager interface {
	EnsureValid(ctx context.Context, account *models.Account) (models.Credentials, error)
}

// Uploader publishes the video to the target channel.
type Uploader interface {
	Upload(ctx context.Context, creds models.Credentials, meta youtube.VideoMetadata, media io.Reader) (*youtube.UploadResult, error)
}

// Artifacts manages the local video file between download and publish.
type Artifacts interface {
	Fetch(ctx context.Context, url string, filename string) (string, error)
	Validate(path string) error
	Remove(path string) error
}

// Alerter delivers the per-failure notices. Implementations are best-effort;
// the runner never fails an account over an undelivered alert.
type Alerter interface {
	AlertAuthExpired(email, displayName string)
	AlertError(accountEmail, videoTitle, errText string)
}

type Runner struct {
	catalog   Catalog
	accounts  AccountStore
	transfers TransferStore
	tokens    CredentialManager
	uploader  Uploader
	artifacts Artifacts
	alerter   Alerter
	logger    *zap.Logger
}

func NewRunner(
	cat Catalog,
	accounts AccountStore,
	transfers TransferStore,
	tokens CredentialManager,
	uploader Uploader,
	artifacts Artifacts,
	alerter Alerter,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		catalog:   cat,
		accounts:  accounts,
		transfers: transfers,
		tokens:    tokens,
		uploader:  uploader,
		artifacts: artifacts,
		alerter:   alerter,
		logger:    logger,
	}
}

// Run executes one pipeline pass for one account, mutating result in place.
// It never returns an error: every failure is written to the transfer record,
// the account counters, and result.Failures.
func (r *Runner) Run(ctx context.Context, account *models.Account, result *CycleResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("pipeline panic recovered",
				zap.String("accountId", account.ID),
				zap.Any("panic", rec))
			result.AddFailure(UploadFailure{
				AccountEmail: account.Email,
				Reason:       fmt.Sprintf("internal error: %v", rec),
			})
		}
	}()

	log := r.logger.With(zap.String("accountId", account.ID), zap.String("channelId", account.ChannelID))

	// Stage 1: acquire the next pending video. Absence of work is not a
	// failure and must not cost the account its round-robin position.
	video, err := r.catalog.NextPending(ctx)
	if errors.Is(err, catalog.ErrNoVideoAvailable) {
		log.Info("no pending video available")
		result.NoVideoAvailable = true
		return
	}
	if err != nil {
		log.Warn("catalog fetch failed", zap.Error(err))
		r.notifyFailure(account, "", err)
		result.AddFailure(UploadFailure{AccountEmail: account.Email, Reason: err.Error()})
		return
	}

	log = log.With(zap.String("videoId", video.ID), zap.String("title", video.Title))
	start := time.Now()

	// Stage 2: create the durable record and stream the video down.
	transfer := &models.VideoTransfer{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		VideoID:   video.ID,
		Title:     video.Title,
		Filename:  video.Filename,
		Status:    models.TransferStatusDownloading,
		CreatedAt: start,
		UpdatedAt: start,
	}
	if err := r.transfers.Create(ctx, transfer); err != nil {
		log.Error("failed to create transfer record", zap.Error(err))
		r.notifyFailure(account, video.Title, err)
		result.AddFailure(UploadFailure{AccountEmail: account.Email, VideoTitle: video.Title, Reason: err.Error()})
		return
	}

	localPath, err := r.artifacts.Fetch(ctx, video.DownloadURL, video.Filename)
	if err != nil {
		log.Warn("download failed", zap.Error(err))
		r.failTransfer(ctx, account, transfer, video.Title, err, false, result)
		return
	}
	// The artifact is removed no matter how the rest of the pipeline ends.
	// A removal that cannot be verified is logged, never fatal.
	defer func() {
		if err := r.artifacts.Remove(localPath); err != nil {
			log.Warn("failed to remove local artifact", zap.String("path", localPath), zap.Error(err))
		}
	}()

	// Stage 3: validate the artifact. Treated identically to a download failure.
	if err := r.artifacts.Validate(localPath); err != nil {
		log.Warn("artifact validation failed", zap.Error(err))
		r.failTransfer(ctx, account, transfer, video.Title, err, false, result)
		return
	}

	// Stage 4: publish. The credential check runs immediately before upload.
	creds, err := r.tokens.EnsureValid(ctx, account)
	if err != nil {
		log.Warn("credential check failed", zap.Error(err))
		r.failTransfer(ctx, account, transfer, video.Title, err, false, result)
		return
	}

	if err := r.transfers.MarkUploading(ctx, transfer.ID); err != nil {
		log.Error("failed to mark transfer uploading", zap.Error(err))
		r.failTransfer(ctx, account, transfer, video.Title, err, false, result)
		return
	}

	file, err := os.Open(localPath)
	if err != nil {
		err = fmt.Errorf("%w: %v", youtube.ErrFileVanished, err)
		log.Warn("artifact vanished before upload", zap.Error(err))
		r.failTransfer(ctx, account, transfer, video.Title, err, true, result)
		return
	}

	meta := youtube.SanitizeMetadata(video.Title, video.Description, video.Tags, video.CategoryID, video.Privacy)
	uploadResult, err := r.uploader.Upload(ctx, creds, meta, file)
	file.Close()
	if err != nil {
		log.Warn("upload failed", zap.Error(err))
		r.failTransfer(ctx, account, transfer, video.Title, err, true, result)
		return
	}

	duration := time.Since(start)
	if err := r.transfers.MarkSuccess(ctx, transfer.ID, uploadResult.VideoID, duration); err != nil {
		log.Error("failed to mark transfer success", zap.Error(err))
	}
	if err := r.accounts.RecordSuccess(ctx, account.ID); err != nil {
		log.Error("failed to record account success", zap.Error(err))
	}

	// Stage 5: acknowledge consumption. Best-effort: the publish already
	// succeeded, so an acknowledge failure only gets logged.
	ackCtx, cancel := context.WithTimeout(ctx, acknowledgeTimeout)
	if err := r.catalog.Acknowledge(ackCtx, video.ID); err != nil {
		log.Warn("failed to acknowledge video consumption", zap.Error(err))
	}
	cancel()

	log.Info("video published",
		zap.String("youtubeId", uploadResult.VideoID),
		zap.Duration("duration", duration))

	result.AddSuccess(UploadSuccess{
		AccountEmail: account.Email,
		VideoTitle:   video.Title,
		YouTubeURL:   uploadResult.URL,
		Duration:     duration,
	})
}

// failTransfer applies the shared failure bookkeeping: terminal record state,
// account failure counter, routed alert, and the result entry. served reports
// whether the attempt reached the publish stage, which is what advances the
// account's round-robin position.
func (r *Runner) failTransfer(ctx context.Context, account *models.Account, transfer *models.VideoTransfer, videoTitle string, cause error, served bool, result *CycleResult) {
	if err := r.transfers.MarkFailed(ctx, transfer.ID, cause.Error()); err != nil {
		r.logger.Error("failed to mark transfer failed",
			zap.String("transferId", transfer.ID), zap.Error(err))
	}
	if err := r.accounts.RecordFailure(ctx, account.ID, served); err != nil {
		r.logger.Error("failed to record account failure",
			zap.String("accountId", account.ID), zap.Error(err))
	}

	r.notifyFailure(account, videoTitle, cause)

	result.AddFailure(UploadFailure{
		AccountEmail: account.Email,
		VideoTitle:   videoTitle,
		Reason:       cause.Error(),
	})
}

// notifyFailure routes the individual alert by failure kind. An
// authentication condition gets the re-authorization notice to the account's
// own address instead of the generic operations alert, never both.
func (r *Runner) notifyFailure(account *models.Account, videoTitle string, cause error) {
	if errors.Is(cause, token.ErrAuthExpired) || errors.Is(cause, youtube.ErrAuthFailed) {
		if account.Email == "" {
			r.logger.Warn("account has no email for re-authorization notice, falling back to operations alert",
				zap.String("accountId", account.ID))
			r.alerter.AlertError(account.Email, videoTitle, cause.Error())
			return
		}
		r.alerter.AlertAuthExpired(account.Email, account.DisplayName)
		return
	}
	r.alerter.AlertError(account.Email, videoTitle, cause.Error())
}

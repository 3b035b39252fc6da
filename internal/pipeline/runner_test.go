package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"vidcourier/internal/catalog"
	"vidcourier/internal/models"
	"vidcourier/internal/token"
	"vidcourier/internal/youtube"
)

type mockCatalog struct {
	video    *catalog.Video
	fetchErr error
	ackCalls int
	ackErr   error
}

func (m *mockCatalog) NextPending(ctx context.Context) (*catalog.Video, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.video, nil
}

func (m *mockCatalog) Acknowledge(ctx context.Context, videoID string) error {
	m.ackCalls++
	return m.ackErr
}

type mockAccountStore struct {
	successCalls int
	failureCalls int
	lastServed   bool
}

func (m *mockAccountStore) RecordSuccess(ctx context.Context, accountID string) error {
	m.successCalls++
	return nil
}

func (m *mockAccountStore) RecordFailure(ctx context.Context, accountID string, served bool) error {
	m.failureCalls++
	m.lastServed = served
	return nil
}

type mockTransferStore struct {
	created       []*models.VideoTransfer
	uploadingIDs  []string
	successIDs    []string
	failedIDs     []string
	lastErrorText string
	createErr     error
}

func (m *mockTransferStore) Create(ctx context.Context, transfer *models.VideoTransfer) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, transfer)
	return nil
}

func (m *mockTransferStore) MarkUploading(ctx context.Context, transferID string) error {
	m.uploadingIDs = append(m.uploadingIDs, transferID)
	return nil
}

func (m *mockTransferStore) MarkSuccess(ctx context.Context, transferID string, youtubeID string, duration time.Duration) error {
	m.successIDs = append(m.successIDs, transferID)
	return nil
}

func (m *mockTransferStore) MarkFailed(ctx context.Context, transferID string, errMsg string) error {
	m.failedIDs = append(m.failedIDs, transferID)
	m.lastErrorText = errMsg
	return nil
}

type mockCredentialManager struct {
	creds models.Credentials
	err   error
	calls int
}

func (m *mockCredentialManager) EnsureValid(ctx context.Context, account *models.Account) (models.Credentials, error) {
	m.calls++
	if m.err != nil {
		return models.Credentials{}, m.err
	}
	return m.creds, nil
}

type mockUploader struct {
	result *youtube.UploadResult
	err    error
	calls  int
}

func (m *mockUploader) Upload(ctx context.Context, creds models.Credentials, meta youtube.VideoMetadata, media io.Reader) (*youtube.UploadResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockArtifacts struct {
	path        string
	fetchErr    error
	validateErr error
	removed     []string
}

func (m *mockArtifacts) Fetch(ctx context.Context, url string, filename string) (string, error) {
	if m.fetchErr != nil {
		return "", m.fetchErr
	}
	return m.path, nil
}

func (m *mockArtifacts) Validate(path string) error {
	return m.validateErr
}

func (m *mockArtifacts) Remove(path string) error {
	m.removed = append(m.removed, path)
	return nil
}

type mockAlerter struct {
	authExpiredCalls int
	errorCalls       int
	lastErrorText    string
}

func (m *mockAlerter) AlertAuthExpired(email, displayName string) {
	m.authExpiredCalls++
}

func (m *mockAlerter) AlertError(accountEmail, videoTitle, errText string) {
	m.errorCalls++
	m.lastErrorText = errText
}

type fixture struct {
	catalog   *mockCatalog
	accounts  *mockAccountStore
	transfers *mockTransferStore
	tokens    *mockCredentialManager
	uploader  *mockUploader
	artifacts *mockArtifacts
	alerter   *mockAlerter
	runner    *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	artifactPath := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(artifactPath, []byte("plausible video payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		catalog: &mockCatalog{video: &catalog.Video{
			ID:          "vid-1",
			Title:       "My Video",
			Filename:    "video.mp4",
			DownloadURL: "https://cdn.example.com/vid-1",
			Privacy:     "public",
		}},
		accounts:  &mockAccountStore{},
		transfers: &mockTransferStore{},
		tokens:    &mockCredentialManager{creds: models.Credentials{AccessToken: "access"}},
		uploader: &mockUploader{result: &youtube.UploadResult{
			VideoID: "yt-1",
			URL:     "https://www.youtube.com/watch?v=yt-1",
		}},
		artifacts: &mockArtifacts{path: artifactPath},
		alerter:   &mockAlerter{},
	}
	f.runner = NewRunner(f.catalog, f.accounts, f.transfers, f.tokens, f.uploader, f.artifacts, f.alerter, zap.NewNop())
	return f
}

func testAccount() *models.Account {
	return &models.Account{
		ID:          "acc-1",
		ChannelID:   "chan-1",
		Email:       "creator@example.com",
		DisplayName: "Creator",
		IsActive:    true,
	}
}

func TestRun_FullSuccess(t *testing.T) {
	f := newFixture(t)
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)

	if len(result.Successes) != 1 {
		t.Fatalf("expected 1 success entry, got %d", len(result.Successes))
	}
	if result.Successes[0].YouTubeURL == "" {
		t.Error("expected non-empty published URL")
	}
	if len(result.Failures) != 0 {
		t.Errorf("expected no failures, got %v", result.Failures)
	}
	if len(f.transfers.created) != 1 {
		t.Fatalf("expected 1 transfer record, got %d", len(f.transfers.created))
	}
	if len(f.transfers.uploadingIDs) != 1 || len(f.transfers.successIDs) != 1 {
		t.Error("expected transfer to pass through uploading into success")
	}
	if f.accounts.successCalls != 1 {
		t.Errorf("expected success counter to increment once, got %d", f.accounts.successCalls)
	}
	if f.tokens.calls != 1 {
		t.Errorf("expected one credential check, got %d", f.tokens.calls)
	}
	if f.catalog.ackCalls != 1 {
		t.Errorf("expected one acknowledge call, got %d", f.catalog.ackCalls)
	}
	if len(f.artifacts.removed) != 1 {
		t.Errorf("expected artifact removal after publish, got %d", len(f.artifacts.removed))
	}
}

func TestRun_NoVideoAvailable(t *testing.T) {
	f := newFixture(t)
	f.catalog.fetchErr = catalog.ErrNoVideoAvailable
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)

	if !result.NoVideoAvailable {
		t.Error("expected NoVideoAvailable flag")
	}
	if result.Attempted() != 0 {
		t.Errorf("expected no outcome entries, got %d", result.Attempted())
	}
	if len(f.transfers.created) != 0 {
		t.Error("expected no transfer record")
	}
	if f.accounts.successCalls+f.accounts.failureCalls != 0 {
		t.Error("expected no account mutation")
	}
}

func TestRun_CatalogErrorRecordsFailureWithoutRecord(t *testing.T) {
	f := newFixture(t)
	f.catalog.fetchErr = errors.New("catalog timeout")
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)

	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure entry, got %d", len(result.Failures))
	}
	if result.Failures[0].VideoTitle != "N/A" {
		t.Errorf("expected N/A title, got %q", result.Failures[0].VideoTitle)
	}
	if len(f.transfers.created) != 0 {
		t.Error("expected no transfer record for a fetch failure")
	}
	if f.alerter.errorCalls != 1 {
		t.Errorf("expected one generic alert, got %d", f.alerter.errorCalls)
	}
}

func TestRun_DownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.artifacts.fetchErr = errors.New("download stalled")
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)

	if len(f.transfers.failedIDs) != 1 {
		t.Fatalf("expected transfer marked failed, got %d", len(f.transfers.failedIDs))
	}
	if f.accounts.failureCalls != 1 {
		t.Errorf("expected failure counter to increment, got %d", f.accounts.failureCalls)
	}
	if f.accounts.lastServed {
		t.Error("download failure must not advance lastServed")
	}
	if f.alerter.errorCalls != 1 || f.alerter.authExpiredCalls != 0 {
		t.Error("expected exactly one generic alert")
	}
	if len(result.Failures) != 1 {
		t.Errorf("expected 1 failure entry, got %d", len(result.Failures))
	}
}

func TestRun_ValidationFailureTreatedLikeDownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.artifacts.validateErr = fmt.Errorf("too small")
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)

	if len(f.transfers.failedIDs) != 1 {
		t.Error("expected transfer marked failed")
	}
	if f.uploader.calls != 0 {
		t.Error("expected no upload attempt after validation failure")
	}
	if len(f.artifacts.removed) != 1 {
		t.Error("expected artifact cleanup on validation failure")
	}
}

func TestRun_AuthExpiredRoutesReauthAlert(t *testing.T) {
	f := newFixture(t)
	f.tokens.err = fmt.Errorf("%w: invalid_grant", token.ErrAuthExpired)
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)

	if f.alerter.authExpiredCalls != 1 {
		t.Errorf("expected re-authorization alert, got %d", f.alerter.authExpiredCalls)
	}
	if f.alerter.errorCalls != 0 {
		t.Errorf("expected no generic alert alongside re-auth notice, got %d", f.alerter.errorCalls)
	}
	if len(result.Failures) != 1 {
		t.Errorf("expected 1 failure entry, got %d", len(result.Failures))
	}
	if f.accounts.lastServed {
		t.Error("credential failure happens before publish, must not advance lastServed")
	}
}

func TestRun_AuthExpiredWithoutEmailFallsBackToOpsAlert(t *testing.T) {
	f := newFixture(t)
	f.tokens.err = fmt.Errorf("%w: invalid_grant", token.ErrAuthExpired)
	account := testAccount()
	account.Email = ""
	result := NewCycleResult()

	f.runner.Run(context.Background(), account, result)

	if f.alerter.authExpiredCalls != 0 {
		t.Error("expected no re-auth notice without a verified address")
	}
	if f.alerter.errorCalls != 1 {
		t.Errorf("expected fallback generic alert, got %d", f.alerter.errorCalls)
	}
}

func TestRun_QuotaFailure(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = fmt.Errorf("%w: daily limit", youtube.ErrQuotaExceeded)
	result := NewCycleResult()

	account := testAccount()
	f.runner.Run(context.Background(), account, result)

	if len(f.transfers.failedIDs) != 1 {
		t.Error("expected transfer marked failed")
	}
	if f.transfers.lastErrorText == "" {
		t.Error("expected quota error text on the record")
	}
	if !account.IsActive {
		t.Error("quota failure must not deactivate the account")
	}
	if f.accounts.failureCalls != 1 || !f.accounts.lastServed {
		t.Error("publish-stage failure must increment the counter and advance lastServed")
	}
	if f.alerter.errorCalls != 1 || f.alerter.authExpiredCalls != 0 {
		t.Error("quota failure routes the generic alert, not the re-auth notice")
	}
}

func TestRun_UploadAuthFailureRoutesReauthAlert(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = fmt.Errorf("%w: 401", youtube.ErrAuthFailed)
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)

	if f.alerter.authExpiredCalls != 1 || f.alerter.errorCalls != 0 {
		t.Error("expected upload auth failure to route the re-auth notice")
	}
}

func TestRun_AcknowledgeFailureDoesNotFailPipeline(t *testing.T) {
	f := newFixture(t)
	f.catalog.ackErr = errors.New("catalog unreachable")
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)

	if len(result.Successes) != 1 {
		t.Fatalf("expected success despite acknowledge failure, got %+v", result)
	}
	if f.accounts.successCalls != 1 {
		t.Error("expected success bookkeeping despite acknowledge failure")
	}
}

func TestRun_OneOutcomePerAccount(t *testing.T) {
	f := newFixture(t)
	result := NewCycleResult()

	f.runner.Run(context.Background(), testAccount(), result)
	if result.Attempted() != 1 {
		t.Errorf("expected exactly one outcome entry, got %d", result.Attempted())
	}

	f2 := newFixture(t)
	f2.uploader.err = errors.New("boom")
	result2 := NewCycleResult()
	f2.runner.Run(context.Background(), testAccount(), result2)
	if result2.Attempted() != 1 {
		t.Errorf("expected exactly one outcome entry on failure, got %d", result2.Attempted())
	}
	if len(result2.Successes) != 0 {
		t.Error("a failed account must not also appear in successes")
	}
}

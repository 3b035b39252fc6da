// Package downloader streams a catalog video to local storage under a stall
// window and an absolute wall-clock ceiling, and validates the artifact.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrDownloadTimeout means the absolute ceiling on total download time
	// was exceeded even though bytes kept flowing.
	ErrDownloadTimeout = errors.New("download exceeded time ceiling")
	// ErrDownloadStalled means no progress was observed within the rolling
	// stall window.
	ErrDownloadStalled = errors.New("download stalled, no progress within window")
	// ErrArtifactInvalid means the local file is missing, empty, or below the
	// minimum plausible size for a video.
	ErrArtifactInvalid = errors.New("downloaded artifact failed validation")
)

const (
	defaultStallWindow = 2 * time.Minute
	defaultCeiling     = 30 * time.Minute
)

type Downloader struct {
	httpClient  *http.Client
	workDir     string
	stallWindow time.Duration
	ceiling     time.Duration
	minBytes    int64
	logger      *zap.Logger
}

func New(workDir string, minBytes int64, logger *zap.Logger) *Downloader {
	return &Downloader{
		// No client-level timeout: the ceiling context bounds the full
		// transfer, and a fixed Timeout would double up on it.
		httpClient:  &http.Client{},
		workDir:     workDir,
		stallWindow: defaultStallWindow,
		ceiling:     defaultCeiling,
		minBytes:    minBytes,
		logger:      logger,
	}
}

// Fetch streams url into the work directory and returns the local path.
// On any failure the partial artifact is removed before returning.
func (d *Downloader) Fetch(ctx context.Context, url string, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.ceiling)
	defer cancel()

	localPath := filepath.Join(d.workDir, sanitizeFilename(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to start download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}

	written, err := d.copyWithStallWatch(ctx, out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		d.removePartial(localPath)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %d bytes", ErrDownloadTimeout, written)
		}
		return "", err
	}

	d.logger.Info("download complete",
		zap.String("path", localPath),
		zap.Int64("bytes", written))
	return localPath, nil
}

// copyWithStallWatch copies body to out while a watchdog tracks progress. The
// watchdog aborts the transfer when no bytes arrive within the stall window;
// the ceiling is enforced by the deadline already on ctx.
func (d *Downloader) copyWithStallWatch(ctx context.Context, out io.Writer, body io.ReadCloser) (int64, error) {
	var lastProgress atomic.Int64
	lastProgress.Store(time.Now().UnixNano())

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	stalled := make(chan struct{})
	go func() {
		interval := d.stallWindow / 4
		if interval < time.Millisecond {
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				last := time.Unix(0, lastProgress.Load())
				if time.Since(last) > d.stallWindow {
					close(stalled)
					// Closing the body unblocks the pending Read.
					body.Close()
					return
				}
			}
		}
	}()

	var written int64
	buf := make([]byte, 128*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			lastProgress.Store(time.Now().UnixNano())
			wn, writeErr := out.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, fmt.Errorf("failed to write artifact: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			select {
			case <-stalled:
				return written, fmt.Errorf("%w (last progress at byte %d)", ErrDownloadStalled, written)
			default:
			}
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			return written, fmt.Errorf("failed to read download stream: %w", readErr)
		}
	}
}

// Validate confirms the artifact exists, is non-empty, and exceeds the
// minimum plausible size.
func (d *Downloader) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactInvalid, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: file is empty", ErrArtifactInvalid)
	}
	if info.Size() < d.minBytes {
		return fmt.Errorf("%w: %d bytes is below the %d byte minimum", ErrArtifactInvalid, info.Size(), d.minBytes)
	}
	return nil
}

// Remove deletes the local artifact. Callers log a failed removal rather than
// failing the pipeline over it.
func (d *Downloader) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	return nil
}

func (d *Downloader) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("failed to remove partial artifact",
			zap.String("path", path), zap.Error(err))
	}
}

// sanitizeFilename strips any path components so a catalog-provided name
// cannot escape the work directory.
func sanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "video.bin"
	}
	return base
}

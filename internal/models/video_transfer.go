package models

import "time"

type TransferStatus string

const (
	TransferStatusPending     TransferStatus = "pending"     // Record created, download not started
	TransferStatusDownloading TransferStatus = "downloading" // Streaming the video to local storage
	TransferStatusUploading   TransferStatus = "uploading"   // Publishing to the target channel
	TransferStatusSuccess     TransferStatus = "success"     // Published, terminal
	TransferStatusFailed      TransferStatus = "failed"      // Terminal
)

// TransferStatuses enumerates every status, for deriving the legal
// predecessors of a transition.
var TransferStatuses = []TransferStatus{
	TransferStatusPending,
	TransferStatusDownloading,
	TransferStatusUploading,
	TransferStatusSuccess,
	TransferStatusFailed,
}

// statusRank orders statuses so transitions can only move forward. The two
// terminal states share the highest rank; neither can be overwritten.
var statusRank = map[TransferStatus]int{
	TransferStatusPending:     0,
	TransferStatusDownloading: 1,
	TransferStatusUploading:   2,
	TransferStatusSuccess:     3,
	TransferStatusFailed:      3,
}

// CanTransitionTo reports whether moving from s to next respects the
// monotonic pending -> downloading -> uploading -> success|failed order.
// Stages are never skipped; failure is reachable from any non-terminal state.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	if from >= statusRank[TransferStatusSuccess] {
		return false // terminal states are written exactly once
	}
	if next == TransferStatusFailed {
		return true
	}
	return to == from+1
}

// AllowedPredecessors returns the statuses from which next may be entered.
func AllowedPredecessors(next TransferStatus) []TransferStatus {
	var from []TransferStatus
	for _, s := range TransferStatuses {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// VideoTransfer is the durable record of one video's journey through the
// pipeline for one account. Records are never deleted; they are the audit
// trail for every attempted distribution.
type VideoTransfer struct {
	ID              string         `gorm:"column:id;primaryKey"`
	AccountID       string         `gorm:"column:account_id;index"`
	VideoID         string         `gorm:"column:video_id"`
	Title           string         `gorm:"column:title"`
	Filename        string         `gorm:"column:filename"`
	Status          TransferStatus `gorm:"column:status;index"`
	YouTubeID       *string        `gorm:"column:youtube_id"`
	ErrorMessage    *string        `gorm:"column:error_message"`
	CompletedAt     *time.Time     `gorm:"column:completed_at"`
	DurationSeconds *float64       `gorm:"column:duration_seconds"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (VideoTransfer) TableName() string {
	return "video_transfer"
}

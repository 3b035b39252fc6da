package pipeline

import "time"

// UploadSuccess is one published video in a cycle report.
type UploadSuccess struct {
	AccountEmail string
	VideoTitle   string
	YouTubeURL   string
	Duration     time.Duration
}

// UploadFailure is one failed account attempt in a cycle report. VideoTitle
// is "N/A" when the failure happened before a video was ever fetched.
type UploadFailure struct {
	AccountEmail string
	VideoTitle   string
	Reason       string
}

// CycleResult aggregates one scheduled cycle. It lives in memory only and is
// consumed exactly once by the notification dispatcher.
type CycleResult struct {
	Successes          []UploadSuccess
	Failures           []UploadFailure
	AccountsConsidered int
	NoVideoAvailable   bool
	StorageUnavailable bool
	StartedAt          time.Time
	FinishedAt         time.Time
}

func NewCycleResult() *CycleResult {
	return &CycleResult{StartedAt: time.Now()}
}

func (r *CycleResult) AddSuccess(s UploadSuccess) {
	r.Successes = append(r.Successes, s)
}

func (r *CycleResult) AddFailure(f UploadFailure) {
	if f.VideoTitle == "" {
		f.VideoTitle = "N/A"
	}
	r.Failures = append(r.Failures, f)
}

// Attempted is the number of accounts that produced an outcome entry.
func (r *CycleResult) Attempted() int {
	return len(r.Successes) + len(r.Failures)
}

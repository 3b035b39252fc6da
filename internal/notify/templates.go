package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"vidcourier/internal/pipeline"
)

var reportTemplate = template.Must(template.New("report").Parse(
	`Video distribution cycle finished at {{.Finished}}.

Accounts considered: {{.Result.AccountsConsidered}}
Published: {{len .Result.Successes}}
Failed: {{len .Result.Failures}}
{{- if .Result.StorageUnavailable}}

STORAGE UNAVAILABLE: the cycle aborted before any account was touched.
{{- end}}
{{- if .Result.NoVideoAvailable}}

No pending video was available for at least one account.
{{- end}}
{{- if .Result.Successes}}

Successes:
{{- range .Result.Successes}}
  - {{.AccountEmail}} | {{.VideoTitle}} | {{.YouTubeURL}} | {{.Duration}}
{{- end}}
{{- end}}
{{- if .Result.Failures}}

Failures:
{{- range .Result.Failures}}
  - {{.AccountEmail}} | {{.VideoTitle}} | {{.Reason}}
{{- end}}
{{- end}}
`))

var authExpiredTemplate = template.Must(template.New("authExpired").Parse(
	`Hello {{.DisplayName}},

The authorization for your channel has expired or been revoked, so scheduled
video publishing for your account is paused. Please re-authorize the
publisher to resume automatic uploads.

This account stays inactive until you re-authorize it.
`))

var errorTemplate = template.Must(template.New("error").Parse(
	`A scheduled video transfer failed.

Account: {{.AccountEmail}}
Video: {{.VideoTitle}}
Error: {{.ErrorText}}
`))

func renderReport(result *pipeline.CycleResult) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Result   *pipeline.CycleResult
		Finished string
	}{
		Result:   result,
		Finished: result.FinishedAt.Format(time.RFC1123),
	}
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

func renderAuthExpired(displayName string) (string, error) {
	var buf bytes.Buffer
	data := struct{ DisplayName string }{DisplayName: displayName}
	if data.DisplayName == "" {
		data.DisplayName = "creator"
	}
	if err := authExpiredTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render re-authorization notice: %w", err)
	}
	return buf.String(), nil
}

func renderError(accountEmail, videoTitle, errText string) (string, error) {
	if videoTitle == "" {
		videoTitle = "N/A"
	}
	var buf bytes.Buffer
	data := struct {
		AccountEmail string
		VideoTitle   string
		ErrorText    string
	}{accountEmail, videoTitle, errText}
	if err := errorTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render error alert: %w", err)
	}
	return buf.String(), nil
}

// Package notify formats and delivers the end-of-cycle report and the
// per-failure alerts. Delivery is best-effort: it retries with backoff and
// then swallows the failure, never blocking the orchestration core.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"vidcourier/internal/pipeline"
	"vidcourier/internal/retry"
)

// Retry policies per message kind.
const (
	reportAttempts = 3
	reportBackoff  = time.Second

	errorAlertAttempts = 3
	errorAlertBackoff  = time.Second

	authAlertAttempts = 2
	authAlertBackoff  = 500 * time.Millisecond
)

// Sender is the notification transport.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// Notifier routes rendered messages to their recipients with per-kind retry
// policies.
type Notifier struct {
	sender   Sender
	reportTo string // operations address
	logger   *zap.Logger
}

func NewNotifier(sender Sender, reportTo string, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		reportTo: reportTo,
		logger:   logger,
	}
}

// Report delivers exactly one end-of-cycle summary to the operations address.
func (n *Notifier) Report(result *pipeline.CycleResult) {
	if n.reportTo == "" {
		n.logger.Warn("no report address configured, dropping cycle report")
		return
	}

	body, err := renderReport(result)
	if err != nil {
		n.logger.Error("failed to render cycle report", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("Video distribution report: %d published, %d failed",
		len(result.Successes), len(result.Failures))
	if result.StorageUnavailable {
		subject = "Video distribution report: storage unavailable"
	}

	n.deliver(n.reportTo, subject, body, reportAttempts, reportBackoff)
}

// AlertAuthExpired sends the re-authorization notice to the account's own
// address.
func (n *Notifier) AlertAuthExpired(email, displayName string) {
	body, err := renderAuthExpired(displayName)
	if err != nil {
		n.logger.Error("failed to render re-authorization notice", zap.Error(err))
		return
	}
	n.deliver(email, "Action required: re-authorize your channel", body, authAlertAttempts, authAlertBackoff)
}

// AlertError sends the generic failure notice to the operations address.
func (n *Notifier) AlertError(accountEmail, videoTitle, errText string) {
	if n.reportTo == "" {
		n.logger.Warn("no report address configured, dropping error alert",
			zap.String("accountEmail", accountEmail))
		return
	}
	body, err := renderError(accountEmail, videoTitle, errText)
	if err != nil {
		n.logger.Error("failed to render error alert", zap.Error(err))
		return
	}
	n.deliver(n.reportTo, "Video transfer failed", body, errorAlertAttempts, errorAlertBackoff)
}

func (n *Notifier) deliver(to, subject, body string, attempts int, backoff time.Duration) {
	err := retry.Do(context.Background(), attempts, backoff, func() error {
		return n.sender.Send(to, subject, body)
	})
	if err != nil {
		n.logger.Warn("notification delivery failed after retries",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
	}
}

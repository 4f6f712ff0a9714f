// Package email renders notification jobs into plain-text mail and hands them
// to an SMTP server. When email is disabled the notifier logs and drops, so
// the dispatcher still sees a successful send.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/vivektakcode/leave-tracker/internal/domain/notify"
	"github.com/vivektakcode/leave-tracker/internal/platform/config"
)

type noopNotifier struct{}

func (noopNotifier) Send(ctx context.Context, job notify.Job) error {
	slog.Info("email disabled, dropping notification",
		"jobId", job.ID,
		"kind", job.Kind,
		"recipient", job.Payload.Recipient())
	return nil
}

type smtpNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg config.Config) notify.Notifier {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopNotifier{}
	}
	return &smtpNotifier{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.EmailFrom,
	}
}

func (n *smtpNotifier) Send(ctx context.Context, job notify.Job) error {
	to := strings.TrimSpace(job.Payload.Recipient())
	if to == "" {
		return nil
	}

	subject, body := render(job.Payload)

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	// gomail has no context plumbing, so run the dial-and-send in a goroutine
	// and let the caller's deadline cut the wait.
	errCh := make(chan error, 1)
	go func() { errCh <- n.dialer.DialAndSend(msg) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func render(payload notify.Payload) (subject, body string) {
	switch p := payload.(type) {
	case notify.RequestCreated:
		subject = fmt.Sprintf("Leave request from %s awaits your approval", p.WorkerName)
		body = fmt.Sprintf(
			"%s has requested %s days of %s leave from %s to %s.\n\nRequest ID: %s\n",
			p.WorkerName, p.Days, p.Category, p.StartDate, p.EndDate, p.RequestID)
	case notify.Reminder:
		subject = fmt.Sprintf("Reminder: leave request from %s is still pending", p.WorkerName)
		body = fmt.Sprintf(
			"The leave request from %s has been pending since %s and needs a decision.\n\nRequest ID: %s\n",
			p.WorkerName, p.PendingSince.Format("2006-01-02"), p.RequestID)
	case notify.PasswordReset:
		subject = "Password reset requested"
		body = fmt.Sprintf(
			"A password reset was requested for your account.\n\nReset token: %s\n\nIgnore this mail if you did not ask for it.\n",
			p.Token)
	case notify.ApproverChanged:
		subject = "Your leave approver has changed"
		body = fmt.Sprintf(
			"Pending and future leave requests will now be reviewed by %s.\n", p.ApproverName)
	default:
		subject = "Notification"
		body = fmt.Sprintf("Notification of kind %s.\n", payload.NotificationKind())
	}
	return subject, body
}

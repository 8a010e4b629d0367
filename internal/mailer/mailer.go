// Package mailer composes the token-link emails the authentication flows
// send. Delivery itself is an external collaborator: messages are enqueued as
// background jobs and a worker hands them to an SMTP relay.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hibiken/asynq"

	"github.com/haven-id/haven-id/jobs"
)

// Enqueuer submits mail jobs to the queue.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Mailer builds token links against the public base URL and enqueues them.
type Mailer struct {
	enqueuer Enqueuer
	baseURL  string
	logger   *slog.Logger
}

// New constructs a Mailer.
func New(enqueuer Enqueuer, baseURL string, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{enqueuer: enqueuer, baseURL: baseURL, logger: logger}
}

// SendVerification emails the account-verification link.
func (m *Mailer) SendVerification(ctx context.Context, email, rawToken string) error {
	link := m.link("/auth/verify", rawToken)
	return m.enqueue(ctx, email, "Verify your account",
		fmt.Sprintf("Welcome! Confirm your account by visiting:\n\n%s\n\nThe link is valid once.", link))
}

// SendLoginLink emails a one-time login link.
func (m *Mailer) SendLoginLink(ctx context.Context, email, rawToken string) error {
	link := m.link("/auth/login-link/consume", rawToken)
	return m.enqueue(ctx, email, "Your login link",
		fmt.Sprintf("Sign in by visiting:\n\n%s\n\nThe link is valid once. If you did not request it, ignore this email.", link))
}

// SendPasswordReset emails a password-reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, rawToken string) error {
	link := m.link("/auth/password-reset/confirm", rawToken)
	return m.enqueue(ctx, email, "Reset your password",
		fmt.Sprintf("Choose a new password by visiting:\n\n%s\n\nThe link is valid once. If you did not request it, ignore this email.", link))
}

func (m *Mailer) link(path, rawToken string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(rawToken)
}

func (m *Mailer) enqueue(ctx context.Context, to, subject, body string) error {
	info, err := m.enqueuer.EnqueueSendEmail(ctx, jobs.SendEmailPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	m.logger.Debug("mail enqueued", slog.String("task_id", info.ID), slog.String("subject", subject))
	return nil
}

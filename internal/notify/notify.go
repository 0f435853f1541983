// Package notify is the post-commit notification boundary. Collaborators
// (email, badge printer, messaging) receive the committed registration;
// their failures are logged and never roll back a committed registration.
package notify

import (
	"context"
	"log"

	"github.com/andeanconf/registration/internal/registration/domain"
)

// Confirmation is the payload delivered to collaborators after commit.
type Confirmation struct {
	RegistrantID string
	Email        string
	Token        string
	Sessions     []domain.Session
}

// Notifier delivers one registration confirmation.
type Notifier interface {
	NotifyRegistration(ctx context.Context, confirmation Confirmation) error
}

// LogNotifier writes confirmations to the process log. It stands in for
// the real email/printer collaborators in development and tests.
type LogNotifier struct{}

// NotifyRegistration implements Notifier.
func (LogNotifier) NotifyRegistration(ctx context.Context, confirmation Confirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf(
		"registration confirmed registrant_id=%s email=%s sessions=%d",
		confirmation.RegistrantID,
		confirmation.Email,
		len(confirmation.Sessions),
	)
	return nil
}

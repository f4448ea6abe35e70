// Package notify delivers reservation emails queued in the notification outbox.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
)

var (
	// ErrUnknownKind indicates an outbox row whose kind has no template.
	ErrUnknownKind = errors.New("notify.unknown_kind")
	// ErrInvalidDispatcherConfig indicates missing dispatcher dependencies.
	ErrInvalidDispatcherConfig = errors.New("notify.invalid_config")
	// ErrUnknownTransport indicates an unsupported sender name.
	ErrUnknownTransport = errors.New("notify.unknown_transport")
)

// Message is one claimed outbox row.
type Message struct {
	ID        string
	Kind      reservas.NotificationKind
	Recipient string
	Subject   string
	Payload   reservas.NotificationPayload
	Attempts  int
}

// Email is a rendered message ready for a transport.
type Email struct {
	MessageID     string `json:"message_id"`
	Kind          string `json:"kind"`
	ReservationID uint64 `json:"reservation_id"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	HTMLBody      string `json:"html_body"`
	TextBody      string `json:"text_body"`
}

// OutboxStore persists delivery progress for queued notifications.
type OutboxStore interface {
	// ClaimDue returns up to limit pending messages available at now and hides
	// them from other claimers until now+lease.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Message, error)
	MarkSent(ctx context.Context, messageID string, sentAt time.Time) error
	MarkRetry(ctx context.Context, messageID string, attempts int, nextAttempt time.Time, cause string) error
	MarkDead(ctx context.Context, messageID string, attempts int, cause string) error
}

// Sender hands a rendered email to a delivery transport.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

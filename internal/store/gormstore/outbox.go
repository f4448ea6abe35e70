package gormstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/internal/notify"
	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusDead    = "dead"
	errorCodeClaim      = "claim"
	errorCodeDecode     = "decode"
)

// Outbox exposes the notification outbox to the dispatcher.
type Outbox struct {
	db *gorm.DB
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

// ClaimDue locks due rows, skipping rows another dispatcher holds, and pushes
// their availability past the lease before returning them.
func (outbox *Outbox) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]notify.Message, error) {
	var rows []OutboxMessage
	err := outbox.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		err := transaction.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND available_at <= ?", outboxStatusPending, now.UTC()).
			Order("available_at ASC").
			Limit(limit).
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.MessageID)
		}
		return transaction.Model(&OutboxMessage{}).
			Where("message_id IN ?", ids).
			Update("available_at", now.UTC().Add(lease)).Error
	})
	if err != nil {
		return nil, wrapStoreError(errorSubjectOutbox, errorCodeClaim, err)
	}
	messages := make([]notify.Message, 0, len(rows))
	for _, row := range rows {
		var payload reservas.NotificationPayload
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return nil, wrapStoreError(errorSubjectOutbox, errorCodeDecode, err)
		}
		messages = append(messages, notify.Message{
			ID:        row.MessageID,
			Kind:      reservas.NotificationKind(row.Kind),
			Recipient: row.Recipient,
			Subject:   row.Subject,
			Payload:   payload,
			Attempts:  row.Attempts,
		})
	}
	return messages, nil
}

func (outbox *Outbox) MarkSent(ctx context.Context, messageID string, sentAt time.Time) error {
	return outbox.update(ctx, messageID, map[string]any{
		"status":     outboxStatusSent,
		"sent_at":    sentAt.UTC(),
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": nil,
	})
}

func (outbox *Outbox) MarkRetry(ctx context.Context, messageID string, attempts int, nextAttempt time.Time, cause string) error {
	return outbox.update(ctx, messageID, map[string]any{
		"status":       outboxStatusPending,
		"attempts":     attempts,
		"available_at": nextAttempt.UTC(),
		"last_error":   cause,
	})
}

func (outbox *Outbox) MarkDead(ctx context.Context, messageID string, attempts int, cause string) error {
	return outbox.update(ctx, messageID, map[string]any{
		"status":     outboxStatusDead,
		"attempts":   attempts,
		"last_error": cause,
	})
}

func (outbox *Outbox) update(ctx context.Context, messageID string, values map[string]any) error {
	err := outbox.db.WithContext(ctx).
		Model(&OutboxMessage{}).
		Where("message_id = ?", messageID).
		Updates(values).Error
	if err != nil {
		return wrapStoreError(errorSubjectOutbox, errorCodeUpdate, err)
	}
	return nil
}

// Pending counts rows still awaiting delivery.
func (outbox *Outbox) Pending(ctx context.Context) (int, error) {
	var count int64
	err := outbox.db.WithContext(ctx).Model(&OutboxMessage{}).Where("status = ?", outboxStatusPending).Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectOutbox, errorCodeCount, err)
	}
	return int(count), nil
}

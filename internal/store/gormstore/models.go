package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reservation mirrors the reservas table.
type Reservation struct {
	ID                 uint64     `gorm:"primaryKey;autoIncrement"`
	UserID             *string    `gorm:"type:varchar(191);index:idx_reservas_user"`
	Date               string     `gorm:"column:data;type:varchar(10);not null;index:idx_reservas_slot,priority:1"`
	Time               string     `gorm:"column:hora;type:varchar(5);not null;index:idx_reservas_slot,priority:2"`
	PartySize          int        `gorm:"column:quantidade_cadeiras;not null"`
	Name               string     `gorm:"type:varchar(255);not null"`
	Email              string     `gorm:"type:varchar(255);not null"`
	Phone              string     `gorm:"type:varchar(32)"`
	Status             string     `gorm:"type:varchar(16);not null;index:idx_reservas_status_created,priority:1"`
	ConfirmationToken  *string    `gorm:"column:confirmacao_token;type:varchar(64);uniqueIndex"`
	CancellationReason *string    `gorm:"column:motivo_cancelamento;type:text"`
	CanceledAt         *time.Time `gorm:""`
	CreatedAt          time.Time  `gorm:"not null;index:idx_reservas_status_created,priority:2"`
	UpdatedAt          time.Time  `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservas" }

// SystemSetting mirrors the system_settings key/value table.
type SystemSetting struct {
	Key         string    `gorm:"column:setting_key;type:varchar(191);primaryKey"`
	Value       string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (SystemSetting) TableName() string { return "system_settings" }

// OutboxMessage is a notification written in the same transaction as the
// reservation change it describes.
type OutboxMessage struct {
	MessageID   string         `gorm:"type:varchar(36);primaryKey"`
	Kind        string         `gorm:"type:varchar(64);not null"`
	Recipient   string         `gorm:"type:varchar(255);not null"`
	Subject     string         `gorm:"type:varchar(255);not null"`
	Payload     datatypes.JSON `gorm:"not null"`
	Status      string         `gorm:"type:varchar(16);not null;index:idx_outbox_status_available,priority:1"`
	Attempts    int            `gorm:"not null;default:0"`
	LastError   *string        `gorm:"type:text"`
	AvailableAt time.Time      `gorm:"not null;index:idx_outbox_status_available,priority:2"`
	SentAt      *time.Time     `gorm:""`
	CreatedAt   time.Time      `gorm:"not null"`
}

func (OutboxMessage) TableName() string { return "notification_outbox" }

func (message *OutboxMessage) BeforeCreate(tx *gorm.DB) error {
	if message.MessageID == "" {
		message.MessageID = uuid.NewString()
	}
	return nil
}

// Models lists every table the store needs, in migration order.
func Models() []any {
	return []any{&Reservation{}, &SystemSetting{}, &OutboxMessage{}}
}

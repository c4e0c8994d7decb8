package models

import (
	"time"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"github.com/shopspring/decimal"
)

// AuditEventRecord is one outbox row per ledger mutation or document
// transition. Rows are written in the mutating transaction and published to
// Pub/Sub after commit by the outbox dispatcher. The audit service is a
// notified observer; nothing here gates the commit.
type AuditEventRecord struct {
	ID         int             `gorm:"primary_key;index:idx_audit_dispatch,priority:3" json:"id"`
	BusinessId string          `gorm:"size:64;not null;index" json:"business_id"`
	ObjectType string          `gorm:"size:50;not null" json:"object_type"`
	ObjectId   int             `gorm:"index;not null" json:"object_id"`
	Action     AuditAction     `gorm:"type:enum('CREATE','UPDATE','DELETE','LEDGER_ADJUST','RESERVE','RELEASE','DOC_STATUS');not null" json:"action"`
	Severity   AuditSeverity   `gorm:"type:enum('INFO','WARNING','CRITICAL');not null;default:'INFO'" json:"severity"`
	BeforeQty  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"before_qty"`
	AfterQty   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"after_qty"`
	ActorId    int             `json:"actor_id"`

	// outbox metadata (publish happens after commit via dispatcher)
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_audit_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_audit_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToAuditMessage(record AuditEventRecord) config.AuditMessage {
	return config.AuditMessage{
		ID:            record.ID,
		BusinessId:    record.BusinessId,
		ObjectType:    record.ObjectType,
		ObjectId:      record.ObjectId,
		Action:        string(record.Action),
		BeforeQty:     record.BeforeQty.String(),
		AfterQty:      record.AfterQty.String(),
		ActorId:       record.ActorId,
		Severity:      string(record.Severity),
		OccurredAt:    record.CreatedAt,
		CorrelationId: record.CorrelationId,
	}
}

package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
)

// Publish statuses for OutboxMessage.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// OutboxMessage is a lead/task/ticket event written in the same transaction as the
// change it describes and published to Pub/Sub after commit.
type OutboxMessage struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	BusinessId       string     `gorm:"size:64;not null;index" json:"business_id"`
	EventType        string     `gorm:"size:50;not null;index" json:"event_type"`
	ReferenceType    string     `gorm:"size:50;not null" json:"reference_type"`
	ReferenceId      int        `gorm:"not null;index" json:"reference_id"`
	ActorId          int        `json:"actor_id"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	OccurredAt       time.Time  `gorm:"not null" json:"occurred_at"`
	PublishStatus    string     `gorm:"size:20;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m OutboxMessage) ToEventMessage() config.EventMessage {
	return config.EventMessage{
		ID:            m.ID,
		BusinessId:    m.BusinessId,
		EventType:     m.EventType,
		ReferenceId:   m.ReferenceId,
		ReferenceType: m.ReferenceType,
		OccurredAt:    m.OccurredAt,
		ActorId:       m.ActorId,
		Payload:       m.Payload,
		CorrelationId: m.CorrelationId,
	}
}

// ReplayOutboxMessage puts a FAILED or DEAD row back in the dispatch queue.
func ReplayOutboxMessage(ctx context.Context, id int) (*OutboxMessage, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	msg, err := fetchModel[OutboxMessage](ctx, db, businessId, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("business_id = ? AND id = ?", businessId, id).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusFailed,
			"publish_attempts":   0,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		}).Error; err != nil {
		return nil, err
	}
	msg.PublishStatus = OutboxPublishStatusFailed
	msg.PublishAttempts = 0
	msg.NextAttemptAt = &now
	return msg, nil
}

// ListOutboxMessages returns the newest events for one reference, newest first.
func ListOutboxMessages(ctx context.Context, refType string, refId int) ([]*OutboxMessage, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*OutboxMessage
	err = config.GetDB().WithContext(ctx).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, refType, refId).
		Order("id DESC").
		Limit(50).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = make([]*OutboxMessage, 0)
	}
	return results, nil
}

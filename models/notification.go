package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"gorm.io/gorm"
)

// Notification is an in-app message for one user, produced from outbox events.
type Notification struct {
	ID            int        `gorm:"primary_key" json:"id"`
	BusinessId    string     `gorm:"size:64;not null;index" json:"business_id"`
	UserId        int        `gorm:"not null;index:idx_notification_inbox,priority:1" json:"user_id"`
	EventType     string     `gorm:"size:50;not null" json:"event_type"`
	ReferenceType string     `gorm:"size:50;not null" json:"reference_type"`
	ReferenceId   int        `gorm:"not null" json:"reference_id"`
	Message       string     `gorm:"type:text;not null" json:"message"`
	ReadAt        *time.Time `gorm:"index:idx_notification_inbox,priority:2" json:"read_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// CreateNotifications inserts one row per recipient inside tx. Recipients are de-duplicated.
func CreateNotifications(tx *gorm.DB, businessId string, userIds []int, eventType, refType string, refId int, message string) error {
	seen := make(map[int]bool, len(userIds))
	rows := make([]*Notification, 0, len(userIds))
	for _, id := range userIds {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, &Notification{
			BusinessId:    businessId,
			UserId:        id,
			EventType:     eventType,
			ReferenceType: refType,
			ReferenceId:   refId,
			Message:       message,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func ListNotifications(ctx context.Context, unreadOnly bool) ([]*Notification, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("business_id = ? AND user_id = ?", a.BusinessId, a.UserId)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var results []*Notification
	if err := q.Order("id DESC").Limit(100).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func MarkNotificationRead(ctx context.Context, id int) (*Notification, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	n, err := fetchModel[Notification](ctx, db, a.BusinessId, id)
	if err != nil {
		return nil, err
	}
	if n.UserId != a.UserId {
		return nil, utils.ErrorRecordNotFound
	}
	if n.ReadAt != nil {
		return n, nil
	}
	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&Notification{}).
		Where("business_id = ? AND id = ?", a.BusinessId, id).
		Update("read_at", now).Error; err != nil {
		return nil, err
	}
	n.ReadAt = &now
	return n, nil
}

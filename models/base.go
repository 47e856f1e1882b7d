package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"gorm.io/gorm"
)

// actor is the tenant and user a write is attributed to.
type actor struct {
	BusinessId string
	UserId     int
	UserName   string
}

func actorFromContext(ctx context.Context) (actor, error) {
	var a actor
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return a, errors.New("business id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return a, errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)
	a.BusinessId = businessId
	a.UserId = userId
	a.UserName = userName
	return a, nil
}

func businessIdFromContext(ctx context.Context) (string, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", errors.New("business id is required")
	}
	return businessId, nil
}

// fetchModel loads T by id inside the caller's tenant, returning ErrorRecordNotFound on miss.
func fetchModel[T any](ctx context.Context, tx *gorm.DB, businessId string, id int) (*T, error) {
	var result T
	err := tx.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, id).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// writeOutbox records an event inside tx; the dispatcher publishes it after commit.
func writeOutbox(tx *gorm.DB, businessId string, eventType string, refType string, refId int, payload interface{}) error {
	if !config.PublishLeadEvents() {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx := tx.Statement.Context
	actorId, _ := utils.GetUserIdFromContext(ctx)
	record := OutboxMessage{
		BusinessId:    businessId,
		EventType:     eventType,
		ReferenceType: refType,
		ReferenceId:   refId,
		ActorId:       actorId,
		Payload:       data,
		OccurredAt:    time.Now().UTC(),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

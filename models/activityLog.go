package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"gorm.io/gorm"
)

// ActivityLog is the append-only audit trail. Nothing in the codebase updates or deletes rows.
type ActivityLog struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"size:64;not null;index" json:"business_id"`
	LeadId        *int      `gorm:"index" json:"lead_id"`
	ActionType    string    `gorm:"size:20;not null" json:"action_type"`
	ReferenceType string    `gorm:"size:50;not null;index:idx_activity_ref,priority:1" json:"reference_type"`
	ReferenceId   int       `gorm:"not null;index:idx_activity_ref,priority:2" json:"reference_id"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	Before        string    `gorm:"type:text" json:"before,omitempty"`
	After         string    `gorm:"type:text" json:"after,omitempty"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (a ActivityLog) GetId() int {
	return a.ID
}

type ActivityFilter struct {
	LeadId        *int       `form:"lead_id"`
	ReferenceType string     `form:"reference_type"`
	ReferenceId   *int       `form:"reference_id"`
	ActionType    string     `form:"action_type"`
	UserId        *int       `form:"user_id"`
	From          *time.Time `form:"from" time_format:"2006-01-02"`
	To            *time.Time `form:"to" time_format:"2006-01-02"`
}

// createActivity appends an entry inside tx, attributing it to the context's user.
func createActivity(tx *gorm.DB,
	leadId *int,
	actionType string,
	referenceType string,
	referenceId int,
	before interface{},
	after interface{},
	description string) error {

	ctx := tx.Statement.Context
	a, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	entry := ActivityLog{
		BusinessId:    a.BusinessId,
		LeadId:        leadId,
		ActionType:    actionType,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Description:   description,
		Before:        marshalSnapshot(before),
		After:         marshalSnapshot(after),
		UserId:        a.UserId,
		UserName:      a.UserName,
	}
	return tx.Create(&entry).Error
}

func marshalSnapshot(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// ListLeadActivity returns a lead's trail, oldest first.
func ListLeadActivity(ctx context.Context, leadId int) ([]*ActivityLog, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := GetLead(ctx, leadId); err != nil {
		return nil, err
	}
	var results []*ActivityLog
	err = config.GetDB().WithContext(ctx).
		Where("business_id = ? AND lead_id = ?", businessId, leadId).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateActivity(ctx context.Context, limit int, after *string, filter *ActivityFilter) (*Connection[ActivityLog], error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&ActivityLog{}).Where("business_id = ?", businessId)
	if _, restricted := scopeCampaignsForViewer(ctx); restricted {
		// clients only see the trail of leads in their own campaigns
		leads := restrictLeadsForViewer(ctx, config.GetDB().WithContext(ctx).Model(&Lead{}).Select("id").Where("business_id = ?", businessId))
		dbCtx = dbCtx.Where("lead_id IN (?)", leads)
	}
	if filter != nil {
		if filter.LeadId != nil {
			dbCtx = dbCtx.Where("lead_id = ?", *filter.LeadId)
		}
		if filter.ReferenceType != "" {
			dbCtx = dbCtx.Where("reference_type = ?", filter.ReferenceType)
		}
		if filter.ReferenceId != nil {
			dbCtx = dbCtx.Where("reference_id = ?", *filter.ReferenceId)
		}
		if filter.ActionType != "" {
			dbCtx = dbCtx.Where("action_type = ?", filter.ActionType)
		}
		if filter.UserId != nil {
			dbCtx = dbCtx.Where("user_id = ?", *filter.UserId)
		}
		if filter.From != nil {
			dbCtx = dbCtx.Where("created_at >= ?", *filter.From)
		}
		if filter.To != nil {
			dbCtx = dbCtx.Where("created_at < ?", filter.To.AddDate(0, 0, 1))
		}
		if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
			return nil, errors.New("to date is before from date")
		}
	}
	return FetchPageById[ActivityLog](dbCtx, limit, after)
}

package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
)

type Comment struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"size:64;index;not null" json:"business_id"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceId   int       `gorm:"index:idx_comment_ref,priority:2" json:"reference_id"`
	ReferenceType string    `gorm:"size:50;index:idx_comment_ref,priority:1" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewComment struct {
	Description   string `json:"description" binding:"required"`
	ReferenceId   int    `json:"reference_id" binding:"required"`
	ReferenceType string `json:"reference_type" binding:"required"`
}

// checkCommentTarget makes sure the commented record exists and is visible to the caller.
func checkCommentTarget(ctx context.Context, referenceType string, referenceId int) error {
	switch referenceType {
	case ReferenceTypeLead:
		_, err := GetLead(ctx, referenceId)
		return err
	case ReferenceTypeTicket:
		_, err := GetTicket(ctx, referenceId)
		return err
	}
	return errors.New("comments are only allowed on leads and tickets")
}

func CreateComment(ctx context.Context, input *NewComment) (*Comment, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, errors.New("description is required")
	}
	if err := checkCommentTarget(ctx, input.ReferenceType, input.ReferenceId); err != nil {
		return nil, err
	}

	comment := Comment{
		BusinessId:    a.BusinessId,
		Description:   description,
		ReferenceId:   input.ReferenceId,
		ReferenceType: input.ReferenceType,
		UserId:        a.UserId,
		UserName:      a.UserName,
	}
	if err := config.GetDB().WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment lets authors remove their own comments.
func DeleteComment(ctx context.Context, id int) (*Comment, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	result, err := fetchModel[Comment](ctx, db, a.BusinessId, id)
	if err != nil {
		return nil, err
	}
	if result.UserId != a.UserId {
		return nil, utils.ErrorForbidden
	}
	if err := db.WithContext(ctx).Where("business_id = ? AND id = ?", a.BusinessId, id).Delete(&Comment{}).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func ListComments(ctx context.Context, referenceType string, referenceId int) ([]*Comment, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkCommentTarget(ctx, referenceType, referenceId); err != nil {
		return nil, err
	}
	var results []*Comment
	err = config.GetDB().WithContext(ctx).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Order("created_at DESC").Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

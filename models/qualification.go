package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/leads_backend/config"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type QualifyInput struct {
	Decision QualificationStatus `json:"decision" binding:"required"`
	Reason   string              `json:"reason"`
}

// SubmitForReview hands a new or callback lead to QC.
func SubmitForReview(ctx context.Context, leadId int) (*Lead, error) {
	return QualifyLead(ctx, leadId, &QualifyInput{Decision: QualificationStatusUnderReview})
}

// QualifyLead moves a lead through the qualification machine. A lead that
// becomes Qualified enters the first custom pipeline stage.
func QualifyLead(ctx context.Context, leadId int, input *QualifyInput) (*Lead, error) {
	ctx, span := tracer.Start(ctx, "QualifyLead")
	defer span.End()
	span.SetAttributes(attribute.Int("lead.id", leadId), attribute.String("qualification.decision", string(input.Decision)))

	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if input.Decision == QualificationStatusDisqualified && reason == "" {
		return nil, fmt.Errorf("%w: a reason is required to disqualify", ErrInvalidQualificationTransition)
	}

	var lead *Lead
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = lockLead(ctx, tx, a.BusinessId, leadId)
		if err != nil {
			return err
		}
		from := lead.QualificationStatus
		if !from.CanTransitionTo(input.Decision) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidQualificationTransition, from, input.Decision)
		}
		if err := tx.Model(&Lead{}).Where("business_id = ? AND id = ?", a.BusinessId, lead.ID).
			Updates(map[string]interface{}{
				"qualification_status": input.Decision,
				"qualification_reason": reason,
			}).Error; err != nil {
			return err
		}
		lead.QualificationStatus = input.Decision
		lead.QualificationReason = reason

		description := fmt.Sprintf("Qualification changed from %s to %s.", from, input.Decision)
		if reason != "" {
			description = fmt.Sprintf("Qualification changed from %s to %s: %s", from, input.Decision, reason)
		}
		if err := createActivity(tx, &lead.ID, ActionQualify, ReferenceTypeLead, lead.ID,
			map[string]interface{}{"qualification_status": from},
			map[string]interface{}{"qualification_status": input.Decision},
			description); err != nil {
			return err
		}
		if input.Decision != QualificationStatusQualified {
			return nil
		}

		if err := writeOutbox(tx, a.BusinessId, EventLeadQualified, ReferenceTypeLead, lead.ID, newLeadEvent(lead)); err != nil {
			return err
		}
		if lead.StageId != nil {
			return nil
		}
		stage, err := firstCustomStage(tx, a.BusinessId)
		if err != nil {
			return err
		}
		return applyStageChange(tx, a, lead, nil, stage)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return lead, nil
}

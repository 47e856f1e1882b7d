package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("github.com/mmdatafocus/leads_backend/models")

// StageRef is the part of a stage the move decision looks at.
type StageRef struct {
	Id        int
	Name      string
	SortOrder int
	IsSystem  bool
}

type MoveDecision string

const (
	MoveNoop     MoveDecision = "NOOP"
	MoveForward  MoveDecision = "FORWARD"
	MoveLateral  MoveDecision = "LATERAL"
	MoveBackward MoveDecision = "BACKWARD"
)

// DecideStageMove applies the completion gate. A forward move (strictly greater
// sort order) needs every task on the current stage done; backward and lateral
// moves always pass. Leaving a system stage always counts as backward.
func DecideStageMove(current, target StageRef, openTasks int) (MoveDecision, error) {
	if current.Id == target.Id {
		return MoveNoop, nil
	}
	if current.IsSystem && !target.IsSystem {
		return MoveBackward, nil
	}
	switch {
	case target.SortOrder > current.SortOrder:
		if openTasks > 0 {
			return "", fmt.Errorf("%w: %d open task(s) in %s", ErrStageGateBlocked, openTasks, current.Name)
		}
		return MoveForward, nil
	case target.SortOrder < current.SortOrder:
		return MoveBackward, nil
	default:
		return MoveLateral, nil
	}
}

type StageMoveResult struct {
	Lead     *Lead          `json:"lead"`
	Decision MoveDecision   `json:"decision"`
	From     *PipelineStage `json:"from"`
	To       *PipelineStage `json:"to"`
}

// lockLead loads a lead FOR UPDATE inside tx.
func lockLead(ctx context.Context, tx *gorm.DB, businessId string, id int) (*Lead, error) {
	var lead Lead
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		Take(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &lead, nil
}

func countOpenTasks(tx *gorm.DB, businessId string, leadId int, stageId int) (int64, error) {
	var count int64
	err := tx.Model(&Task{}).
		Where("business_id = ? AND lead_id = ? AND stage_id = ? AND status = ?", businessId, leadId, stageId, TaskStatusPending).
		Count(&count).Error
	return count, err
}

// MoveLeadStage moves a qualified lead to targetStageId subject to the completion gate.
// A move to the current stage returns the lead untouched and records nothing.
func MoveLeadStage(ctx context.Context, leadId int, targetStageId int) (*StageMoveResult, error) {
	ctx, span := tracer.Start(ctx, "MoveLeadStage")
	defer span.End()
	span.SetAttributes(attribute.Int("lead.id", leadId), attribute.Int("stage.target", targetStageId))

	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	lock := config.ObtainLock(ctx, fmt.Sprintf("lock:lead:%d", leadId), 15*time.Second)
	defer config.ReleaseLock(ctx, lock)

	var result StageMoveResult
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := lockLead(ctx, tx, a.BusinessId, leadId)
		if err != nil {
			return err
		}
		result.Lead = lead
		if lead.StageId == nil {
			return ErrLeadNotInPipeline
		}
		current, err := fetchModel[PipelineStage](ctx, tx, a.BusinessId, *lead.StageId)
		if err != nil {
			return err
		}
		target, err := fetchModel[PipelineStage](ctx, tx, a.BusinessId, targetStageId)
		if err != nil {
			return fmt.Errorf("target stage %d: %w", targetStageId, err)
		}
		result.From = current
		result.To = target

		open, err := countOpenTasks(tx, a.BusinessId, lead.ID, current.ID)
		if err != nil {
			return err
		}
		decision, err := DecideStageMove(current.Ref(), target.Ref(), int(open))
		if err != nil {
			return err
		}
		result.Decision = decision
		if decision == MoveNoop {
			return nil
		}
		return applyStageChange(tx, a, lead, current, target)
	})
	span.SetAttributes(attribute.String("stage.decision", string(result.Decision)))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &result, nil
}

// applyStageChange writes the new stage with its audit entry, the target stage's
// tasks and the lead.stage_changed event. from is nil when a lead first enters the pipeline.
func applyStageChange(tx *gorm.DB, a actor, lead *Lead, from *PipelineStage, to *PipelineStage) error {
	now := time.Now().UTC()
	if err := tx.Model(&Lead{}).Where("business_id = ? AND id = ?", a.BusinessId, lead.ID).
		Updates(map[string]interface{}{"stage_id": to.ID, "stage_changed_at": now}).Error; err != nil {
		return err
	}
	var fromId *int
	description := fmt.Sprintf("Entered pipeline at %s.", to.Name)
	if from != nil {
		fromId = &from.ID
		description = fmt.Sprintf("Moved from %s to %s.", from.Name, to.Name)
	}
	lead.StageId = &to.ID
	lead.StageChangedAt = &now

	before := map[string]interface{}{"stage_id": fromId}
	after := map[string]interface{}{"stage_id": to.ID}
	if err := createActivity(tx, &lead.ID, ActionStageMove, ReferenceTypeLead, lead.ID, before, after, description); err != nil {
		return err
	}
	if config.AutoStageTasks() {
		if err := materializeStageTasks(tx, a, lead, to); err != nil {
			return err
		}
	}
	event := newLeadEvent(lead)
	event.FromStageId = fromId
	event.ToStageId = &to.ID
	event.ToStageName = to.Name
	return writeOutbox(tx, a.BusinessId, EventLeadStageChanged, ReferenceTypeLead, lead.ID, event)
}

// materializeStageTasks copies the stage's templates onto the lead. Templates
// already materialized for this lead are skipped, so re-entering a stage does
// not duplicate its checklist.
func materializeStageTasks(tx *gorm.DB, a actor, lead *Lead, stage *PipelineStage) error {
	var templates []*StageTaskTemplate
	if err := tx.Where("business_id = ? AND stage_id = ?", a.BusinessId, stage.ID).
		Order("sort_order").Order("id").
		Find(&templates).Error; err != nil {
		return err
	}
	if len(templates) == 0 {
		return nil
	}
	var existing []int
	if err := tx.Model(&Task{}).
		Where("business_id = ? AND lead_id = ? AND template_id IS NOT NULL", a.BusinessId, lead.ID).
		Pluck("template_id", &existing).Error; err != nil {
		return err
	}
	seen := make(map[int]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}

	today := time.Now().UTC()
	tasks := make([]*Task, 0, len(templates))
	for _, tmpl := range templates {
		if seen[tmpl.ID] {
			continue
		}
		templateId := tmpl.ID
		task := &Task{
			BusinessId:  a.BusinessId,
			LeadId:      lead.ID,
			StageId:     stage.ID,
			Title:       tmpl.Title,
			Description: tmpl.Description,
			Status:      TaskStatusPending,
			AssigneeId:  lead.AssignedUserId,
			TemplateId:  &templateId,
			CreatedBy:   a.UserId,
		}
		if tmpl.DueInDays != nil {
			due := today.AddDate(0, 0, *tmpl.DueInDays)
			task.DueDate = &due
		}
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		return nil
	}
	return tx.Create(&tasks).Error
}

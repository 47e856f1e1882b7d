package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Task struct {
	ID          int        `gorm:"primary_key" json:"id"`
	BusinessId  string     `gorm:"size:64;not null;index" json:"business_id"`
	LeadId      int        `gorm:"not null;index:idx_task_gate,priority:1" json:"lead_id"`
	StageId     int        `gorm:"not null;index:idx_task_gate,priority:2" json:"stage_id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      TaskStatus `gorm:"size:20;not null;default:'Pending';index:idx_task_gate,priority:3" json:"status"`
	AssigneeId  *int       `gorm:"index" json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy *int       `json:"completed_by"`
	TemplateId  *int       `gorm:"index" json:"template_id"`
	CreatedBy   int        `json:"created_by"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Task) GetId() int {
	return t.ID
}

type NewTask struct {
	StageId     *int       `json:"stage_id"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	AssigneeId  *int       `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

type TaskEvent struct {
	TaskId      int    `json:"task_id"`
	LeadId      int    `json:"lead_id"`
	StageId     int    `json:"stage_id"`
	Title       string `json:"title"`
	AssigneeId  *int   `json:"assignee_id,omitempty"`
	CompletedBy *int   `json:"completed_by,omitempty"`
}

func lockTask(ctx context.Context, tx *gorm.DB, businessId string, id int) (*Task, error) {
	var task Task
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		Take(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &task, nil
}

// CreateTask adds a checklist item to a lead. Without a stage it goes on the lead's current stage.
func CreateTask(ctx context.Context, leadId int, input *NewTask) (*Task, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	var task Task
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := lockLead(ctx, tx, a.BusinessId, leadId)
		if err != nil {
			return err
		}
		stageId := input.StageId
		if stageId == nil {
			stageId = lead.StageId
		}
		if stageId == nil {
			return ErrLeadNotInPipeline
		}
		if _, err := fetchModel[PipelineStage](ctx, tx, a.BusinessId, *stageId); err != nil {
			return fmt.Errorf("stage %d: %w", *stageId, err)
		}
		if input.AssigneeId != nil {
			if _, err := requireUserWithRole(tx, a.BusinessId, *input.AssigneeId, LeadWorkerRoles...); err != nil {
				return ErrInvalidAssignee
			}
		}
		task = Task{
			BusinessId:  a.BusinessId,
			LeadId:      lead.ID,
			StageId:     *stageId,
			Title:       title,
			Description: input.Description,
			Status:      TaskStatusPending,
			AssigneeId:  input.AssigneeId,
			DueDate:     input.DueDate,
			CreatedBy:   a.UserId,
		}
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		return createActivity(tx, &lead.ID, ActionCreate, ReferenceTypeTask, task.ID, nil, task,
			fmt.Sprintf("Task %s added.", task.Title))
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func GetTask(ctx context.Context, id int) (*Task, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return fetchModel[Task](ctx, config.GetDB(), businessId, id)
}

// UpdateTask edits title, description, assignee and due date. Status changes go
// through CompleteTask and ReopenTask.
func UpdateTask(ctx context.Context, id int, input *NewTask) (*Task, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	var task *Task
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = lockTask(ctx, tx, a.BusinessId, id)
		if err != nil {
			return err
		}
		if input.AssigneeId != nil {
			if _, err := requireUserWithRole(tx, a.BusinessId, *input.AssigneeId, LeadWorkerRoles...); err != nil {
				return ErrInvalidAssignee
			}
		}
		before := *task
		task.Title = title
		task.Description = input.Description
		task.AssigneeId = input.AssigneeId
		task.DueDate = input.DueDate
		if err := tx.Model(&Task{}).Where("business_id = ? AND id = ?", a.BusinessId, id).
			Updates(map[string]interface{}{
				"title":       task.Title,
				"description": task.Description,
				"assignee_id": task.AssigneeId,
				"due_date":    task.DueDate,
			}).Error; err != nil {
			return err
		}
		return createActivity(tx, &task.LeadId, ActionUpdate, ReferenceTypeTask, task.ID, before, task,
			fmt.Sprintf("Task %s updated.", task.Title))
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func CompleteTask(ctx context.Context, id int) (*Task, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var task *Task
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = lockTask(ctx, tx, a.BusinessId, id)
		if err != nil {
			return err
		}
		if task.Status == TaskStatusCompleted {
			return nil
		}
		now := time.Now().UTC()
		if err := tx.Model(&Task{}).Where("business_id = ? AND id = ?", a.BusinessId, id).
			Updates(map[string]interface{}{
				"status":       TaskStatusCompleted,
				"completed_at": now,
				"completed_by": a.UserId,
			}).Error; err != nil {
			return err
		}
		task.Status = TaskStatusCompleted
		task.CompletedAt = &now
		task.CompletedBy = &a.UserId
		if err := createActivity(tx, &task.LeadId, ActionComplete, ReferenceTypeTask, task.ID, nil, nil,
			fmt.Sprintf("Task %s completed.", task.Title)); err != nil {
			return err
		}
		return writeOutbox(tx, a.BusinessId, EventTaskCompleted, ReferenceTypeTask, task.ID, TaskEvent{
			TaskId:      task.ID,
			LeadId:      task.LeadId,
			StageId:     task.StageId,
			Title:       task.Title,
			AssigneeId:  task.AssigneeId,
			CompletedBy: task.CompletedBy,
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func ReopenTask(ctx context.Context, id int) (*Task, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var task *Task
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = lockTask(ctx, tx, a.BusinessId, id)
		if err != nil {
			return err
		}
		if task.Status == TaskStatusPending {
			return nil
		}
		if err := tx.Model(&Task{}).Where("business_id = ? AND id = ?", a.BusinessId, id).
			Updates(map[string]interface{}{
				"status":       TaskStatusPending,
				"completed_at": nil,
				"completed_by": nil,
			}).Error; err != nil {
			return err
		}
		task.Status = TaskStatusPending
		task.CompletedAt = nil
		task.CompletedBy = nil
		return createActivity(tx, &task.LeadId, ActionReopen, ReferenceTypeTask, task.ID, nil, nil,
			fmt.Sprintf("Task %s reopened.", task.Title))
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func DeleteTask(ctx context.Context, id int) (*Task, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var task *Task
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = lockTask(ctx, tx, a.BusinessId, id)
		if err != nil {
			return err
		}
		if err := tx.Where("business_id = ? AND id = ?", a.BusinessId, id).Delete(&Task{}).Error; err != nil {
			return err
		}
		return createActivity(tx, &task.LeadId, ActionDelete, ReferenceTypeTask, task.ID, task, nil,
			fmt.Sprintf("Task %s deleted.", task.Title))
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListLeadTasks returns a lead's tasks, optionally for one stage.
func ListLeadTasks(ctx context.Context, leadId int, stageId *int) ([]*Task, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := GetLead(ctx, leadId); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("business_id = ? AND lead_id = ?", businessId, leadId)
	if stageId != nil {
		q = q.Where("stage_id = ?", *stageId)
	}
	var results []*Task
	if err := q.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListMyTasks returns tasks assigned to the current user, earliest due first.
func ListMyTasks(ctx context.Context, status *TaskStatus) ([]*Task, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("business_id = ? AND assignee_id = ?", a.BusinessId, a.UserId)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var results []*Task
	if err := q.Order("due_date IS NULL").Order("due_date").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

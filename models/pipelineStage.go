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
)

// System stages sit after every custom stage and never move.
const systemStageSortOrderBase = 1000

type PipelineStage struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;not null;uniqueIndex:uniq_stage_name,priority:1" json:"business_id"`
	Name       string    `gorm:"size:100;not null;uniqueIndex:uniq_stage_name,priority:2" json:"name"`
	SortOrder  int       `gorm:"not null;index" json:"sort_order"`
	IsSystem   bool      `gorm:"not null;default:false" json:"is_system"`
	Color      string    `gorm:"size:20" json:"color"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s PipelineStage) GetId() int {
	return s.ID
}

// StageTaskTemplate is a checklist item copied onto a lead when it enters the stage.
type StageTaskTemplate struct {
	ID          int       `gorm:"primary_key" json:"id"`
	BusinessId  string    `gorm:"size:64;not null;index" json:"business_id"`
	StageId     int       `gorm:"not null;index" json:"stage_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	DueInDays   *int      `json:"due_in_days"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewPipelineStage struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

type NewStageTaskTemplate struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	DueInDays   *int   `json:"due_in_days"`
}

func (s PipelineStage) Ref() StageRef {
	return StageRef{Id: s.ID, Name: s.Name, SortOrder: s.SortOrder, IsSystem: s.IsSystem}
}

var defaultStages = []PipelineStage{
	{Name: "Attempting Contact", SortOrder: 1, Color: "#3b82f6"},
	{Name: "Contacted", SortOrder: 2, Color: "#06b6d4"},
	{Name: "Follow-Up", SortOrder: 3, Color: "#8b5cf6"},
	{Name: "Appointment Set", SortOrder: 4, Color: "#f59e0b"},
	{Name: "Negotiation", SortOrder: 5, Color: "#ec4899"},
	{Name: "Closed", SortOrder: systemStageSortOrderBase, IsSystem: true, Color: "#22c55e"},
	{Name: "Dead", SortOrder: systemStageSortOrderBase + 1, IsSystem: true, Color: "#6b7280"},
}

/*
caches:
	PipelineStageList:$businessId -> []PipelineStage (all stages, sort order)
*/

func stageListCacheKey(businessId string) string {
	return "PipelineStageList:" + businessId
}

func invalidateStageCache(businessId string) error {
	return config.RemoveRedisKey(stageListCacheKey(businessId))
}

// SeedDefaultStages creates the default pipeline for a business. Stages that
// already exist by name are left alone, so it can be re-run.
func SeedDefaultStages(ctx context.Context, businessId string) ([]*PipelineStage, error) {
	db := config.GetDB()
	var existing []*PipelineStage
	if err := db.WithContext(ctx).Where("business_id = ?", businessId).Find(&existing).Error; err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(existing))
	for _, s := range existing {
		names[strings.ToLower(s.Name)] = true
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range defaultStages {
			if names[strings.ToLower(def.Name)] {
				continue
			}
			stage := def
			stage.BusinessId = businessId
			if err := tx.Create(&stage).Error; err != nil {
				if IsDuplicateKeyErr(err) {
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := invalidateStageCache(businessId); err != nil {
		return nil, err
	}
	return loadAllStages(ctx, businessId)
}

func loadAllStages(ctx context.Context, businessId string) ([]*PipelineStage, error) {
	var stages []*PipelineStage
	exists, err := config.GetRedisObject(stageListCacheKey(businessId), &stages)
	if err != nil {
		return nil, err
	}
	if exists {
		return stages, nil
	}
	if err := config.GetDB().WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("sort_order").Order("id").
		Find(&stages).Error; err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(stageListCacheKey(businessId), &stages, utils.GetCacheLifespan()); err != nil {
		return nil, err
	}
	return stages, nil
}

// ListPipelineStages returns the reorderable list: custom stages only.
func ListPipelineStages(ctx context.Context) ([]*PipelineStage, error) {
	all, err := ListAllPipelineStages(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*PipelineStage, 0, len(all))
	for _, s := range all {
		if !s.IsSystem {
			results = append(results, s)
		}
	}
	return results, nil
}

func ListAllPipelineStages(ctx context.Context) ([]*PipelineStage, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return loadAllStages(ctx, businessId)
}

func GetPipelineStage(ctx context.Context, id int) (*PipelineStage, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return fetchModel[PipelineStage](ctx, config.GetDB(), businessId, id)
}

// GetPipelineStagesByIds is the batch function behind the stage dataloader.
func GetPipelineStagesByIds(ctx context.Context, businessId string, ids []int) ([]*PipelineStage, error) {
	var results []*PipelineStage
	err := config.GetDB().WithContext(ctx).
		Where("business_id = ? AND id IN ?", businessId, utils.UniqueSlice(ids)).
		Find(&results).Error
	return results, err
}

func CreatePipelineStage(ctx context.Context, input *NewPipelineStage) (*PipelineStage, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("stage name is required")
	}

	lock := config.ObtainLock(ctx, "lock:stages:"+a.BusinessId, 10*time.Second)
	defer config.ReleaseLock(ctx, lock)

	if err := utils.ValidateUnique[PipelineStage](ctx, a.BusinessId, "name", name, 0); err != nil {
		return nil, err
	}

	var stage PipelineStage
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxOrder int
		if err := tx.Model(&PipelineStage{}).Select("COALESCE(MAX(sort_order), 0)").
			Where("business_id = ? AND is_system = ?", a.BusinessId, false).
			Scan(&maxOrder).Error; err != nil {
			return err
		}
		next := maxOrder + 1
		if next >= systemStageSortOrderBase {
			return errors.New("too many pipeline stages")
		}
		stage = PipelineStage{
			BusinessId: a.BusinessId,
			Name:       name,
			SortOrder:  next,
			Color:      strings.TrimSpace(input.Color),
		}
		if err := tx.Create(&stage).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return errors.New("duplicate name")
			}
			return err
		}
		return createActivity(tx, nil, ActionCreate, ReferenceTypeStage, stage.ID, nil, stage,
			fmt.Sprintf("Pipeline stage %s created.", stage.Name))
	})
	if err != nil {
		return nil, err
	}
	if err := invalidateStageCache(a.BusinessId); err != nil {
		return nil, err
	}
	return &stage, nil
}

// UpdatePipelineStage renames or recolours a custom stage.
func UpdatePipelineStage(ctx context.Context, id int, input *NewPipelineStage) (*PipelineStage, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("stage name is required")
	}
	db := config.GetDB()
	stage, err := fetchModel[PipelineStage](ctx, db, a.BusinessId, id)
	if err != nil {
		return nil, err
	}
	if stage.IsSystem && name != stage.Name {
		return nil, ErrSystemStage
	}
	if err := utils.ValidateUnique[PipelineStage](ctx, a.BusinessId, "name", name, id); err != nil {
		return nil, err
	}

	before := *stage
	stage.Name = name
	stage.Color = strings.TrimSpace(input.Color)
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&PipelineStage{}).Where("business_id = ? AND id = ?", a.BusinessId, id).
			Updates(map[string]interface{}{"name": stage.Name, "color": stage.Color}).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return errors.New("duplicate name")
			}
			return err
		}
		return createActivity(tx, nil, ActionUpdate, ReferenceTypeStage, stage.ID, before, stage,
			fmt.Sprintf("Pipeline stage %s updated.", stage.Name))
	})
	if err != nil {
		return nil, err
	}
	if err := invalidateStageCache(a.BusinessId); err != nil {
		return nil, err
	}
	return stage, nil
}

// ReorderPipelineStages assigns sort orders 1..n to the custom stages in the
// given order. ids must name every custom stage exactly once.
func ReorderPipelineStages(ctx context.Context, ids []int) ([]*PipelineStage, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	lock := config.ObtainLock(ctx, "lock:stages:"+a.BusinessId, 10*time.Second)
	defer config.ReleaseLock(ctx, lock)

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var custom []*PipelineStage
		if err := tx.Where("business_id = ? AND is_system = ?", a.BusinessId, false).Find(&custom).Error; err != nil {
			return err
		}
		if len(ids) != len(custom) || len(utils.UniqueSlice(ids)) != len(ids) {
			return ErrInvalidStageOrder
		}
		known := make(map[int]bool, len(custom))
		for _, s := range custom {
			known[s.ID] = true
		}
		for _, id := range ids {
			if !known[id] {
				return ErrInvalidStageOrder
			}
		}
		for i, id := range ids {
			if err := tx.Model(&PipelineStage{}).
				Where("business_id = ? AND id = ? AND is_system = ?", a.BusinessId, id, false).
				Update("sort_order", i+1).Error; err != nil {
				return err
			}
		}
		return createActivity(tx, nil, ActionUpdate, ReferenceTypeStage, 0, nil, ids, "Pipeline stages reordered.")
	})
	if err != nil {
		return nil, err
	}
	if err := invalidateStageCache(a.BusinessId); err != nil {
		return nil, err
	}
	return ListPipelineStages(ctx)
}

func DeletePipelineStage(ctx context.Context, id int) (*PipelineStage, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	stage, err := fetchModel[PipelineStage](ctx, db, a.BusinessId, id)
	if err != nil {
		return nil, err
	}
	if stage.IsSystem {
		return nil, ErrSystemStage
	}
	count, err := utils.ResourceCountWhere[Lead](ctx, a.BusinessId, "stage_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrStageInUse
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("business_id = ? AND stage_id = ?", a.BusinessId, id).Delete(&StageTaskTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ? AND id = ?", a.BusinessId, id).Delete(&PipelineStage{}).Error; err != nil {
			return err
		}
		return createActivity(tx, nil, ActionDelete, ReferenceTypeStage, stage.ID, stage, nil,
			fmt.Sprintf("Pipeline stage %s deleted.", stage.Name))
	})
	if err != nil {
		return nil, err
	}
	if err := invalidateStageCache(a.BusinessId); err != nil {
		return nil, err
	}
	return stage, nil
}

func CreateStageTaskTemplate(ctx context.Context, stageId int, input *NewStageTaskTemplate) (*StageTaskTemplate, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("title is required")
	}
	if input.DueInDays != nil && *input.DueInDays < 0 {
		return nil, errors.New("due in days cannot be negative")
	}
	db := config.GetDB()
	if _, err := fetchModel[PipelineStage](ctx, db, businessId, stageId); err != nil {
		return nil, err
	}
	var maxOrder int
	if err := db.WithContext(ctx).Model(&StageTaskTemplate{}).Select("COALESCE(MAX(sort_order), 0)").
		Where("business_id = ? AND stage_id = ?", businessId, stageId).
		Scan(&maxOrder).Error; err != nil {
		return nil, err
	}
	template := StageTaskTemplate{
		BusinessId:  businessId,
		StageId:     stageId,
		Title:       title,
		Description: input.Description,
		SortOrder:   maxOrder + 1,
		DueInDays:   input.DueInDays,
	}
	if err := db.WithContext(ctx).Create(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func ListStageTaskTemplates(ctx context.Context, stageId int) ([]*StageTaskTemplate, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*StageTaskTemplate
	err = config.GetDB().WithContext(ctx).
		Where("business_id = ? AND stage_id = ?", businessId, stageId).
		Order("sort_order").Order("id").
		Find(&results).Error
	return results, err
}

func DeleteStageTaskTemplate(ctx context.Context, id int) (*StageTaskTemplate, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	template, err := fetchModel[StageTaskTemplate](ctx, db, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, id).Delete(&StageTaskTemplate{}).Error; err != nil {
		return nil, err
	}
	return template, nil
}

// firstCustomStage is where a newly qualified lead lands.
func firstCustomStage(tx *gorm.DB, businessId string) (*PipelineStage, error) {
	var stage PipelineStage
	err := tx.Where("business_id = ? AND is_system = ?", businessId, false).
		Order("sort_order").Order("id").
		Take(&stage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("business has no pipeline stages")
		}
		return nil, err
	}
	return &stage, nil
}

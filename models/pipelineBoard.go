package models

import (
	"context"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const boardColumnSize = 20

type BoardColumn struct {
	Stage      *PipelineStage  `json:"stage"`
	LeadCount  int64           `json:"lead_count"`
	TotalValue decimal.Decimal `json:"total_value"`
	Leads      []*Lead         `json:"leads"`
}

type stageTotal struct {
	StageId    int
	LeadCount  int64
	TotalValue decimal.Decimal
}

// PipelineBoard returns one kanban column per stage, custom stages first, with
// each column's lead count, summed estimated value and most recently moved leads.
func PipelineBoard(ctx context.Context, campaignId *int) ([]*BoardColumn, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	stages, err := loadAllStages(ctx, businessId)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()

	base := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&Lead{}).Where("business_id = ? AND stage_id IS NOT NULL", businessId)
		if campaignId != nil {
			q = q.Where("campaign_id = ?", *campaignId)
		}
		return restrictLeadsForViewer(ctx, q)
	}

	var totals []stageTotal
	if err := base().
		Select("stage_id, count(*) AS lead_count, COALESCE(SUM(estimated_value), 0) AS total_value").
		Group("stage_id").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	byStage := make(map[int]stageTotal, len(totals))
	for _, t := range totals {
		byStage[t.StageId] = t
	}

	columns := make([]*BoardColumn, 0, len(stages))
	for _, stage := range stages {
		t := byStage[stage.ID]
		column := &BoardColumn{
			Stage:      stage,
			LeadCount:  t.LeadCount,
			TotalValue: t.TotalValue,
			Leads:      make([]*Lead, 0),
		}
		if t.LeadCount > 0 {
			if err := base().Where("stage_id = ?", stage.ID).
				Order("stage_changed_at DESC").Order("id DESC").
				Limit(boardColumnSize).
				Find(&column.Leads).Error; err != nil {
				return nil, err
			}
		}
		columns = append(columns, column)
	}
	return columns, nil
}

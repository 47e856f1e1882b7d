package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/shopspring/decimal"
)

// Campaign is a client's lead-generation initiative.
type Campaign struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"size:64;not null;index" json:"business_id"`
	Name         string          `gorm:"size:150;not null" json:"name"`
	ClientUserId *int            `gorm:"index" json:"client_user_id"`
	TeamId       *int            `gorm:"index" json:"team_id"`
	QcUserId     *int            `gorm:"index" json:"qc_user_id"`
	TargetLeads  int             `gorm:"not null;default:0" json:"target_leads"`
	CostPerLead  decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"cost_per_lead"`
	FormTemplate string          `gorm:"type:text" json:"form_template"`
	StartDate    *time.Time      `json:"start_date"`
	EndDate      *time.Time      `json:"end_date"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c Campaign) GetId() int {
	return c.ID
}

type NewCampaign struct {
	Name         string          `json:"name" binding:"required"`
	ClientUserId *int            `json:"client_user_id"`
	TeamId       *int            `json:"team_id"`
	QcUserId     *int            `json:"qc_user_id"`
	TargetLeads  int             `json:"target_leads"`
	CostPerLead  decimal.Decimal `json:"cost_per_lead"`
	FormTemplate string          `json:"form_template"`
	StartDate    *time.Time      `json:"start_date"`
	EndDate      *time.Time      `json:"end_date"`
}

type CampaignProgress struct {
	CampaignId     int             `json:"campaign_id"`
	TargetLeads    int             `json:"target_leads"`
	TotalLeads     int64           `json:"total_leads"`
	QualifiedLeads int64           `json:"qualified_leads"`
	PercentOfGoal  decimal.Decimal `json:"percent_of_goal"`
	BillableAmount decimal.Decimal `json:"billable_amount"`
}

// CreateCampaign is used by seeding and tests; campaign administration screens are separate.
func CreateCampaign(ctx context.Context, input *NewCampaign) (*Campaign, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("campaign name is required")
	}
	if input.TargetLeads < 0 {
		return nil, errors.New("target leads cannot be negative")
	}
	if input.CostPerLead.IsNegative() {
		return nil, errors.New("cost per lead cannot be negative")
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, errors.New("end date is before start date")
	}
	db := config.GetDB()
	if input.ClientUserId != nil {
		if _, err := requireUserWithRole(db.WithContext(ctx), businessId, *input.ClientUserId, UserRoleClient); err != nil {
			return nil, errors.New("client user not found")
		}
	}
	if input.QcUserId != nil {
		if _, err := requireUserWithRole(db.WithContext(ctx), businessId, *input.QcUserId, QualifierRoles...); err != nil {
			return nil, errors.New("qc user not found")
		}
	}
	if input.TeamId != nil {
		if err := utils.ValidateResourceId[Team](ctx, businessId, *input.TeamId); err != nil {
			return nil, errors.New("team not found")
		}
	}

	campaign := Campaign{
		BusinessId:   businessId,
		Name:         name,
		ClientUserId: input.ClientUserId,
		TeamId:       input.TeamId,
		QcUserId:     input.QcUserId,
		TargetLeads:  input.TargetLeads,
		CostPerLead:  input.CostPerLead,
		FormTemplate: input.FormTemplate,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		IsActive:     utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// clients only ever see campaigns they own
func scopeCampaignsForViewer(ctx context.Context) (clientUserId int, restricted bool) {
	role, _ := utils.GetUserRoleFromContext(ctx)
	if UserRole(role) != UserRoleClient {
		return 0, false
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	return userId, true
}

func GetCampaign(ctx context.Context, id int) (*Campaign, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	campaign, err := fetchModel[Campaign](ctx, config.GetDB(), businessId, id)
	if err != nil {
		return nil, err
	}
	if clientId, restricted := scopeCampaignsForViewer(ctx); restricted {
		if campaign.ClientUserId == nil || *campaign.ClientUserId != clientId {
			return nil, utils.ErrorRecordNotFound
		}
	}
	return campaign, nil
}

func ListCampaigns(ctx context.Context, activeOnly bool) ([]*Campaign, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("business_id = ?", businessId)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if clientId, restricted := scopeCampaignsForViewer(ctx); restricted {
		q = q.Where("client_user_id = ?", clientId)
	}
	var results []*Campaign
	if err := q.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetCampaignsByIds is the batch function behind the campaign dataloader.
func GetCampaignsByIds(ctx context.Context, businessId string, ids []int) ([]*Campaign, error) {
	var results []*Campaign
	err := config.GetDB().WithContext(ctx).
		Where("business_id = ? AND id IN ?", businessId, utils.UniqueSlice(ids)).
		Find(&results).Error
	return results, err
}

// GetCampaignProgress compares delivered qualified leads against the campaign target.
func GetCampaignProgress(ctx context.Context, id int) (*CampaignProgress, error) {
	campaign, err := GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)

	var total, qualified int64
	if err := db.Model(&Lead{}).Where("business_id = ? AND campaign_id = ?", campaign.BusinessId, id).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Lead{}).
		Where("business_id = ? AND campaign_id = ? AND qualification_status = ?", campaign.BusinessId, id, QualificationStatusQualified).
		Count(&qualified).Error; err != nil {
		return nil, err
	}

	percent := decimal.Zero
	if campaign.TargetLeads > 0 {
		percent = decimal.NewFromInt(qualified).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(campaign.TargetLeads))).
			Round(2)
	}
	return &CampaignProgress{
		CampaignId:     id,
		TargetLeads:    campaign.TargetLeads,
		TotalLeads:     total,
		QualifiedLeads: qualified,
		PercentOfGoal:  percent,
		BillableAmount: campaign.CostPerLead.Mul(decimal.NewFromInt(qualified)),
	}, nil
}

type IntakeToken struct {
	CampaignId int       `json:"campaign_id"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IssueIntakeToken signs a token that lets a public form post leads into one campaign.
func IssueIntakeToken(ctx context.Context, campaignId int) (*IntakeToken, error) {
	campaign, err := GetCampaign(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if !utils.DereferencePtr(campaign.IsActive) {
		return nil, ErrCampaignInactive
	}
	token, expiresAt, err := utils.GenerateIntakeToken(campaign.ID, campaign.BusinessId)
	if err != nil {
		return nil, err
	}
	return &IntakeToken{CampaignId: campaign.ID, Token: token, ExpiresAt: expiresAt}, nil
}

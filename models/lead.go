package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Lead struct {
	ID                  int                 `gorm:"primary_key" json:"id"`
	BusinessId          string              `gorm:"size:64;not null;index;uniqueIndex:uniq_lead_phone,priority:1" json:"business_id"`
	CampaignId          int                 `gorm:"not null;index;uniqueIndex:uniq_lead_phone,priority:2" json:"campaign_id"`
	FirstName           string              `gorm:"size:100;not null" json:"first_name"`
	LastName            string              `gorm:"size:100" json:"last_name"`
	Phone               string              `gorm:"size:20;not null;uniqueIndex:uniq_lead_phone,priority:3" json:"phone"`
	Email               string              `gorm:"size:255" json:"email"`
	Address             string              `gorm:"size:255" json:"address"`
	City                string              `gorm:"size:100" json:"city"`
	State               string              `gorm:"size:50" json:"state"`
	Zip                 string              `gorm:"size:20" json:"zip"`
	PropertyType        string              `gorm:"size:50" json:"property_type"`
	Bedrooms            *int                `json:"bedrooms"`
	Bathrooms           *decimal.Decimal    `gorm:"type:decimal(4,2)" json:"bathrooms"`
	SquareFeet          *int                `json:"square_feet"`
	YearBuilt           *int                `json:"year_built"`
	EstimatedValue      decimal.Decimal     `gorm:"type:decimal(14,2);default:0" json:"estimated_value"`
	IsOwner             *bool               `json:"is_owner"`
	Motivation          string              `gorm:"type:text" json:"motivation"`
	CustomFields        string              `gorm:"type:text" json:"custom_fields"`
	QualificationStatus QualificationStatus `gorm:"size:20;not null;default:'New';index" json:"qualification_status"`
	QualificationReason string              `gorm:"type:text" json:"qualification_reason"`
	StageId             *int                `gorm:"index" json:"stage_id"`
	StageChangedAt      *time.Time          `json:"stage_changed_at"`
	AssignedUserId      *int                `gorm:"index" json:"assigned_user_id"`
	Source              string              `gorm:"size:50" json:"source"`
	CreatedBy           int                 `json:"created_by"`
	CreatedAt           time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l Lead) GetId() int {
	return l.ID
}

func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// LeadDetails holds the editable contact and property fields.
type LeadDetails struct {
	FirstName      string                 `json:"first_name" binding:"required"`
	LastName       string                 `json:"last_name"`
	Phone          string                 `json:"phone" binding:"required"`
	Email          string                 `json:"email"`
	Address        string                 `json:"address"`
	City           string                 `json:"city"`
	State          string                 `json:"state"`
	Zip            string                 `json:"zip"`
	PropertyType   string                 `json:"property_type"`
	Bedrooms       *int                   `json:"bedrooms"`
	Bathrooms      *decimal.Decimal       `json:"bathrooms"`
	SquareFeet     *int                   `json:"square_feet"`
	YearBuilt      *int                   `json:"year_built"`
	EstimatedValue decimal.Decimal        `json:"estimated_value"`
	IsOwner        *bool                  `json:"is_owner"`
	Motivation     string                 `json:"motivation"`
	CustomFields   map[string]interface{} `json:"custom_fields"`
}

type NewLead struct {
	CampaignId     int    `json:"campaign_id" binding:"required"`
	AssignedUserId *int   `json:"assigned_user_id"`
	Source         string `json:"source"`
	LeadDetails
}

type LeadFilter struct {
	CampaignId     *int                 `form:"campaign_id"`
	Status         *QualificationStatus `form:"status"`
	StageId        *int                 `form:"stage_id"`
	AssignedUserId *int                 `form:"assigned_user_id"`
	Search         string               `form:"q"`
}

// LeadEvent is the outbox payload for lead.* events.
type LeadEvent struct {
	LeadId         int                 `json:"lead_id"`
	CampaignId     int                 `json:"campaign_id"`
	LeadName       string              `json:"lead_name"`
	Status         QualificationStatus `json:"status"`
	AssignedUserId *int                `json:"assigned_user_id,omitempty"`
	FromStageId    *int                `json:"from_stage_id,omitempty"`
	ToStageId      *int                `json:"to_stage_id,omitempty"`
	ToStageName    string              `json:"to_stage_name,omitempty"`
}

func newLeadEvent(lead *Lead) LeadEvent {
	return LeadEvent{
		LeadId:         lead.ID,
		CampaignId:     lead.CampaignId,
		LeadName:       lead.FullName(),
		Status:         lead.QualificationStatus,
		AssignedUserId: lead.AssignedUserId,
	}
}

// normalize trims and validates details in place, returning the E.164 phone
func (input *LeadDetails) normalize() error {
	input.FirstName = strings.TrimSpace(input.FirstName)
	if input.FirstName == "" {
		return errors.New("first name is required")
	}
	input.LastName = strings.TrimSpace(input.LastName)
	phone, err := utils.NormalizePhoneNumber(input.Phone, config.DefaultPhoneRegion())
	if err != nil {
		return err
	}
	input.Phone = phone
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email address")
	}
	if input.EstimatedValue.IsNegative() {
		return errors.New("estimated value cannot be negative")
	}
	if input.Bathrooms != nil && input.Bathrooms.IsNegative() {
		return errors.New("bathrooms cannot be negative")
	}
	for name, v := range map[string]*int{"bedrooms": input.Bedrooms, "square feet": input.SquareFeet} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if input.YearBuilt != nil && (*input.YearBuilt < 1600 || *input.YearBuilt > time.Now().Year()+1) {
		return errors.New("year built is out of range")
	}
	return nil
}

func (input *LeadDetails) customFieldsJSON() (string, error) {
	if len(input.CustomFields) == 0 {
		return "", nil
	}
	b, err := json.Marshal(input.CustomFields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (lead *Lead) applyDetails(input *LeadDetails) error {
	custom, err := input.customFieldsJSON()
	if err != nil {
		return err
	}
	lead.FirstName = input.FirstName
	lead.LastName = input.LastName
	lead.Phone = input.Phone
	lead.Email = input.Email
	lead.Address = strings.TrimSpace(input.Address)
	lead.City = strings.TrimSpace(input.City)
	lead.State = strings.TrimSpace(input.State)
	lead.Zip = strings.TrimSpace(input.Zip)
	lead.PropertyType = strings.TrimSpace(input.PropertyType)
	lead.Bedrooms = input.Bedrooms
	lead.Bathrooms = input.Bathrooms
	lead.SquareFeet = input.SquareFeet
	lead.YearBuilt = input.YearBuilt
	lead.EstimatedValue = input.EstimatedValue
	lead.IsOwner = input.IsOwner
	lead.Motivation = input.Motivation
	lead.CustomFields = custom
	return nil
}

func phoneTakenInCampaign(tx *gorm.DB, businessId string, campaignId int, phone string, exceptId int) (bool, error) {
	var count int64
	q := tx.Model(&Lead{}).Where("business_id = ? AND campaign_id = ? AND phone = ?", businessId, campaignId, phone)
	if exceptId > 0 {
		q = q.Where("id <> ?", exceptId)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func CreateLead(ctx context.Context, input *NewLead) (*Lead, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.LeadDetails.normalize(); err != nil {
		return nil, err
	}
	db := config.GetDB()

	campaign, err := fetchModel[Campaign](ctx, db, a.BusinessId, input.CampaignId)
	if err != nil {
		return nil, fmt.Errorf("campaign %d: %w", input.CampaignId, err)
	}
	if !utils.DereferencePtr(campaign.IsActive) {
		return nil, ErrCampaignInactive
	}
	if input.AssignedUserId != nil {
		if _, err := requireUserWithRole(db.WithContext(ctx), a.BusinessId, *input.AssignedUserId, LeadWorkerRoles...); err != nil {
			return nil, ErrInvalidAssignee
		}
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "manual"
	}
	lead := Lead{
		BusinessId:          a.BusinessId,
		CampaignId:          campaign.ID,
		QualificationStatus: QualificationStatusNew,
		AssignedUserId:      input.AssignedUserId,
		Source:              source,
		CreatedBy:           a.UserId,
	}
	if err := lead.applyDetails(&input.LeadDetails); err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertLead(tx, &lead, fmt.Sprintf("Lead %s created for campaign %s.", lead.FullName(), campaign.Name))
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// insertLead writes the lead with its activity entry and lead.created event.
func insertLead(tx *gorm.DB, lead *Lead, description string) error {
	taken, err := phoneTakenInCampaign(tx, lead.BusinessId, lead.CampaignId, lead.Phone, 0)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateLead
	}
	if err := tx.Create(lead).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return ErrDuplicateLead
		}
		return err
	}
	if err := createActivity(tx, &lead.ID, ActionCreate, ReferenceTypeLead, lead.ID, nil, lead, description); err != nil {
		return err
	}
	return writeOutbox(tx, lead.BusinessId, EventLeadCreated, ReferenceTypeLead, lead.ID, newLeadEvent(lead))
}

// restrictLeadsForViewer narrows a lead query to the client's own campaigns.
func restrictLeadsForViewer(ctx context.Context, q *gorm.DB) *gorm.DB {
	clientId, restricted := scopeCampaignsForViewer(ctx)
	if !restricted {
		return q
	}
	sub := config.GetDB().WithContext(ctx).Model(&Campaign{}).Select("id").Where("client_user_id = ?", clientId)
	return q.Where("campaign_id IN (?)", sub)
}

func GetLead(ctx context.Context, id int) (*Lead, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var lead Lead
	q := config.GetDB().WithContext(ctx).Where("business_id = ? AND id = ?", businessId, id)
	if err := restrictLeadsForViewer(ctx, q).Take(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &lead, nil
}

func UpdateLead(ctx context.Context, id int, input *LeadDetails) (*Lead, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.normalize(); err != nil {
		return nil, err
	}

	var lead *Lead
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = lockLead(ctx, tx, a.BusinessId, id)
		if err != nil {
			return err
		}
		before := *lead
		if lead.Phone != input.Phone {
			taken, err := phoneTakenInCampaign(tx, a.BusinessId, lead.CampaignId, input.Phone, lead.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateLead
			}
		}
		if err := lead.applyDetails(input); err != nil {
			return err
		}
		if err := tx.Save(lead).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return ErrDuplicateLead
			}
			return err
		}
		return createActivity(tx, &lead.ID, ActionUpdate, ReferenceTypeLead, lead.ID, before, lead,
			fmt.Sprintf("Lead %s updated.", lead.FullName()))
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// AssignLead sets or clears the working user of a lead.
func AssignLead(ctx context.Context, id int, userId *int) (*Lead, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var lead *Lead
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = lockLead(ctx, tx, a.BusinessId, id)
		if err != nil {
			return err
		}
		description := fmt.Sprintf("Lead %s unassigned.", lead.FullName())
		if userId != nil {
			user, err := requireUserWithRole(tx, a.BusinessId, *userId, LeadWorkerRoles...)
			if err != nil {
				return ErrInvalidAssignee
			}
			description = fmt.Sprintf("Lead %s assigned to %s.", lead.FullName(), user.Name)
		}
		if utils.DereferencePtr(lead.AssignedUserId) == utils.DereferencePtr(userId) {
			return nil
		}
		before := map[string]interface{}{"assigned_user_id": lead.AssignedUserId}
		if err := tx.Model(&Lead{}).Where("business_id = ? AND id = ?", a.BusinessId, id).
			Update("assigned_user_id", userId).Error; err != nil {
			return err
		}
		lead.AssignedUserId = userId
		after := map[string]interface{}{"assigned_user_id": userId}
		if err := createActivity(tx, &lead.ID, ActionAssign, ReferenceTypeLead, lead.ID, before, after, description); err != nil {
			return err
		}
		return writeOutbox(tx, a.BusinessId, EventLeadAssigned, ReferenceTypeLead, lead.ID, newLeadEvent(lead))
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func PaginateLeads(ctx context.Context, limit int, after *string, filter *LeadFilter) (*Connection[Lead], error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Lead{}).Where("business_id = ?", businessId)
	dbCtx = restrictLeadsForViewer(ctx, dbCtx)
	if filter != nil {
		if filter.CampaignId != nil {
			dbCtx = dbCtx.Where("campaign_id = ?", *filter.CampaignId)
		}
		if filter.Status != nil {
			dbCtx = dbCtx.Where("qualification_status = ?", *filter.Status)
		}
		if filter.StageId != nil {
			dbCtx = dbCtx.Where("stage_id = ?", *filter.StageId)
		}
		if filter.AssignedUserId != nil {
			dbCtx = dbCtx.Where("assigned_user_id = ?", *filter.AssignedUserId)
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			like := "%" + search + "%"
			dbCtx = dbCtx.Where("first_name LIKE ? OR last_name LIKE ? OR phone LIKE ? OR email LIKE ?", like, like, like, like)
		}
	}
	return FetchPageById[Lead](dbCtx, limit, after)
}

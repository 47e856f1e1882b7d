package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
)

type Team struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;not null;index" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	LeaderId   *int      `gorm:"index" json:"leader_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Position struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;not null;index" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CreateTeam adds a team; the name is unique per business.
func CreateTeam(ctx context.Context, name string, leaderId *int) (*Team, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("team name is required")
	}
	if err := utils.ValidateUnique[Team](ctx, businessId, "name", name, 0); err != nil {
		return nil, err
	}
	team := Team{BusinessId: businessId, Name: name, LeaderId: leaderId}
	if err := config.GetDB().WithContext(ctx).Create(&team).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Team](businessId); err != nil {
		return nil, err
	}
	return &team, nil
}

func ListTeams(ctx context.Context) ([]*Team, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := utils.RetrieveRedisList[Team](businessId)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	var results []*Team
	if err := config.GetDB().WithContext(ctx).Where("business_id = ?", businessId).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList(results, businessId); err != nil {
		return nil, err
	}
	return results, nil
}

func GetTeam(ctx context.Context, id int) (*Team, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := utils.RetrieveRedis[Team](id)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.BusinessId == businessId {
		return cached, nil
	}
	team, err := fetchModel[Team](ctx, config.GetDB(), businessId, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis(team, team.ID); err != nil {
		return nil, err
	}
	return team, nil
}

type TeamInput struct {
	Name     string `json:"name" binding:"required,max=100"`
	LeaderId *int   `json:"leader_id"`
}

// UpdateTeam renames a team or changes its leader. The leader must be an active user of the business.
func UpdateTeam(ctx context.Context, id int, input *TeamInput) (*Team, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	team, err := fetchModel[Team](ctx, config.GetDB(), businessId, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("team name is required")
	}
	if err := utils.ValidateUnique[Team](ctx, businessId, "name", name, id); err != nil {
		return nil, err
	}
	if input.LeaderId != nil {
		if err := utils.ValidateResourceId[User](ctx, businessId, *input.LeaderId); err != nil {
			return nil, ErrInvalidAssignee
		}
	}
	err = config.GetDB().WithContext(ctx).Model(team).Updates(map[string]interface{}{
		"name":      name,
		"leader_id": input.LeaderId,
	}).Error
	if err != nil {
		return nil, err
	}
	team.Name = name
	team.LeaderId = input.LeaderId
	if err := utils.RemoveRedisItem[Team](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Team](businessId); err != nil {
		return nil, err
	}
	return team, nil
}

func CreatePosition(ctx context.Context, name string) (*Position, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("position name is required")
	}
	if err := utils.ValidateUnique[Position](ctx, businessId, "name", name, 0); err != nil {
		return nil, err
	}
	position := Position{BusinessId: businessId, Name: name}
	if err := config.GetDB().WithContext(ctx).Create(&position).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

func ListPositions(ctx context.Context) ([]*Position, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*Position
	err = config.GetDB().WithContext(ctx).Where("business_id = ?", businessId).Order("name").Find(&results).Error
	return results, err
}

// ListTeamMembers returns the active users on a team.
func ListTeamMembers(ctx context.Context, teamId int) ([]*User, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Team](ctx, businessId, teamId); err != nil {
		return nil, err
	}
	var results []*User
	err = config.GetDB().WithContext(ctx).
		Where("business_id = ? AND team_id = ? AND is_active = ?", businessId, teamId, true).
		Order("name").Find(&results).Error
	return results, err
}

package models

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrStageGateBlocked               = errors.New("all tasks in the current stage must be completed before moving forward")
	ErrLeadNotInPipeline              = errors.New("lead has not been qualified into the pipeline")
	ErrSystemStage                    = errors.New("system stages cannot be changed")
	ErrStageInUse                     = errors.New("stage still has leads")
	ErrInvalidStageOrder              = errors.New("stage order must list every custom stage exactly once")
	ErrInvalidQualificationTransition = errors.New("invalid qualification status change")
	ErrInvalidTicketTransition        = errors.New("invalid ticket status change")
	ErrDuplicateLead                  = errors.New("a lead with this phone number already exists in the campaign")
	ErrCampaignInactive               = errors.New("campaign is not active")
	ErrResolutionRequired             = errors.New("resolution is required")
	ErrInvalidAssignee                = errors.New("assignee is not allowed for this record")
)

// IsDuplicateKeyErr matches unique index violations from MySQL (1062) or any
// dialector that translates them to gorm.ErrDuplicatedKey.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

package models

import (
	"gorm.io/gorm"
)

// AllModels lists every table the service owns, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&Business{}, &Team{}, &Position{}, &User{},
		&Campaign{},
		&PipelineStage{}, &StageTaskTemplate{},
		&Lead{}, &Task{},
		&ActivityLog{}, &Comment{},
		&ITTicket{},
		&Notification{}, &OutboxMessage{}, &IdempotencyKey{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

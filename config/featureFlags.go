package config

import (
	"os"
	"strings"
)

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}

// AutoStageTasks materializes a stage's task templates for a lead when it enters that stage.
//
// Set via env:
// - AUTO_STAGE_TASKS=false to disable (default enabled)
func AutoStageTasks() bool {
	return envBool("AUTO_STAGE_TASKS", true)
}

// PublishLeadEvents writes outbox rows for lead, task and ticket changes.
//
// Set via env:
// - PUBLISH_LEAD_EVENTS=false to disable (default enabled)
func PublishLeadEvents() bool {
	return envBool("PUBLISH_LEAD_EVENTS", true)
}

// DefaultPhoneRegion is the region used to parse lead phone numbers without a country code.
func DefaultPhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_PHONE_REGION")))
	if v == "" {
		return "US"
	}
	return v
}

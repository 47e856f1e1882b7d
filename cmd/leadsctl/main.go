// leadsctl runs maintenance jobs against the leads database.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/leadsctl migrate
//	go run ./cmd/leadsctl create-business --name "Acme Homes" --timezone America/Chicago
//	go run ./cmd/leadsctl seed-admin --business <uuid> --username admin --password ...
//	go run ./cmd/leadsctl issue-intake-token --business <uuid> --campaign 12
//
// DB_DRIVER=sqlite with DB_SQLITE_PATH works for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const cliUserName = "leadsctl"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadsctl",
		Short:         "Maintenance commands for the leads backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newCreateBusinessCmd(),
		newSeedPipelineCmd(),
		newSeedAdminCmd(),
		newIssueIntakeTokenCmd(),
		newReplayOutboxCmd(),
		newSetupPubSubCmd(),
	)
	return root
}

// connectDB opens the configured database unless a test already set one.
func connectDB() (*gorm.DB, error) {
	if db := config.GetDB(); db != nil {
		return db, nil
	}
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database not initialized; set DB_* env vars")
	}
	return db, nil
}

// businessCtx acts as the CLI inside one business.
func businessCtx(cmd *cobra.Command, businessId string) (context.Context, error) {
	if businessId == "" {
		return nil, errors.New("--business is required")
	}
	return utils.WithActor(cmd.Context(), businessId, 0, cliUserName), nil
}

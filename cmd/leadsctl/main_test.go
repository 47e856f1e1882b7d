package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func useMemoryDB(t *testing.T) {
	t.Helper()
	db, err := config.OpenSQLite(":memory:")
	require.NoError(t, err)
	config.SetDB(db)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
}

func TestMigrateAndSeed(t *testing.T) {
	useMemoryDB(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "migrations applied")

	out, err = run(t, "create-business", "--name", "Acme Homes", "--timezone", "UTC")
	require.NoError(t, err)
	require.Contains(t, out, "Acme Homes")

	var business models.Business
	require.NoError(t, config.GetDB().Take(&business).Error)
	businessId := business.ID.String()

	// re-seeding keeps the existing pipeline
	_, err = run(t, "seed-pipeline", "--business", businessId)
	require.NoError(t, err)
	var count int64
	require.NoError(t, config.GetDB().Model(&models.PipelineStage{}).Where("business_id = ?", businessId).Count(&count).Error)
	require.EqualValues(t, 7, count)

	out, err = run(t, "seed-admin", "--business", businessId, "--username", "boss", "--password", "changeme123")
	require.NoError(t, err)
	require.Contains(t, out, `created admin user "boss"`)
	out, err = run(t, "seed-admin", "--business", businessId, "--username", "boss", "--password", "another-pass")
	require.NoError(t, err)
	require.Contains(t, out, `updated admin user "boss"`)

	var admin models.User
	require.NoError(t, config.GetDB().Where("username = ?", "boss").Take(&admin).Error)
	require.Equal(t, models.UserRoleAdmin, admin.Role)
	require.NoError(t, utils.ComparePassword(admin.Password, "another-pass"))

	_, err = run(t, "seed-admin", "--business", businessId, "--password", "short")
	require.Error(t, err)
}

func TestIssueIntakeToken(t *testing.T) {
	useMemoryDB(t)
	require.NoError(t, models.MigrateTable(config.GetDB()))
	business, err := models.CreateBusiness(context.Background(), &models.NewBusiness{Name: "Acme Homes", Timezone: "UTC"})
	require.NoError(t, err)
	ctx := utils.WithActor(context.Background(), business.ID.String(), 0, cliUserName)
	campaign, err := models.CreateCampaign(ctx, &models.NewCampaign{Name: "Spring Sellers", TargetLeads: 5})
	require.NoError(t, err)

	_, err = run(t, "issue-intake-token", "--campaign", "1")
	require.ErrorContains(t, err, "--business is required")

	out, err := run(t, "issue-intake-token", "--business", business.ID.String(), "--campaign", strconv.Itoa(campaign.ID))
	require.NoError(t, err)
	token := strings.SplitN(out, "\n", 2)[0]
	claims, err := utils.ValidateIntakeToken(token)
	require.NoError(t, err)
	require.Equal(t, campaign.ID, claims.CampaignId)
	require.Equal(t, business.ID.String(), claims.BusinessId)
}

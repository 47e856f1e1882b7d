package models_test

import (
	"context"
	"os"
	"testing"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/stretchr/testify/require"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

// Runs the pipeline rules against a real MySQL. Requires docker.
//
//	INTEGRATION_TESTS=1 go test ./models -run MySQL
func TestMySQLStageGateAndDedupe(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run MySQL integration tests")
	}
	ctx := context.Background()
	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("leads"),
		tcmysql.WithUsername("leads"),
		tcmysql.WithPassword("leads"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "loc=UTC", "multiStatements=true")
	require.NoError(t, err)
	db, err := config.OpenMySQL(dsn)
	require.NoError(t, err)
	require.NoError(t, models.MigrateTable(db))
	config.SetDB(db)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	business, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "Acme Homes", Timezone: "UTC"})
	require.NoError(t, err)
	admin, err := models.CreateUser(ctx, &models.NewUser{
		BusinessId: business.ID.String(),
		Username:   "admin",
		Name:       "admin",
		Password:   "password123",
		Role:       models.UserRoleAdmin,
	})
	require.NoError(t, err)
	actx := asUser(admin)
	campaign, err := models.CreateCampaign(actx, &models.NewCampaign{Name: "Spring Sellers", TargetLeads: 5})
	require.NoError(t, err)

	input := &models.NewLead{
		CampaignId:  campaign.ID,
		LeadDetails: models.LeadDetails{FirstName: "Dana", LastName: "Smith", Phone: testPhone(1)},
	}
	lead, err := models.CreateLead(actx, input)
	require.NoError(t, err)
	_, err = models.CreateLead(actx, input)
	require.ErrorIs(t, err, models.ErrDuplicateLead)

	_, err = models.SubmitForReview(actx, lead.ID)
	require.NoError(t, err)
	lead, err = models.QualifyLead(actx, lead.ID, &models.QualifyInput{Decision: models.QualificationStatusQualified})
	require.NoError(t, err)
	require.NotNil(t, lead.StageId)

	task, err := models.CreateTask(actx, lead.ID, &models.NewTask{Title: "Call"})
	require.NoError(t, err)

	stages, err := models.ListPipelineStages(actx)
	require.NoError(t, err)
	_, err = models.MoveLeadStage(actx, lead.ID, stages[1].ID)
	require.ErrorIs(t, err, models.ErrStageGateBlocked)

	all, err := models.ListAllPipelineStages(actx)
	require.NoError(t, err)
	dead := all[len(all)-1]
	require.True(t, dead.IsSystem)
	_, err = models.MoveLeadStage(actx, lead.ID, dead.ID)
	require.ErrorIs(t, err, models.ErrStageGateBlocked)

	_, err = models.CompleteTask(actx, task.ID)
	require.NoError(t, err)
	res, err := models.MoveLeadStage(actx, lead.ID, dead.ID)
	require.NoError(t, err)
	require.Equal(t, dead.ID, *res.Lead.StageId)
}

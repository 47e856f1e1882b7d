package models_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	business *models.Business
	admin    *models.User
	agent    *models.User
	qc       *models.User
	it       *models.User
	client   *models.User
	campaign *models.Campaign
	stages   map[string]*models.PipelineStage
}

func asUser(u *models.User) context.Context {
	ctx := utils.WithActor(context.Background(), u.BusinessId, u.ID, u.Name)
	return utils.SetUserRoleInContext(ctx, string(u.Role))
}

func testPhone(n int) string {
	return fmt.Sprintf("(650) 253-%04d", n)
}

// newFixture opens a fresh in-memory database with one seeded business.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := config.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.MigrateTable(db))
	config.SetDB(db)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{stages: map[string]*models.PipelineStage{}}
	f.business, err = models.CreateBusiness(context.Background(), &models.NewBusiness{Name: "Acme Homes", Timezone: "America/Chicago"})
	require.NoError(t, err)
	businessId := f.business.ID.String()

	newUser := func(username string, role models.UserRole) *models.User {
		u, err := models.CreateUser(context.Background(), &models.NewUser{
			BusinessId: businessId,
			Username:   username,
			Name:       username,
			Password:   "password123",
			Role:       role,
		})
		require.NoError(t, err)
		return u
	}
	f.admin = newUser("admin", models.UserRoleAdmin)
	f.agent = newUser("agent", models.UserRoleAgent)
	f.qc = newUser("qc", models.UserRoleQC)
	f.it = newUser("it", models.UserRoleIT)
	f.client = newUser("client", models.UserRoleClient)

	f.campaign, err = models.CreateCampaign(asUser(f.admin), &models.NewCampaign{
		Name:         "Spring Sellers",
		ClientUserId: &f.client.ID,
		QcUserId:     &f.qc.ID,
		TargetLeads:  10,
		CostPerLead:  decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	stages, err := models.ListAllPipelineStages(asUser(f.admin))
	require.NoError(t, err)
	for _, s := range stages {
		f.stages[s.Name] = s
	}
	return f
}

func (f *fixture) newLead(t *testing.T, n int) *models.Lead {
	t.Helper()
	lead, err := models.CreateLead(asUser(f.agent), &models.NewLead{
		CampaignId: f.campaign.ID,
		LeadDetails: models.LeadDetails{
			FirstName:      "Lead",
			LastName:       fmt.Sprint(n),
			Phone:          testPhone(n),
			EstimatedValue: decimal.NewFromInt(300000),
		},
	})
	require.NoError(t, err)
	return lead
}

// qualifiedLead returns a lead that has entered the pipeline at its first stage.
func (f *fixture) qualifiedLead(t *testing.T, n int) *models.Lead {
	t.Helper()
	lead := f.newLead(t, n)
	_, err := models.SubmitForReview(asUser(f.agent), lead.ID)
	require.NoError(t, err)
	lead, err = models.QualifyLead(asUser(f.qc), lead.ID, &models.QualifyInput{Decision: models.QualificationStatusQualified})
	require.NoError(t, err)
	return lead
}

func (f *fixture) activityCount(t *testing.T, leadId int) int {
	t.Helper()
	entries, err := models.ListLeadActivity(asUser(f.admin), leadId)
	require.NoError(t, err)
	return len(entries)
}

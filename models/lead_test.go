package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCreateLeadNormalizesAndRecords(t *testing.T) {
	f := newFixture(t)
	lead := f.newLead(t, 7)

	require.Equal(t, "+16502530007", lead.Phone)
	require.Equal(t, models.QualificationStatusNew, lead.QualificationStatus)
	require.Nil(t, lead.StageId)
	require.Equal(t, "manual", lead.Source)
	require.Equal(t, f.agent.ID, lead.CreatedBy)

	entries, err := models.ListLeadActivity(asUser(f.admin), lead.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, models.ActionCreate, entries[0].ActionType)

	events, err := models.ListOutboxMessages(asUser(f.admin), models.ReferenceTypeLead, lead.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, models.EventLeadCreated, events[0].EventType)
}

func TestCreateLeadRejectsDuplicatePhoneInCampaign(t *testing.T) {
	f := newFixture(t)
	f.newLead(t, 1)
	ctx := asUser(f.agent)

	_, err := models.CreateLead(ctx, &models.NewLead{
		CampaignId:  f.campaign.ID,
		LeadDetails: models.LeadDetails{FirstName: "Same", Phone: "+1 650-253-0001"},
	})
	require.ErrorIs(t, err, models.ErrDuplicateLead)

	other, err := models.CreateCampaign(asUser(f.admin), &models.NewCampaign{Name: "Fall Sellers"})
	require.NoError(t, err)
	_, err = models.CreateLead(ctx, &models.NewLead{
		CampaignId:  other.ID,
		LeadDetails: models.LeadDetails{FirstName: "Same", Phone: "650.253.0001"},
	})
	require.NoError(t, err)
}

func TestCreateLeadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.agent)

	tests := []struct {
		name  string
		input models.NewLead
	}{
		{"bad phone", models.NewLead{CampaignId: f.campaign.ID, LeadDetails: models.LeadDetails{FirstName: "A", Phone: "12"}}},
		{"bad email", models.NewLead{CampaignId: f.campaign.ID, LeadDetails: models.LeadDetails{FirstName: "A", Phone: testPhone(1), Email: "nope"}}},
		{"missing name", models.NewLead{CampaignId: f.campaign.ID, LeadDetails: models.LeadDetails{Phone: testPhone(1)}}},
		{"negative value", models.NewLead{CampaignId: f.campaign.ID, LeadDetails: models.LeadDetails{FirstName: "A", Phone: testPhone(1), EstimatedValue: decimal.NewFromInt(-1)}}},
		{"unknown campaign", models.NewLead{CampaignId: 9999, LeadDetails: models.LeadDetails{FirstName: "A", Phone: testPhone(1)}}},
		{"client cannot be assigned", models.NewLead{CampaignId: f.campaign.ID, AssignedUserId: &f.client.ID, LeadDetails: models.LeadDetails{FirstName: "A", Phone: testPhone(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			_, err := models.CreateLead(ctx, &input)
			require.Error(t, err)
		})
	}
}

func TestUpdateLeadRecordsBeforeAndAfter(t *testing.T) {
	f := newFixture(t)
	lead := f.newLead(t, 1)
	ctx := asUser(f.agent)

	beds := 3
	updated, err := models.UpdateLead(ctx, lead.ID, &models.LeadDetails{
		FirstName:      "Maria",
		LastName:       "Lopez",
		Phone:          testPhone(1),
		Bedrooms:       &beds,
		EstimatedValue: decimal.RequireFromString("412500.50"),
		CustomFields:   map[string]interface{}{"roof_age": 12},
	})
	require.NoError(t, err)
	require.Equal(t, "Maria Lopez", updated.FullName())
	require.JSONEq(t, `{"roof_age":12}`, updated.CustomFields)

	entries, err := models.ListLeadActivity(ctx, lead.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	require.Equal(t, models.ActionUpdate, last.ActionType)
	require.Contains(t, last.Before, `"first_name":"Lead"`)
	require.Contains(t, last.After, `"first_name":"Maria"`)
}

func TestAssignLead(t *testing.T) {
	f := newFixture(t)
	lead := f.newLead(t, 1)
	ctx := asUser(f.admin)

	assigned, err := models.AssignLead(ctx, lead.ID, &f.agent.ID)
	require.NoError(t, err)
	require.Equal(t, f.agent.ID, *assigned.AssignedUserId)

	_, err = models.AssignLead(ctx, lead.ID, &f.it.ID)
	require.ErrorIs(t, err, models.ErrInvalidAssignee)

	events, err := models.ListOutboxMessages(ctx, models.ReferenceTypeLead, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.EventLeadAssigned, events[0].EventType)
}

func TestPaginateLeads(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 3; i++ {
		f.newLead(t, i)
	}
	ctx := asUser(f.admin)

	page, err := models.PaginateLeads(ctx, 2, nil, nil)
	require.NoError(t, err)
	require.Len(t, page.Edges, 2)
	require.True(t, *page.PageInfo.HasNextPage)
	require.Equal(t, "3", page.Edges[0].Node.LastName)

	next, err := models.PaginateLeads(ctx, 2, &page.PageInfo.EndCursor, nil)
	require.NoError(t, err)
	require.Len(t, next.Edges, 1)
	require.False(t, *next.PageInfo.HasNextPage)
	require.Equal(t, "1", next.Edges[0].Node.LastName)

	search, err := models.PaginateLeads(ctx, 10, nil, &models.LeadFilter{Search: "2530002"})
	require.NoError(t, err)
	require.Len(t, search.Edges, 1)

	bad := "not base64!"
	_, err = models.PaginateLeads(ctx, 2, &bad, nil)
	require.Error(t, err)
}

func TestClientsOnlySeeTheirCampaigns(t *testing.T) {
	f := newFixture(t)
	own := f.newLead(t, 1)
	other, err := models.CreateCampaign(asUser(f.admin), &models.NewCampaign{Name: "Someone Else"})
	require.NoError(t, err)
	foreign, err := models.CreateLead(asUser(f.agent), &models.NewLead{
		CampaignId:  other.ID,
		LeadDetails: models.LeadDetails{FirstName: "Other", Phone: testPhone(2)},
	})
	require.NoError(t, err)

	ctx := asUser(f.client)
	_, err = models.GetLead(ctx, own.ID)
	require.NoError(t, err)
	_, err = models.GetLead(ctx, foreign.ID)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)

	page, err := models.PaginateLeads(ctx, 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, page.Edges, 1)

	campaigns, err := models.ListCampaigns(ctx, false)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	require.Equal(t, f.campaign.ID, campaigns[0].ID)
}

func TestActivityFeedIsScopedForClients(t *testing.T) {
	f := newFixture(t)
	own := f.newLead(t, 1)

	otherClient, err := models.CreateUser(context.Background(), &models.NewUser{
		BusinessId: f.business.ID.String(),
		Username:   "client2",
		Name:       "client2",
		Password:   "password123",
		Role:       models.UserRoleClient,
	})
	require.NoError(t, err)
	other, err := models.CreateCampaign(asUser(f.admin), &models.NewCampaign{Name: "Other Client", ClientUserId: &otherClient.ID})
	require.NoError(t, err)
	secret, err := models.CreateLead(asUser(f.agent), &models.NewLead{
		CampaignId:  other.ID,
		LeadDetails: models.LeadDetails{FirstName: "Secret", LastName: "Homeowner", Phone: testPhone(2)},
	})
	require.NoError(t, err)
	_, err = models.CreateTicket(asUser(f.agent), &models.NewITTicket{Subject: "Printer jam", Category: models.TicketCategoryHardware})
	require.NoError(t, err)

	page, err := models.PaginateActivity(asUser(f.client), 50, nil, &models.ActivityFilter{LeadId: &secret.ID})
	require.NoError(t, err)
	require.Empty(t, page.Edges)

	page, err = models.PaginateActivity(asUser(f.client), 50, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, page.Edges)
	for _, e := range page.Edges {
		require.NotNil(t, e.Node.LeadId)
		require.Equal(t, own.ID, *e.Node.LeadId)
	}

	page, err = models.PaginateActivity(asUser(otherClient), 50, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, page.Edges)
	for _, e := range page.Edges {
		require.Equal(t, secret.ID, *e.Node.LeadId)
	}

	// staff still see the whole feed, ticket rows included
	page, err = models.PaginateActivity(asUser(f.admin), 50, nil, nil)
	require.NoError(t, err)
	withoutLead := 0
	for _, e := range page.Edges {
		if e.Node.LeadId == nil {
			withoutLead++
		}
	}
	require.NotZero(t, withoutLead)
}

func TestCampaignProgress(t *testing.T) {
	f := newFixture(t)
	f.qualifiedLead(t, 1)
	f.newLead(t, 2)

	progress, err := models.GetCampaignProgress(asUser(f.admin), f.campaign.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, progress.TotalLeads)
	require.EqualValues(t, 1, progress.QualifiedLeads)
	require.Equal(t, "10", progress.PercentOfGoal.String())
	require.Equal(t, "50", progress.BillableAmount.String())
}

func TestQualificationMachine(t *testing.T) {
	f := newFixture(t)
	lead := f.newLead(t, 1)
	qc := asUser(f.qc)

	_, err := models.QualifyLead(qc, lead.ID, &models.QualifyInput{Decision: models.QualificationStatusQualified})
	require.ErrorIs(t, err, models.ErrInvalidQualificationTransition)

	_, err = models.QualifyLead(qc, lead.ID, &models.QualifyInput{Decision: models.QualificationStatusDisqualified})
	require.ErrorIs(t, err, models.ErrInvalidQualificationTransition)

	lead, err = models.QualifyLead(qc, lead.ID, &models.QualifyInput{Decision: models.QualificationStatusDisqualified, Reason: "not the owner"})
	require.NoError(t, err)
	require.Equal(t, "not the owner", lead.QualificationReason)
	require.Nil(t, lead.StageId)

	lead, err = models.SubmitForReview(qc, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.QualificationStatusUnderReview, lead.QualificationStatus)

	lead, err = models.QualifyLead(qc, lead.ID, &models.QualifyInput{Decision: models.QualificationStatusQualified})
	require.NoError(t, err)
	require.Equal(t, f.stages["Attempting Contact"].ID, *lead.StageId)

	_, err = models.SubmitForReview(qc, lead.ID)
	require.ErrorIs(t, err, models.ErrInvalidQualificationTransition)
}

func TestQualificationStatusTransitions(t *testing.T) {
	require.True(t, models.QualificationStatusNew.CanTransitionTo(models.QualificationStatusCallback))
	require.True(t, models.QualificationStatusCallback.CanTransitionTo(models.QualificationStatusUnderReview))
	require.False(t, models.QualificationStatusCallback.CanTransitionTo(models.QualificationStatusQualified))
	require.False(t, models.QualificationStatusQualified.CanTransitionTo(models.QualificationStatusUnderReview))
}

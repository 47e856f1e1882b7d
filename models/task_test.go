package models_test

import (
	"testing"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)
	ctx := asUser(f.agent)

	due := time.Now().Add(48 * time.Hour).UTC()
	task, err := models.CreateTask(ctx, lead.ID, &models.NewTask{Title: "Pull comps", AssigneeId: &f.agent.ID, DueDate: &due})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, task.Status)

	updated, err := models.UpdateTask(ctx, task.ID, &models.NewTask{Title: "Pull 3 comps", AssigneeId: &f.agent.ID})
	require.NoError(t, err)
	require.Equal(t, "Pull 3 comps", updated.Title)
	require.Nil(t, updated.DueDate)

	done, err := models.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusCompleted, done.Status)
	require.Equal(t, f.agent.ID, *done.CompletedBy)

	// completing twice changes nothing
	_, err = models.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	events, err := models.ListOutboxMessages(ctx, models.ReferenceTypeTask, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, models.EventTaskCompleted, events[0].EventType)

	reopened, err := models.ReopenTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, reopened.Status)
	require.Nil(t, reopened.CompletedAt)

	mine, err := models.ListMyTasks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = models.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	_, err = models.GetTask(ctx, task.ID)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)

	entries, err := models.ListLeadActivity(ctx, lead.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ReferenceType == models.ReferenceTypeTask {
			actions = append(actions, e.ActionType)
		}
	}
	require.Equal(t, []string{models.ActionCreate, models.ActionUpdate, models.ActionComplete, models.ActionReopen, models.ActionDelete}, actions)
}

func TestCreateTaskNeedsPipeline(t *testing.T) {
	f := newFixture(t)
	lead := f.newLead(t, 1)

	_, err := models.CreateTask(asUser(f.agent), lead.ID, &models.NewTask{Title: "Call"})
	require.ErrorIs(t, err, models.ErrLeadNotInPipeline)
}

func TestListMyTasksFiltersStatus(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)
	ctx := asUser(f.agent)

	a, err := models.CreateTask(ctx, lead.ID, &models.NewTask{Title: "A", AssigneeId: &f.agent.ID})
	require.NoError(t, err)
	_, err = models.CreateTask(ctx, lead.ID, &models.NewTask{Title: "B", AssigneeId: &f.agent.ID})
	require.NoError(t, err)
	_, err = models.CreateTask(ctx, lead.ID, &models.NewTask{Title: "C", AssigneeId: &f.qc.ID})
	require.NoError(t, err)
	_, err = models.CompleteTask(ctx, a.ID)
	require.NoError(t, err)

	pending := models.TaskStatusPending
	mine, err := models.ListMyTasks(ctx, &pending)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "B", mine[0].Title)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	lead := f.newLead(t, 1)
	agent := asUser(f.agent)

	c, err := models.CreateComment(agent, &models.NewComment{Description: "Prefers text", ReferenceType: models.ReferenceTypeLead, ReferenceId: lead.ID})
	require.NoError(t, err)
	require.Equal(t, f.agent.Name, c.UserName)

	_, err = models.CreateComment(agent, &models.NewComment{Description: "x", ReferenceType: "campaigns", ReferenceId: f.campaign.ID})
	require.Error(t, err)

	list, err := models.ListComments(agent, models.ReferenceTypeLead, lead.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = models.DeleteComment(asUser(f.qc), c.ID)
	require.ErrorIs(t, err, utils.ErrorForbidden)
	_, err = models.DeleteComment(agent, c.ID)
	require.NoError(t, err)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	businessId := f.business.ID.String()
	db := config.GetDB()

	require.NoError(t, models.CreateNotifications(db, businessId, []int{f.agent.ID, f.agent.ID, 0}, models.EventLeadAssigned, models.ReferenceTypeLead, 1, "Lead assigned to you"))

	ctx := asUser(f.agent)
	unread, err := models.ListNotifications(ctx, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	_, err = models.MarkNotificationRead(asUser(f.qc), unread[0].ID)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)

	read, err := models.MarkNotificationRead(ctx, unread[0].ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	unread, err = models.ListNotifications(ctx, true)
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestPaginateActivityFilters(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)
	f.newLead(t, 2)
	ctx := asUser(f.admin)

	page, err := models.PaginateActivity(ctx, 50, nil, &models.ActivityFilter{LeadId: &lead.ID})
	require.NoError(t, err)
	// create, submit, qualify, enter first stage
	require.Len(t, page.Edges, 4)

	moves, err := models.PaginateActivity(ctx, 50, nil, &models.ActivityFilter{ActionType: models.ActionStageMove})
	require.NoError(t, err)
	require.Len(t, moves.Edges, 1)
	require.Equal(t, "Entered pipeline at Attempting Contact.", moves.Edges[0].Node.Description)
}

package models_test

import (
	"testing"

	"github.com/mmdatafocus/leads_backend/models"
	"github.com/stretchr/testify/require"
)

func TestDecideStageMove(t *testing.T) {
	attempting := models.StageRef{Id: 1, Name: "Attempting Contact", SortOrder: 1}
	contacted := models.StageRef{Id: 2, Name: "Contacted", SortOrder: 2}
	followUp := models.StageRef{Id: 3, Name: "Follow-Up", SortOrder: 3}
	sibling := models.StageRef{Id: 9, Name: "Contacted (Spanish)", SortOrder: 2}
	closed := models.StageRef{Id: 6, Name: "Closed", SortOrder: 1000, IsSystem: true}

	tests := []struct {
		name      string
		current   models.StageRef
		target    models.StageRef
		openTasks int
		want      models.MoveDecision
		blocked   bool
	}{
		{"same stage is a no-op", contacted, contacted, 3, models.MoveNoop, false},
		{"forward with open tasks is blocked", contacted, followUp, 1, "", true},
		{"forward with no open tasks", contacted, followUp, 0, models.MoveForward, false},
		{"backward ignores open tasks", contacted, attempting, 4, models.MoveBackward, false},
		{"lateral ignores open tasks", contacted, sibling, 2, models.MoveLateral, false},
		{"into a system stage is gated", followUp, closed, 1, "", true},
		{"out of a system stage is backward", closed, followUp, 1, models.MoveBackward, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.DecideStageMove(tt.current, tt.target, tt.openTasks)
			if tt.blocked {
				require.ErrorIs(t, err, models.ErrStageGateBlocked)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMoveLeadStageGatesForwardMoves(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)
	require.Equal(t, f.stages["Attempting Contact"].ID, *lead.StageId)

	ctx := asUser(f.agent)
	res, err := models.MoveLeadStage(ctx, lead.ID, f.stages["Contacted"].ID)
	require.NoError(t, err)
	require.Equal(t, models.MoveForward, res.Decision)

	// one incomplete task on Contacted
	task, err := models.CreateTask(ctx, lead.ID, &models.NewTask{Title: "Leave voicemail"})
	require.NoError(t, err)
	require.Equal(t, f.stages["Contacted"].ID, task.StageId)

	_, err = models.MoveLeadStage(ctx, lead.ID, f.stages["Follow-Up"].ID)
	require.ErrorIs(t, err, models.ErrStageGateBlocked)

	current, err := models.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Equal(t, f.stages["Contacted"].ID, *current.StageId)

	res, err = models.MoveLeadStage(ctx, lead.ID, f.stages["Attempting Contact"].ID)
	require.NoError(t, err)
	require.Equal(t, models.MoveBackward, res.Decision)
	require.Equal(t, f.stages["Attempting Contact"].ID, *res.Lead.StageId)
	require.NotNil(t, res.Lead.StageChangedAt)
}

func TestMoveLeadStageCompletedTasksOpenTheGate(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)
	ctx := asUser(f.agent)

	task, err := models.CreateTask(ctx, lead.ID, &models.NewTask{Title: "Call homeowner"})
	require.NoError(t, err)
	_, err = models.MoveLeadStage(ctx, lead.ID, f.stages["Contacted"].ID)
	require.ErrorIs(t, err, models.ErrStageGateBlocked)

	_, err = models.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	res, err := models.MoveLeadStage(ctx, lead.ID, f.stages["Contacted"].ID)
	require.NoError(t, err)
	require.Equal(t, models.MoveForward, res.Decision)

	// tasks on other stages never count
	res, err = models.MoveLeadStage(ctx, lead.ID, f.stages["Follow-Up"].ID)
	require.NoError(t, err)
	require.Equal(t, models.MoveForward, res.Decision)
}

func TestMoveLeadStageSameStageIsNoop(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)
	ctx := asUser(f.agent)

	before := f.activityCount(t, lead.ID)
	events, err := models.ListOutboxMessages(ctx, models.ReferenceTypeLead, lead.ID)
	require.NoError(t, err)

	res, err := models.MoveLeadStage(ctx, lead.ID, *lead.StageId)
	require.NoError(t, err)
	require.Equal(t, models.MoveNoop, res.Decision)
	require.Equal(t, lead.StageChangedAt.Unix(), res.Lead.StageChangedAt.Unix())

	require.Equal(t, before, f.activityCount(t, lead.ID))
	after, err := models.ListOutboxMessages(ctx, models.ReferenceTypeLead, lead.ID)
	require.NoError(t, err)
	require.Len(t, after, len(events))
}

func TestMoveLeadStageWritesAuditAndEvent(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)
	ctx := asUser(f.agent)

	_, err := models.MoveLeadStage(ctx, lead.ID, f.stages["Contacted"].ID)
	require.NoError(t, err)

	entries, err := models.ListLeadActivity(ctx, lead.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	require.Equal(t, models.ActionStageMove, last.ActionType)
	require.Equal(t, "Moved from Attempting Contact to Contacted.", last.Description)
	require.Equal(t, f.agent.ID, last.UserId)

	events, err := models.ListOutboxMessages(ctx, models.ReferenceTypeLead, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.EventLeadStageChanged, events[0].EventType)
	require.Equal(t, models.OutboxPublishStatusPending, events[0].PublishStatus)
}

func TestMoveLeadStageRequiresPipeline(t *testing.T) {
	f := newFixture(t)
	lead := f.newLead(t, 1)

	_, err := models.MoveLeadStage(asUser(f.agent), lead.ID, f.stages["Contacted"].ID)
	require.ErrorIs(t, err, models.ErrLeadNotInPipeline)
}

func TestMoveLeadStageMaterializesTemplatesOnce(t *testing.T) {
	f := newFixture(t)
	admin := asUser(f.admin)
	followUp := f.stages["Follow-Up"]
	_, err := models.CreateStageTaskTemplate(admin, followUp.ID, &models.NewStageTaskTemplate{Title: "Send comps"})
	require.NoError(t, err)

	lead := f.qualifiedLead(t, 1)
	ctx := asUser(f.agent)
	for _, name := range []string{"Contacted", "Follow-Up", "Contacted", "Follow-Up"} {
		_, err := models.MoveLeadStage(ctx, lead.ID, f.stages[name].ID)
		require.NoError(t, err)
	}

	tasks, err := models.ListLeadTasks(ctx, lead.ID, &followUp.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "Send comps", tasks[0].Title)
	require.NotNil(t, tasks[0].TemplateId)

	// the template task now gates Follow-Up
	_, err = models.MoveLeadStage(ctx, lead.ID, f.stages["Appointment Set"].ID)
	require.ErrorIs(t, err, models.ErrStageGateBlocked)
}

func TestMoveLeadStageOutOfClosed(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)
	ctx := asUser(f.agent)

	_, err := models.MoveLeadStage(ctx, lead.ID, f.stages["Closed"].ID)
	require.NoError(t, err)
	_, err = models.CreateTask(ctx, lead.ID, &models.NewTask{Title: "Send closing packet"})
	require.NoError(t, err)

	res, err := models.MoveLeadStage(ctx, lead.ID, f.stages["Negotiation"].ID)
	require.NoError(t, err)
	require.Equal(t, models.MoveBackward, res.Decision)
}

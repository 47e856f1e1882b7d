package models_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/stretchr/testify/require"
)

func stageNames(stages []*models.PipelineStage) []string {
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	return names
}

func TestSeedDefaultStages(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.admin)

	all, err := models.ListAllPipelineStages(ctx)
	require.NoError(t, err)
	want := []string{"Attempting Contact", "Contacted", "Follow-Up", "Appointment Set", "Negotiation", "Closed", "Dead"}
	if diff := cmp.Diff(want, stageNames(all)); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, f.stages["Contacted"].SortOrder)
	require.True(t, f.stages["Closed"].IsSystem)

	again, err := models.SeedDefaultStages(ctx, f.business.ID.String())
	require.NoError(t, err)
	require.Len(t, again, len(want))
}

func TestListPipelineStagesExcludesSystemStages(t *testing.T) {
	f := newFixture(t)
	stages, err := models.ListPipelineStages(asUser(f.admin))
	require.NoError(t, err)
	for _, s := range stages {
		require.False(t, s.IsSystem, s.Name)
	}
	require.NotContains(t, stageNames(stages), "Closed")
	require.NotContains(t, stageNames(stages), "Dead")
}

func TestReorderPipelineStages(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.admin)

	custom, err := models.ListPipelineStages(ctx)
	require.NoError(t, err)
	ids := make([]int, 0, len(custom))
	for i := len(custom) - 1; i >= 0; i-- {
		ids = append(ids, custom[i].ID)
	}

	reordered, err := models.ReorderPipelineStages(ctx, ids)
	require.NoError(t, err)
	want := []string{"Negotiation", "Appointment Set", "Follow-Up", "Contacted", "Attempting Contact"}
	if diff := cmp.Diff(want, stageNames(reordered)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	for i, s := range reordered {
		require.Equal(t, i+1, s.SortOrder)
	}

	closed, err := models.GetPipelineStage(ctx, f.stages["Closed"].ID)
	require.NoError(t, err)
	require.Equal(t, 1000, closed.SortOrder)
}

func TestReorderPipelineStagesRejectsBadSets(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.admin)
	custom, err := models.ListPipelineStages(ctx)
	require.NoError(t, err)
	ids := make([]int, 0, len(custom))
	for _, s := range custom {
		ids = append(ids, s.ID)
	}

	_, err = models.ReorderPipelineStages(ctx, append(append([]int{}, ids...), f.stages["Closed"].ID))
	require.ErrorIs(t, err, models.ErrInvalidStageOrder)

	_, err = models.ReorderPipelineStages(ctx, ids[1:])
	require.ErrorIs(t, err, models.ErrInvalidStageOrder)

	dup := append(append([]int{}, ids[:len(ids)-1]...), ids[0])
	_, err = models.ReorderPipelineStages(ctx, dup)
	require.ErrorIs(t, err, models.ErrInvalidStageOrder)
}

func TestCreateAndDeletePipelineStage(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.admin)

	stage, err := models.CreatePipelineStage(ctx, &models.NewPipelineStage{Name: "Contract Sent", Color: "#000000"})
	require.NoError(t, err)
	require.Equal(t, 6, stage.SortOrder)
	require.False(t, stage.IsSystem)

	_, err = models.CreatePipelineStage(ctx, &models.NewPipelineStage{Name: "Contract Sent"})
	require.Error(t, err)

	_, err = models.DeletePipelineStage(ctx, stage.ID)
	require.NoError(t, err)
	_, err = models.GetPipelineStage(ctx, stage.ID)
	require.Error(t, err)
}

func TestSystemStagesAreProtected(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.admin)

	_, err := models.DeletePipelineStage(ctx, f.stages["Dead"].ID)
	require.ErrorIs(t, err, models.ErrSystemStage)
	_, err = models.UpdatePipelineStage(ctx, f.stages["Closed"].ID, &models.NewPipelineStage{Name: "Won"})
	require.ErrorIs(t, err, models.ErrSystemStage)

	// recolouring keeps the name and is allowed
	stage, err := models.UpdatePipelineStage(ctx, f.stages["Closed"].ID, &models.NewPipelineStage{Name: "Closed", Color: "#111111"})
	require.NoError(t, err)
	require.Equal(t, "#111111", stage.Color)
}

func TestDeletePipelineStageInUse(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead(t, 1)

	_, err := models.DeletePipelineStage(asUser(f.admin), *lead.StageId)
	require.ErrorIs(t, err, models.ErrStageInUse)
}

func TestPipelineBoard(t *testing.T) {
	f := newFixture(t)
	f.qualifiedLead(t, 1)
	f.qualifiedLead(t, 2)
	f.newLead(t, 3)

	columns, err := models.PipelineBoard(asUser(f.admin), nil)
	require.NoError(t, err)
	require.Len(t, columns, 7)

	first := columns[0]
	require.Equal(t, "Attempting Contact", first.Stage.Name)
	require.EqualValues(t, 2, first.LeadCount)
	require.Len(t, first.Leads, 2)
	require.Equal(t, "600000", first.TotalValue.String())
	require.Zero(t, columns[1].LeadCount)
	require.Empty(t, columns[1].Leads)
}

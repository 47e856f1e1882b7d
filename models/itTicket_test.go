package models_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return "mem://" + key, nil
}

func (f *fixture) newTicket(t *testing.T) *models.ITTicket {
	t.Helper()
	ticket, err := models.CreateTicket(asUser(f.agent), &models.NewITTicket{
		Subject:  "Headset crackles",
		Category: models.TicketCategoryHardware,
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicketNumbersPerBusiness(t *testing.T) {
	f := newFixture(t)
	first := f.newTicket(t)
	second := f.newTicket(t)

	require.Equal(t, "IT-000001", first.TicketNumber)
	require.Equal(t, "IT-000002", second.TicketNumber)
	require.Equal(t, models.TicketStatusPending, first.Status)
	require.Equal(t, models.TicketPriorityMedium, first.Priority)
	require.Equal(t, f.agent.ID, first.RequesterId)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.agent)

	_, err := models.CreateTicket(ctx, &models.NewITTicket{Subject: "x", Category: "Plumbing"})
	require.Error(t, err)
	_, err = models.CreateTicket(ctx, &models.NewITTicket{Subject: "x", Category: models.TicketCategoryAccess, Priority: "Whenever"})
	require.Error(t, err)
	_, err = models.CreateTicket(ctx, &models.NewITTicket{Subject: "  ", Category: models.TicketCategoryAccess})
	require.Error(t, err)
}

func TestTicketStatusMachine(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t)
	it := asUser(f.it)

	_, err := models.ResolveTicket(it, ticket.ID, &models.ResolveTicketInput{Solved: true, Resolution: "replaced"})
	require.ErrorIs(t, err, models.ErrInvalidTicketTransition)

	reviewing, err := models.StartTicketReview(it, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, models.TicketStatusUnderReview, reviewing.Status)
	require.NotNil(t, reviewing.ReviewedAt)
	require.Equal(t, f.it.ID, *reviewing.AssigneeId)

	_, err = models.ResolveTicket(it, ticket.ID, &models.ResolveTicketInput{Solved: true})
	require.ErrorIs(t, err, models.ErrResolutionRequired)

	solved, err := models.ResolveTicket(it, ticket.ID, &models.ResolveTicketInput{Solved: true, Resolution: "replaced headset"})
	require.NoError(t, err)
	require.Equal(t, models.TicketStatusSolved, solved.Status)
	require.NotNil(t, solved.ResolvedAt)

	_, err = models.StartTicketReview(it, ticket.ID)
	require.ErrorIs(t, err, models.ErrInvalidTicketTransition)
	_, err = models.ResolveTicket(it, ticket.ID, &models.ResolveTicketInput{Resolution: "again"})
	require.ErrorIs(t, err, models.ErrInvalidTicketTransition)

	events, err := models.ListOutboxMessages(it, models.ReferenceTypeTicket, ticket.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, models.EventTicketStatusChanged, events[0].EventType)
	require.Equal(t, models.EventTicketCreated, events[2].EventType)
}

func TestTicketTransitionsTable(t *testing.T) {
	all := []models.TicketStatus{models.TicketStatusPending, models.TicketStatusUnderReview, models.TicketStatusSolved, models.TicketStatusNotSolved}
	allowed := map[[2]models.TicketStatus]bool{
		{models.TicketStatusPending, models.TicketStatusUnderReview}:   true,
		{models.TicketStatusUnderReview, models.TicketStatusSolved}:    true,
		{models.TicketStatusUnderReview, models.TicketStatusNotSolved}: true,
	}
	for _, from := range all {
		for _, to := range all {
			require.Equal(t, allowed[[2]models.TicketStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestAssignTicketRequiresITUser(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t)
	admin := asUser(f.admin)

	_, err := models.AssignTicket(admin, ticket.ID, f.agent.ID)
	require.ErrorIs(t, err, models.ErrInvalidAssignee)

	assigned, err := models.AssignTicket(admin, ticket.ID, f.it.ID)
	require.NoError(t, err)
	require.Equal(t, f.it.ID, *assigned.AssigneeId)
}

func TestTicketVisibility(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t)

	_, err := models.GetTicket(asUser(f.qc), ticket.ID)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)
	_, err = models.GetTicket(asUser(f.it), ticket.ID)
	require.NoError(t, err)

	mine, err := models.PaginateTickets(asUser(f.qc), 10, nil, nil)
	require.NoError(t, err)
	require.Empty(t, mine.Edges)
	all, err := models.PaginateTickets(asUser(f.admin), 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, all.Edges, 1)
}

func TestAttachToTicketMakesThumbnail(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t)

	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for x := 0; x < 800; x++ {
		img.Set(x, x%600, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	store := &memStorage{}
	updated, err := models.AttachToTicket(asUser(f.agent), store, ticket.ID, "screen.png", buf.Bytes())
	require.NoError(t, err)
	require.NotEmpty(t, updated.AttachmentUrl)
	require.NotEmpty(t, updated.ThumbnailUrl)
	require.Len(t, store.objects, 2)

	_, err = models.AttachToTicket(asUser(f.agent), store, ticket.ID, "run.exe", []byte("MZ\x90\x00binary"))
	require.Error(t, err)
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []config.EventMessage
	got  chan struct{}
}

func (p *fakePublisher) Publish(_ context.Context, msg config.EventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, msg)
	if p.got != nil {
		select {
		case p.got <- struct{}{}:
		default:
		}
	}
	return fmt.Sprintf("pub-%d", len(p.sent)), nil
}

type testEnv struct {
	businessId string
	admin      *models.User
	agent      *models.User
	qc         *models.User
	it         *models.User
	client     *models.User
	campaign   *models.Campaign
}

func actorCtx(u *models.User) context.Context {
	ctx := utils.WithActor(context.Background(), u.BusinessId, u.ID, u.Name)
	return utils.SetUserRoleInContext(ctx, string(u.Role))
}

func newTestEnv(t *testing.T) *testEnv {
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

	business, err := models.CreateBusiness(context.Background(), &models.NewBusiness{Name: "Acme Homes", Timezone: "UTC"})
	require.NoError(t, err)
	env := &testEnv{businessId: business.ID.String()}
	newUser := func(username string, role models.UserRole) *models.User {
		u, err := models.CreateUser(context.Background(), &models.NewUser{
			BusinessId: env.businessId,
			Username:   username,
			Name:       username,
			Password:   "password123",
			Role:       role,
		})
		require.NoError(t, err)
		return u
	}
	env.admin = newUser("admin", models.UserRoleAdmin)
	env.agent = newUser("agent", models.UserRoleAgent)
	env.qc = newUser("qc", models.UserRoleQC)
	env.it = newUser("it", models.UserRoleIT)
	env.client = newUser("client", models.UserRoleClient)

	env.campaign, err = models.CreateCampaign(actorCtx(env.admin), &models.NewCampaign{
		Name:         "Spring Sellers",
		ClientUserId: &env.client.ID,
		QcUserId:     &env.qc.ID,
		TargetLeads:  5,
	})
	require.NoError(t, err)
	return env
}

func (env *testEnv) newLead(t *testing.T, n int) *models.Lead {
	t.Helper()
	lead, err := models.CreateLead(actorCtx(env.agent), &models.NewLead{
		CampaignId:  env.campaign.ID,
		LeadDetails: models.LeadDetails{FirstName: "Lead", LastName: fmt.Sprint(n), Phone: fmt.Sprintf("(650) 253-%04d", n)},
	})
	require.NoError(t, err)
	return lead
}

func outboxRow(t *testing.T, id int) models.OutboxMessage {
	t.Helper()
	var row models.OutboxMessage
	require.NoError(t, config.GetDB().Where("id = ?", id).Take(&row).Error)
	return row
}

func TestDispatchOnceMarksSent(t *testing.T) {
	env := newTestEnv(t)
	lead := env.newLead(t, 1)

	pub := &fakePublisher{}
	d := NewOutboxDispatcher(config.GetDB(), config.GetLogger(), pub)
	require.Equal(t, 1, d.DispatchOnce(context.Background()))
	require.Len(t, pub.sent, 1)
	require.Equal(t, models.EventLeadCreated, pub.sent[0].EventType)
	require.Equal(t, lead.ID, pub.sent[0].ReferenceId)
	require.Equal(t, env.agent.ID, pub.sent[0].ActorId)

	row := outboxRow(t, pub.sent[0].ID)
	require.Equal(t, models.OutboxPublishStatusSent, row.PublishStatus)
	require.Equal(t, "pub-1", *row.PubSubMessageId)
	require.Equal(t, 1, row.PublishAttempts)
	require.Nil(t, row.LockedBy)

	// already sent rows are never picked again
	require.Equal(t, 0, d.DispatchOnce(context.Background()))
	require.Len(t, pub.sent, 1)
}

func TestDispatchOnceBacksOffThenGoesDead(t *testing.T) {
	env := newTestEnv(t)
	env.newLead(t, 1)

	pub := &fakePublisher{err: errors.New("topic not found")}
	d := NewOutboxDispatcher(config.GetDB(), config.GetLogger(), pub)
	d.MaxAttempts = 2
	require.Equal(t, 0, d.DispatchOnce(context.Background()))

	var row models.OutboxMessage
	require.NoError(t, config.GetDB().Order("id").Take(&row).Error)
	require.Equal(t, models.OutboxPublishStatusFailed, row.PublishStatus)
	require.Equal(t, 1, row.PublishAttempts)
	require.Equal(t, "topic not found", *row.LastPublishError)
	require.True(t, row.NextAttemptAt.After(time.Now().UTC()))

	// not due yet
	require.Equal(t, 0, d.DispatchOnce(context.Background()))
	require.Equal(t, 1, outboxRow(t, row.ID).PublishAttempts)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, config.GetDB().Model(&models.OutboxMessage{}).Where("id = ?", row.ID).Update("next_attempt_at", &past).Error)
	require.Equal(t, 0, d.DispatchOnce(context.Background()))
	row = outboxRow(t, row.ID)
	require.Equal(t, models.OutboxPublishStatusDead, row.PublishStatus)
	require.Equal(t, 2, row.PublishAttempts)

	// a replayed row is published again
	replayed, err := models.ReplayOutboxMessage(actorCtx(env.admin), row.ID)
	require.NoError(t, err)
	require.Equal(t, models.OutboxPublishStatusFailed, replayed.PublishStatus)
	pub.err = nil
	require.Equal(t, 1, d.DispatchOnce(context.Background()))
	require.Equal(t, models.OutboxPublishStatusSent, outboxRow(t, row.ID).PublishStatus)
}

// droppingPublisher fails every publish after removing the outbox table,
// so the follow-up status update cannot succeed.
type droppingPublisher struct{}

func (droppingPublisher) Publish(context.Context, config.EventMessage) (string, error) {
	if err := config.GetDB().Migrator().DropTable(&models.OutboxMessage{}); err != nil {
		return "", err
	}
	return "", errors.New("topic not found")
}

func TestDispatchOnceLogsFailedStatusUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.newLead(t, 1)

	logger, hook := logrustest.NewNullLogger()
	d := NewOutboxDispatcher(config.GetDB(), logger, droppingPublisher{})
	require.Equal(t, 0, d.DispatchOnce(context.Background()))

	logged := false
	for _, entry := range hook.AllEntries() {
		if entry.Data["funcName"] == "markPublishFailed" {
			logged = true
		}
	}
	require.True(t, logged, "expected the failed outbox update to be logged")
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second}
	require.Equal(t, 5*time.Second, d.backoffFor(1))
	require.Equal(t, 20*time.Second, d.backoffFor(3))
	require.Equal(t, 10*time.Minute, d.backoffFor(12))
}

func TestRunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	env.newLead(t, 1)

	pub := &fakePublisher{got: make(chan struct{}, 1)}
	d := NewOutboxDispatcher(config.GetDB(), config.GetLogger(), pub)
	d.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	select {
	case <-pub.got:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher never published")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

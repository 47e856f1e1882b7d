package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const notificationHandler = "notifications"

// notice is who hears about an event and what they are told.
type notice struct {
	recipients []int
	message    string
}

// ProcessEvent turns one delivered event into notifications. A message id that
// already succeeded is skipped, so Pub/Sub redeliveries are harmless.
func ProcessEvent(ctx context.Context, logger *logrus.Logger, msg config.EventMessage, messageId string) error {
	if msg.BusinessId == "" || msg.EventType == "" {
		return errors.New("business_id and event_type are required")
	}
	if messageId == "" {
		messageId = fmt.Sprintf("outbox-%d", msg.ID)
	}
	db := config.GetDB().WithContext(ctx)

	var skipped bool
	err := db.Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, msg.BusinessId, notificationHandler, messageId)
		if err != nil {
			return err
		}
		if skip {
			skipped = true
			return nil
		}
		n, err := noticeFor(tx, msg)
		if err != nil {
			return err
		}
		if n != nil {
			if err := models.CreateNotifications(tx, msg.BusinessId, withoutActor(n.recipients, msg.ActorId),
				msg.EventType, msg.ReferenceType, msg.ReferenceId, n.message); err != nil {
				return err
			}
		}
		return MarkIdempotencySucceeded(tx, msg.BusinessId, notificationHandler, messageId)
	})
	if err != nil {
		if !errors.Is(err, ErrIdempotencyInProgress) {
			_ = MarkIdempotencyFailed(db, msg.BusinessId, notificationHandler, messageId, err)
		}
		return err
	}
	if skipped && logger != nil {
		logger.WithFields(logrus.Fields{
			"field":       "ProcessEvent",
			"business_id": msg.BusinessId,
			"event_type":  msg.EventType,
			"message_id":  messageId,
		}).Info("event already processed; skipping")
	}
	return nil
}

func withoutActor(ids []int, actorId int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != actorId {
			out = append(out, id)
		}
	}
	return out
}

func noticeFor(tx *gorm.DB, msg config.EventMessage) (*notice, error) {
	switch msg.EventType {
	case models.EventLeadCreated, models.EventLeadAssigned, models.EventLeadStageChanged, models.EventLeadQualified:
		var ev models.LeadEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return leadNotice(tx, msg, ev)
	case models.EventTicketCreated, models.EventTicketStatusChanged:
		var ev models.TicketEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return ticketNotice(tx, msg, ev)
	}
	// task.completed and unknown types carry no notification
	return nil, nil
}

func leadNotice(tx *gorm.DB, msg config.EventMessage, ev models.LeadEvent) (*notice, error) {
	switch msg.EventType {
	case models.EventLeadCreated:
		var campaign models.Campaign
		if err := tx.Where("business_id = ? AND id = ?", msg.BusinessId, ev.CampaignId).Take(&campaign).Error; err != nil {
			return nil, err
		}
		if campaign.QcUserId == nil {
			return nil, nil
		}
		return &notice{
			recipients: []int{*campaign.QcUserId},
			message:    fmt.Sprintf("New lead %s in %s.", ev.LeadName, campaign.Name),
		}, nil
	case models.EventLeadAssigned:
		if ev.AssignedUserId == nil {
			return nil, nil
		}
		return &notice{
			recipients: []int{*ev.AssignedUserId},
			message:    fmt.Sprintf("Lead %s was assigned to you.", ev.LeadName),
		}, nil
	case models.EventLeadStageChanged:
		if ev.AssignedUserId == nil {
			return nil, nil
		}
		return &notice{
			recipients: []int{*ev.AssignedUserId},
			message:    fmt.Sprintf("Lead %s moved to %s.", ev.LeadName, ev.ToStageName),
		}, nil
	case models.EventLeadQualified:
		var campaign models.Campaign
		if err := tx.Where("business_id = ? AND id = ?", msg.BusinessId, ev.CampaignId).Take(&campaign).Error; err != nil {
			return nil, err
		}
		recipients := make([]int, 0, 2)
		if campaign.ClientUserId != nil {
			recipients = append(recipients, *campaign.ClientUserId)
		}
		if ev.AssignedUserId != nil {
			recipients = append(recipients, *ev.AssignedUserId)
		}
		return &notice{
			recipients: recipients,
			message:    fmt.Sprintf("Lead %s was qualified for %s.", ev.LeadName, campaign.Name),
		}, nil
	}
	return nil, nil
}

func ticketNotice(tx *gorm.DB, msg config.EventMessage, ev models.TicketEvent) (*notice, error) {
	if msg.EventType == models.EventTicketCreated {
		var itUsers []int
		if err := tx.Model(&models.User{}).
			Where("business_id = ? AND role = ? AND is_active = ?", msg.BusinessId, models.UserRoleIT, true).
			Order("id").
			Pluck("id", &itUsers).Error; err != nil {
			return nil, err
		}
		return &notice{
			recipients: itUsers,
			message:    fmt.Sprintf("New IT ticket %s: %s", ev.TicketNumber, ev.Subject),
		}, nil
	}
	return &notice{
		recipients: []int{ev.RequesterId},
		message:    fmt.Sprintf("Ticket %s is now %s.", ev.TicketNumber, ev.Status),
	}, nil
}

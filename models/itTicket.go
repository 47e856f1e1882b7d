package models

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ITTicket struct {
	ID            int            `gorm:"primary_key" json:"id"`
	BusinessId    string         `gorm:"size:64;not null;index;uniqueIndex:uniq_ticket_seq,priority:1" json:"business_id"`
	SequenceNo    int64          `gorm:"not null;uniqueIndex:uniq_ticket_seq,priority:2" json:"sequence_no"`
	TicketNumber  string         `gorm:"size:20;not null" json:"ticket_number"`
	Subject       string         `gorm:"size:200;not null" json:"subject"`
	Description   string         `gorm:"type:text" json:"description"`
	Category      TicketCategory `gorm:"size:20;not null" json:"category"`
	Priority      TicketPriority `gorm:"size:20;not null" json:"priority"`
	Status        TicketStatus   `gorm:"size:20;not null;default:'Pending';index" json:"status"`
	RequesterId   int            `gorm:"not null;index" json:"requester_id"`
	AssigneeId    *int           `gorm:"index" json:"assignee_id"`
	Resolution    string         `gorm:"type:text" json:"resolution"`
	AttachmentUrl string         `gorm:"size:500" json:"attachment_url"`
	ThumbnailUrl  string         `gorm:"size:500" json:"thumbnail_url"`
	ReviewedAt    *time.Time     `json:"reviewed_at"`
	ResolvedAt    *time.Time     `json:"resolved_at"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ITTicket) TableName() string {
	return "it_tickets"
}

func (t ITTicket) GetId() int {
	return t.ID
}

type NewITTicket struct {
	Subject     string         `json:"subject" binding:"required"`
	Description string         `json:"description"`
	Category    TicketCategory `json:"category" binding:"required"`
	Priority    TicketPriority `json:"priority"`
}

type ResolveTicketInput struct {
	Solved     bool   `json:"solved"`
	Resolution string `json:"resolution"`
}

type TicketFilter struct {
	Status     *TicketStatus   `form:"status"`
	Category   *TicketCategory `form:"category"`
	Priority   *TicketPriority `form:"priority"`
	AssigneeId *int            `form:"assignee_id"`
}

type TicketEvent struct {
	TicketId     int          `json:"ticket_id"`
	TicketNumber string       `json:"ticket_number"`
	Subject      string       `json:"subject"`
	RequesterId  int          `json:"requester_id"`
	AssigneeId   *int         `json:"assignee_id,omitempty"`
	FromStatus   TicketStatus `json:"from_status,omitempty"`
	Status       TicketStatus `json:"status"`
}

func newTicketEvent(t *ITTicket, from TicketStatus) TicketEvent {
	return TicketEvent{
		TicketId:     t.ID,
		TicketNumber: t.TicketNumber,
		Subject:      t.Subject,
		RequesterId:  t.RequesterId,
		AssigneeId:   t.AssigneeId,
		FromStatus:   from,
		Status:       t.Status,
	}
}

func FormatTicketNumber(seq int64) string {
	return fmt.Sprintf("IT-%06d", seq)
}

// only IT staff and admins see every ticket
func canSeeAllTickets(ctx context.Context) bool {
	role, _ := utils.GetUserRoleFromContext(ctx)
	for _, r := range ITRoles {
		if UserRole(role) == r {
			return true
		}
	}
	return UserRole(role) == UserRoleOwner
}

func CreateTicket(ctx context.Context, input *NewITTicket) (*ITTicket, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	if err := input.Category.Validate(); err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = TicketPriorityMedium
	}
	if err := priority.Validate(); err != nil {
		return nil, err
	}

	seq, err := utils.NextSequence[ITTicket](ctx, a.BusinessId)
	if err != nil {
		return nil, err
	}
	ticket := ITTicket{
		BusinessId:   a.BusinessId,
		SequenceNo:   seq,
		TicketNumber: FormatTicketNumber(seq),
		Subject:      subject,
		Description:  input.Description,
		Category:     input.Category,
		Priority:     priority,
		Status:       TicketStatusPending,
		RequesterId:  a.UserId,
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}
		if err := createActivity(tx, nil, ActionCreate, ReferenceTypeTicket, ticket.ID, nil, ticket,
			fmt.Sprintf("Ticket %s opened: %s", ticket.TicketNumber, ticket.Subject)); err != nil {
			return err
		}
		return writeOutbox(tx, a.BusinessId, EventTicketCreated, ReferenceTypeTicket, ticket.ID, newTicketEvent(&ticket, ""))
	})
	if err != nil {
		if IsDuplicateKeyErr(err) {
			// stale redis counter; drop it so the next call reseeds from the table
			_ = config.RemoveRedisKey(fmt.Sprintf("Seq:%s:%s", utils.GetTypeName[ITTicket](), a.BusinessId))
		}
		return nil, err
	}
	return &ticket, nil
}

func GetTicket(ctx context.Context, id int) (*ITTicket, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ticket, err := fetchModel[ITTicket](ctx, config.GetDB(), a.BusinessId, id)
	if err != nil {
		return nil, err
	}
	if !canSeeAllTickets(ctx) && ticket.RequesterId != a.UserId {
		return nil, utils.ErrorRecordNotFound
	}
	return ticket, nil
}

func PaginateTickets(ctx context.Context, limit int, after *string, filter *TicketFilter) (*Connection[ITTicket], error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&ITTicket{}).Where("business_id = ?", a.BusinessId)
	if !canSeeAllTickets(ctx) {
		dbCtx = dbCtx.Where("requester_id = ?", a.UserId)
	}
	if filter != nil {
		if filter.Status != nil {
			dbCtx = dbCtx.Where("status = ?", *filter.Status)
		}
		if filter.Category != nil {
			dbCtx = dbCtx.Where("category = ?", *filter.Category)
		}
		if filter.Priority != nil {
			dbCtx = dbCtx.Where("priority = ?", *filter.Priority)
		}
		if filter.AssigneeId != nil {
			dbCtx = dbCtx.Where("assignee_id = ?", *filter.AssigneeId)
		}
	}
	return FetchPageById[ITTicket](dbCtx, limit, after)
}

func lockTicket(ctx context.Context, tx *gorm.DB, businessId string, id int) (*ITTicket, error) {
	var ticket ITTicket
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		Take(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// AssignTicket hands a ticket to an IT user.
func AssignTicket(ctx context.Context, id int, assigneeId int) (*ITTicket, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var ticket *ITTicket
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ticket, err = lockTicket(ctx, tx, a.BusinessId, id)
		if err != nil {
			return err
		}
		if ticket.Status.IsTerminal() {
			return ErrInvalidTicketTransition
		}
		user, err := requireUserWithRole(tx, a.BusinessId, assigneeId, UserRoleIT)
		if err != nil {
			return ErrInvalidAssignee
		}
		before := map[string]interface{}{"assignee_id": ticket.AssigneeId}
		if err := tx.Model(&ITTicket{}).Where("business_id = ? AND id = ?", a.BusinessId, id).
			Update("assignee_id", assigneeId).Error; err != nil {
			return err
		}
		ticket.AssigneeId = &assigneeId
		return createActivity(tx, nil, ActionAssign, ReferenceTypeTicket, ticket.ID, before,
			map[string]interface{}{"assignee_id": assigneeId},
			fmt.Sprintf("Ticket %s assigned to %s.", ticket.TicketNumber, user.Name))
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// StartTicketReview moves a pending ticket to UnderReview.
func StartTicketReview(ctx context.Context, id int) (*ITTicket, error) {
	return changeTicketStatus(ctx, id, TicketStatusUnderReview, "")
}

// ResolveTicket closes a ticket under review as Solved or NotSolved.
func ResolveTicket(ctx context.Context, id int, input *ResolveTicketInput) (*ITTicket, error) {
	resolution := strings.TrimSpace(input.Resolution)
	if resolution == "" {
		return nil, ErrResolutionRequired
	}
	next := TicketStatusNotSolved
	if input.Solved {
		next = TicketStatusSolved
	}
	return changeTicketStatus(ctx, id, next, resolution)
}

func changeTicketStatus(ctx context.Context, id int, next TicketStatus, resolution string) (*ITTicket, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var ticket *ITTicket
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ticket, err = lockTicket(ctx, tx, a.BusinessId, id)
		if err != nil {
			return err
		}
		from := ticket.Status
		if !from.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTicketTransition, from, next)
		}
		now := time.Now().UTC()
		updates := map[string]interface{}{"status": next}
		if next == TicketStatusUnderReview {
			updates["reviewed_at"] = now
			ticket.ReviewedAt = &now
			if ticket.AssigneeId == nil {
				updates["assignee_id"] = a.UserId
				ticket.AssigneeId = &a.UserId
			}
		}
		if next.IsTerminal() {
			updates["resolution"] = resolution
			updates["resolved_at"] = now
			ticket.Resolution = resolution
			ticket.ResolvedAt = &now
		}
		if err := tx.Model(&ITTicket{}).Where("business_id = ? AND id = ?", a.BusinessId, id).
			Updates(updates).Error; err != nil {
			return err
		}
		ticket.Status = next

		if err := createActivity(tx, nil, ActionStatus, ReferenceTypeTicket, ticket.ID,
			map[string]interface{}{"status": from},
			map[string]interface{}{"status": next, "resolution": resolution},
			fmt.Sprintf("Ticket %s moved from %s to %s.", ticket.TicketNumber, from, next)); err != nil {
			return err
		}
		return writeOutbox(tx, a.BusinessId, EventTicketStatusChanged, ReferenceTypeTicket, ticket.ID, newTicketEvent(ticket, from))
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// AttachToTicket uploads a file for a ticket. Images also get a thumbnail.
func AttachToTicket(ctx context.Context, store utils.ObjectStorage, id int, fileName string, data []byte) (*ITTicket, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ticket, err := GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status.IsTerminal() {
		return nil, errors.New("ticket is closed")
	}
	mimeType, err := utils.DetectAttachmentType(fileName, data)
	if err != nil {
		return nil, err
	}

	objectKey := path.Join(a.BusinessId, "tickets", ticket.TicketNumber, uuid.NewString()+path.Ext(fileName))
	url, err := store.Put(ctx, objectKey, data, mimeType)
	if err != nil {
		return nil, err
	}
	thumbnailUrl := ""
	if utils.IsImageType(mimeType) {
		thumb, err := utils.MakeThumbnail(data)
		if err != nil {
			return nil, err
		}
		thumbnailUrl, err = store.Put(ctx, utils.ThumbnailObjectKey(objectKey), thumb, "image/jpeg")
		if err != nil {
			return nil, err
		}
	}

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ITTicket{}).Where("business_id = ? AND id = ?", a.BusinessId, id).
			Updates(map[string]interface{}{"attachment_url": url, "thumbnail_url": thumbnailUrl}).Error; err != nil {
			return err
		}
		return createActivity(tx, nil, ActionAttachment, ReferenceTypeTicket, ticket.ID, nil,
			map[string]interface{}{"attachment_url": url},
			fmt.Sprintf("File %s attached to ticket %s.", path.Base(fileName), ticket.TicketNumber))
	})
	if err != nil {
		return nil, err
	}
	ticket.AttachmentUrl = url
	ticket.ThumbnailUrl = thumbnailUrl
	return ticket, nil
}

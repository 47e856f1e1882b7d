package models

import "fmt"

type UserRole string

const (
	UserRoleAdmin          UserRole = "Admin"
	UserRoleOwner          UserRole = "Owner"
	UserRoleAccountManager UserRole = "AccountManager"
	UserRoleTeamLeader     UserRole = "TeamLeader"
	UserRoleSupervisor     UserRole = "Supervisor"
	UserRoleAgent          UserRole = "Agent"
	UserRoleQC             UserRole = "QC"
	UserRoleCloser         UserRole = "Closer"
	UserRoleClient         UserRole = "Client"
	UserRoleIT             UserRole = "IT"
	UserRoleMarketing      UserRole = "Marketing"
	UserRoleFinance        UserRole = "Finance"
	UserRoleOperations     UserRole = "Operations"
	UserRoleHR             UserRole = "HR"
)

var allUserRoles = []UserRole{
	UserRoleAdmin, UserRoleOwner, UserRoleAccountManager, UserRoleTeamLeader,
	UserRoleSupervisor, UserRoleAgent, UserRoleQC, UserRoleCloser, UserRoleClient,
	UserRoleIT, UserRoleMarketing, UserRoleFinance, UserRoleOperations, UserRoleHR,
}

func (r UserRole) IsValid() bool {
	for _, v := range allUserRoles {
		if v == r {
			return true
		}
	}
	return false
}

// IsManager covers roles that administer a business's pipeline and campaigns.
func (r UserRole) IsManager() bool {
	return r == UserRoleAdmin || r == UserRoleOwner || r == UserRoleAccountManager
}

// Staff roles that work leads.
var (
	LeadWorkerRoles = []UserRole{
		UserRoleAdmin, UserRoleOwner, UserRoleAccountManager, UserRoleTeamLeader,
		UserRoleSupervisor, UserRoleAgent, UserRoleQC, UserRoleCloser,
	}
	PipelineRoles = []UserRole{
		UserRoleAdmin, UserRoleOwner, UserRoleAccountManager, UserRoleTeamLeader,
		UserRoleSupervisor, UserRoleCloser, UserRoleAgent,
	}
	QualifierRoles = []UserRole{UserRoleAdmin, UserRoleOwner, UserRoleAccountManager, UserRoleQC}
	ManagerRoles   = []UserRole{UserRoleAdmin, UserRoleOwner, UserRoleAccountManager}
	ITRoles        = []UserRole{UserRoleAdmin, UserRoleIT}
)

type QualificationStatus string

const (
	QualificationStatusNew          QualificationStatus = "New"
	QualificationStatusUnderReview  QualificationStatus = "UnderReview"
	QualificationStatusCallback     QualificationStatus = "Callback"
	QualificationStatusQualified    QualificationStatus = "Qualified"
	QualificationStatusDisqualified QualificationStatus = "Disqualified"
)

var qualificationTransitions = map[QualificationStatus][]QualificationStatus{
	QualificationStatusNew:          {QualificationStatusUnderReview, QualificationStatusCallback, QualificationStatusDisqualified},
	QualificationStatusCallback:     {QualificationStatusUnderReview, QualificationStatusDisqualified},
	QualificationStatusUnderReview:  {QualificationStatusQualified, QualificationStatusDisqualified, QualificationStatusCallback},
	QualificationStatusDisqualified: {QualificationStatusUnderReview},
}

func (s QualificationStatus) CanTransitionTo(next QualificationStatus) bool {
	for _, v := range qualificationTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "Pending"
	TaskStatusCompleted TaskStatus = "Completed"
)

type TicketStatus string

const (
	TicketStatusPending     TicketStatus = "Pending"
	TicketStatusUnderReview TicketStatus = "UnderReview"
	TicketStatusSolved      TicketStatus = "Solved"
	TicketStatusNotSolved   TicketStatus = "NotSolved"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:     {TicketStatusUnderReview},
	TicketStatusUnderReview: {TicketStatusSolved, TicketStatusNotSolved},
}

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, v := range ticketTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusSolved || s == TicketStatusNotSolved
}

type TicketCategory string

const (
	TicketCategoryHardware TicketCategory = "Hardware"
	TicketCategorySoftware TicketCategory = "Software"
	TicketCategoryNetwork  TicketCategory = "Network"
	TicketCategoryAccess   TicketCategory = "Access"
	TicketCategoryOther    TicketCategory = "Other"
)

func (c TicketCategory) Validate() error {
	switch c {
	case TicketCategoryHardware, TicketCategorySoftware, TicketCategoryNetwork, TicketCategoryAccess, TicketCategoryOther:
		return nil
	}
	return fmt.Errorf("invalid ticket category %q", string(c))
}

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
	TicketPriorityUrgent TicketPriority = "Urgent"
)

func (p TicketPriority) Validate() error {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return nil
	}
	return fmt.Errorf("invalid ticket priority %q", string(p))
}

// activity action types
const (
	ActionCreate     = "CREATE"
	ActionUpdate     = "UPDATE"
	ActionDelete     = "DELETE"
	ActionAssign     = "ASSIGN"
	ActionQualify    = "QUALIFY"
	ActionStageMove  = "STAGE_MOVE"
	ActionComplete   = "COMPLETE"
	ActionReopen     = "REOPEN"
	ActionStatus     = "STATUS"
	ActionAttachment = "ATTACH"
	ActionImport     = "IMPORT"
)

// reference types used by activity, comments and outbox rows
const (
	ReferenceTypeLead     = "leads"
	ReferenceTypeTask     = "tasks"
	ReferenceTypeStage    = "pipeline_stages"
	ReferenceTypeTicket   = "it_tickets"
	ReferenceTypeCampaign = "campaigns"
)

// outbox event types
const (
	EventLeadCreated         = "lead.created"
	EventLeadQualified       = "lead.qualified"
	EventLeadAssigned        = "lead.assigned"
	EventLeadStageChanged    = "lead.stage_changed"
	EventTaskCompleted       = "task.completed"
	EventTicketCreated       = "ticket.created"
	EventTicketStatusChanged = "ticket.status_changed"
)

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/directives"
	"github.com/mmdatafocus/leads_backend/middlewares"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Logger *logrus.Logger
	// Storage receives ticket attachments; nil disables uploads.
	Storage utils.ObjectStorage
	// IntakeLimiter, when set, runs in front of the public intake endpoint.
	IntakeLimiter gin.HandlerFunc
}

// RegisterRoutes mounts the REST API. The session middleware must already be installed on r.
func RegisterRoutes(r gin.IRouter, opts Options) {
	r.GET("/healthz", Healthz)
	r.POST("/login", Login)
	r.POST("/pubsub", PubSubPush(opts.Logger))

	intake := []gin.HandlerFunc{middlewares.IntakeAuthMiddleware()}
	if opts.IntakeLimiter != nil {
		intake = append([]gin.HandlerFunc{opts.IntakeLimiter}, intake...)
	}
	r.POST("/intake/leads", append(intake, IntakeLead)...)

	api := r.Group("/api", directives.Auth())
	api.POST("/logout", Logout)
	api.GET("/business", CurrentBusiness)
	api.GET("/users", ListUsers)
	api.GET("/users/:id", GetUser)

	managers := directives.HasRole(models.ManagerRoles...)
	api.GET("/teams", ListTeams)
	api.GET("/teams/:id", GetTeam)
	api.GET("/teams/:id/members", ListTeamMembers)
	api.POST("/teams", managers, CreateTeam)
	api.PUT("/teams/:id", managers, UpdateTeam)
	api.GET("/positions", ListPositions)
	api.POST("/positions", managers, CreatePosition)

	api.GET("/campaigns", ListCampaigns)
	api.GET("/campaigns/:id", GetCampaign)
	api.GET("/campaigns/:id/progress", GetCampaignProgress)
	api.POST("/campaigns/:id/intake-token", managers, IssueIntakeToken)

	workers := directives.HasRole(models.LeadWorkerRoles...)
	api.POST("/leads", workers, CreateLead)
	api.POST("/leads/import", directives.HasRole(models.UserRoleAdmin, models.UserRoleOwner, models.UserRoleAccountManager, models.UserRoleTeamLeader), ImportLeads)
	api.GET("/leads", ListLeads)
	api.GET("/leads/:id", GetLead)
	api.PUT("/leads/:id", workers, UpdateLead)
	api.PATCH("/leads/:id/assign", workers, AssignLead)
	api.POST("/leads/:id/submit-review", workers, SubmitForReview)
	api.POST("/leads/:id/qualify", directives.HasRole(models.QualifierRoles...), QualifyLead)
	api.PATCH("/leads/:id/stage", directives.HasRole(models.PipelineRoles...), MoveLeadStage)
	api.GET("/leads/:id/activity", ListLeadActivity)
	api.GET("/leads/:id/tasks", ListLeadTasks)
	api.POST("/leads/:id/tasks", workers, CreateTask)

	pipelineAdmins := directives.HasRole(models.UserRoleAdmin, models.UserRoleOwner)
	api.GET("/pipeline/stages", ListPipelineStages)
	api.GET("/pipeline/stages/all", ListAllPipelineStages)
	api.GET("/pipeline/board", PipelineBoard)
	api.POST("/pipeline/stages", pipelineAdmins, CreatePipelineStage)
	api.PUT("/pipeline/stages/order", pipelineAdmins, ReorderPipelineStages)
	api.PUT("/pipeline/stages/:id", pipelineAdmins, UpdatePipelineStage)
	api.DELETE("/pipeline/stages/:id", pipelineAdmins, DeletePipelineStage)
	api.GET("/pipeline/stages/:id/templates", ListStageTaskTemplates)
	api.POST("/pipeline/stages/:id/templates", pipelineAdmins, CreateStageTaskTemplate)
	api.DELETE("/pipeline/templates/:id", pipelineAdmins, DeleteStageTaskTemplate)

	api.GET("/tasks/mine", ListMyTasks)
	api.PUT("/tasks/:id", workers, UpdateTask)
	api.POST("/tasks/:id/complete", workers, CompleteTask)
	api.POST("/tasks/:id/reopen", workers, ReopenTask)
	api.DELETE("/tasks/:id", workers, DeleteTask)

	api.GET("/activity", ListActivity)
	api.GET("/comments", ListComments)
	api.POST("/comments", CreateComment)
	api.DELETE("/comments/:id", DeleteComment)

	itStaff := directives.HasRole(models.ITRoles...)
	api.POST("/tickets", CreateTicket)
	api.GET("/tickets", ListTickets)
	api.GET("/tickets/:id", GetTicket)
	api.PATCH("/tickets/:id/assign", itStaff, AssignTicket)
	api.POST("/tickets/:id/review", itStaff, StartTicketReview)
	api.POST("/tickets/:id/resolve", itStaff, ResolveTicket)
	api.POST("/tickets/:id/attachments", AttachToTicket(opts.Storage))

	api.GET("/notifications", ListNotifications)
	api.POST("/notifications/:id/read", MarkNotificationRead)

	admins := directives.HasRole(models.UserRoleAdmin)
	api.GET("/outbox", admins, ListOutboxMessages)
	api.POST("/outbox/:id/replay", admins, ReplayOutboxMessage)
}

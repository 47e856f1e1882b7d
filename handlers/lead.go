package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/middlewares"
	"github.com/mmdatafocus/leads_backend/models"
)

const maxImportBytes = 10 << 20

// leadView is a lead with the names the list and detail screens show.
type leadView struct {
	*models.Lead
	CampaignName     string `json:"campaign_name"`
	StageName        string `json:"stage_name,omitempty"`
	AssignedUserName string `json:"assigned_user_name,omitempty"`
}

// viewsFor resolves stage, campaign and assignee names through the request loaders,
// one batch per kind.
func viewsFor(ctx context.Context, leads []*models.Lead) []*leadView {
	loaders := middlewares.For(ctx)
	var stageIds, campaignIds, userIds []int
	for _, l := range leads {
		campaignIds = append(campaignIds, l.CampaignId)
		if l.StageId != nil {
			stageIds = append(stageIds, *l.StageId)
		}
		if l.AssignedUserId != nil {
			userIds = append(userIds, *l.AssignedUserId)
		}
	}
	stageThunk := loaders.StageLoader.LoadMany(ctx, stageIds)
	campaignThunk := loaders.CampaignLoader.LoadMany(ctx, campaignIds)
	userThunk := loaders.UserLoader.LoadMany(ctx, userIds)

	stageNames := map[int]string{}
	if stages, _ := stageThunk(); stages != nil {
		for _, s := range stages {
			if s != nil {
				stageNames[s.ID] = s.Name
			}
		}
	}
	campaignNames := map[int]string{}
	if campaigns, _ := campaignThunk(); campaigns != nil {
		for _, cmp := range campaigns {
			if cmp != nil {
				campaignNames[cmp.ID] = cmp.Name
			}
		}
	}
	userNames := map[int]string{}
	if users, _ := userThunk(); users != nil {
		for _, u := range users {
			if u != nil {
				userNames[u.ID] = u.Name
			}
		}
	}

	views := make([]*leadView, 0, len(leads))
	for _, l := range leads {
		v := &leadView{Lead: l, CampaignName: campaignNames[l.CampaignId]}
		if l.StageId != nil {
			v.StageName = stageNames[*l.StageId]
		}
		if l.AssignedUserId != nil {
			v.AssignedUserName = userNames[*l.AssignedUserId]
		}
		views = append(views, v)
	}
	return views
}

func renderLead(c *gin.Context, status int, lead *models.Lead) {
	c.JSON(status, viewsFor(c.Request.Context(), []*models.Lead{lead})[0])
}

func CreateLead(c *gin.Context) {
	var input models.NewLead
	if !bindJSON(c, &input) {
		return
	}
	if input.Source == "" {
		input.Source = "manual"
	}
	lead, err := models.CreateLead(c.Request.Context(), &input)
	if err != nil {
		renderError(c, err)
		return
	}
	renderLead(c, http.StatusCreated, lead)
}

func ImportLeads(c *gin.Context) {
	campaignId, err := strconv.Atoi(c.PostForm("campaign_id"))
	if err != nil || campaignId <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id is required"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxImportBytes {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
		return
	}
	f, err := file.Open()
	if err != nil {
		renderError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImportBytes))
	if err != nil {
		renderError(c, err)
		return
	}

	result, err := models.ImportLeads(c.Request.Context(), campaignId, bytes.NewReader(data))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type leadPage struct {
	Edges    []*leadView      `json:"edges"`
	PageInfo *models.PageInfo `json:"pageInfo"`
}

func ListLeads(c *gin.Context) {
	var filter models.LeadFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		renderError(c, err)
		return
	}
	limit, after := pageArgs(c)
	conn, err := models.PaginateLeads(c.Request.Context(), limit, after, &filter)
	if err != nil {
		renderError(c, err)
		return
	}
	leads := make([]*models.Lead, 0, len(conn.Edges))
	for _, e := range conn.Edges {
		leads = append(leads, e.Node)
	}
	c.JSON(http.StatusOK, leadPage{Edges: viewsFor(c.Request.Context(), leads), PageInfo: conn.PageInfo})
}

func GetLead(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	lead, err := models.GetLead(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	renderLead(c, http.StatusOK, lead)
}

func UpdateLead(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.LeadDetails
	if !bindJSON(c, &input) {
		return
	}
	lead, err := models.UpdateLead(c.Request.Context(), id, &input)
	if err != nil {
		renderError(c, err)
		return
	}
	renderLead(c, http.StatusOK, lead)
}

type assignRequest struct {
	UserId *int `json:"user_id"`
}

func AssignLead(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !bindJSON(c, &req) {
		return
	}
	lead, err := models.AssignLead(c.Request.Context(), id, req.UserId)
	if err != nil {
		renderError(c, err)
		return
	}
	renderLead(c, http.StatusOK, lead)
}

func SubmitForReview(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	lead, err := models.SubmitForReview(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	renderLead(c, http.StatusOK, lead)
}

func QualifyLead(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.QualifyInput
	if !bindJSON(c, &input) {
		return
	}
	lead, err := models.QualifyLead(c.Request.Context(), id, &input)
	if err != nil {
		renderError(c, err)
		return
	}
	renderLead(c, http.StatusOK, lead)
}

type moveStageRequest struct {
	StageId int `json:"stage_id" binding:"required"`
}

func MoveLeadStage(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var req moveStageRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := models.MoveLeadStage(c.Request.Context(), id, req.StageId)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func ListLeadActivity(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	list, err := models.ListLeadActivity(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

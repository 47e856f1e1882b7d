package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/models"
)

func ListPipelineStages(c *gin.Context) {
	list, err := models.ListPipelineStages(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func ListAllPipelineStages(c *gin.Context) {
	list, err := models.ListAllPipelineStages(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func PipelineBoard(c *gin.Context) {
	var campaignId *int
	if v := c.Query("campaign_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid campaign_id"})
			return
		}
		campaignId = &id
	}
	board, err := models.PipelineBoard(c.Request.Context(), campaignId)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func CreatePipelineStage(c *gin.Context) {
	var input models.NewPipelineStage
	if !bindJSON(c, &input) {
		return
	}
	stage, err := models.CreatePipelineStage(c.Request.Context(), &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stage)
}

func UpdatePipelineStage(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewPipelineStage
	if !bindJSON(c, &input) {
		return
	}
	stage, err := models.UpdatePipelineStage(c.Request.Context(), id, &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

type reorderRequest struct {
	Ids []int `json:"ids" binding:"required"`
}

func ReorderPipelineStages(c *gin.Context) {
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	list, err := models.ReorderPipelineStages(c.Request.Context(), req.Ids)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func DeletePipelineStage(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	stage, err := models.DeletePipelineStage(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

func ListStageTaskTemplates(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	list, err := models.ListStageTaskTemplates(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func CreateStageTaskTemplate(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewStageTaskTemplate
	if !bindJSON(c, &input) {
		return
	}
	tmpl, err := models.CreateStageTaskTemplate(c.Request.Context(), id, &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func DeleteStageTaskTemplate(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	tmpl, err := models.DeleteStageTaskTemplate(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

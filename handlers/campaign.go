package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/models"
)

func ListCampaigns(c *gin.Context) {
	list, err := models.ListCampaigns(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func GetCampaign(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	campaign, err := models.GetCampaign(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func GetCampaignProgress(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	progress, err := models.GetCampaignProgress(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func IssueIntakeToken(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	token, err := models.IssueIntakeToken(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
)

// IntakeLead accepts a public form submission. The campaign comes from the intake token.
func IntakeLead(c *gin.Context) {
	campaignId, ok := utils.GetCampaignIdFromContext(c.Request.Context())
	if !ok || campaignId <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access Denied"})
		return
	}
	var details models.LeadDetails
	if !bindJSON(c, &details) {
		return
	}
	lead, err := models.CreateLead(c.Request.Context(), &models.NewLead{
		CampaignId:  campaignId,
		Source:      "web_form",
		LeadDetails: details,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": lead.ID, "qualification_status": lead.QualificationStatus})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
)

// ListUsers lists active users; ?role=Agent,Closer narrows by role.
func ListUsers(c *gin.Context) {
	roles := make([]models.UserRole, 0)
	for _, r := range utils.SplitAndTrim(c.Query("role")) {
		role := models.UserRole(r)
		if !role.IsValid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role " + r})
			return
		}
		roles = append(roles, role)
	}
	list, err := models.ListUsers(c.Request.Context(), roles...)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func GetUser(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	user, err := models.GetUser(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func CurrentBusiness(c *gin.Context) {
	businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
	business, err := models.GetBusiness(c.Request.Context(), businessId)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, business)
}

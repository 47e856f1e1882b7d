package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, utils.ErrorForbidden),
		errors.Is(err, models.ErrInvalidAssignee):
		return http.StatusForbidden
	case errors.Is(err, models.ErrDuplicateLead):
		return http.StatusConflict
	case errors.Is(err, models.ErrStageGateBlocked),
		errors.Is(err, models.ErrLeadNotInPipeline),
		errors.Is(err, models.ErrInvalidQualificationTransition),
		errors.Is(err, models.ErrInvalidTicketTransition),
		errors.Is(err, models.ErrResolutionRequired),
		errors.Is(err, models.ErrSystemStage),
		errors.Is(err, models.ErrStageInUse),
		errors.Is(err, models.ErrInvalidStageOrder),
		errors.Is(err, models.ErrCampaignInactive):
		return http.StatusUnprocessableEntity
	}
	if models.IsDuplicateKeyErr(err) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// renderError writes err as {"error": message}; binding errors carry a field map.
func renderError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": utils.ProcessValidationErrors(err),
		})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func paramId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		renderError(c, err)
		return false
	}
	return true
}

// pageArgs reads ?limit=&after= for cursor pagination.
func pageArgs(c *gin.Context) (int, *string) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	var after *string
	if v := c.Query("after"); v != "" {
		after = &v
	}
	return limit, after
}

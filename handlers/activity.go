package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/models"
)

func ListActivity(c *gin.Context) {
	var filter models.ActivityFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		renderError(c, err)
		return
	}
	limit, after := pageArgs(c)
	conn, err := models.PaginateActivity(c.Request.Context(), limit, after, &filter)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func ListComments(c *gin.Context) {
	refId, err := strconv.Atoi(c.Query("reference_id"))
	if err != nil || c.Query("reference_type") == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reference_type and reference_id are required"})
		return
	}
	list, err := models.ListComments(c.Request.Context(), c.Query("reference_type"), refId)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func CreateComment(c *gin.Context) {
	var input models.NewComment
	if !bindJSON(c, &input) {
		return
	}
	comment, err := models.CreateComment(c.Request.Context(), &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func DeleteComment(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	comment, err := models.DeleteComment(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func ListNotifications(c *gin.Context) {
	list, err := models.ListNotifications(c.Request.Context(), c.Query("unread") == "true")
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func MarkNotificationRead(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	n, err := models.MarkNotificationRead(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func ListOutboxMessages(c *gin.Context) {
	refId, err := strconv.Atoi(c.Query("reference_id"))
	if err != nil || c.Query("reference_type") == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reference_type and reference_id are required"})
		return
	}
	list, err := models.ListOutboxMessages(c.Request.Context(), c.Query("reference_type"), refId)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func ReplayOutboxMessage(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	msg, err := models.ReplayOutboxMessage(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

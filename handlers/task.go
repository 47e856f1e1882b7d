package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/models"
)

func ListLeadTasks(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var stageId *int
	if v := c.Query("stage_id"); v != "" {
		sid, err := strconv.Atoi(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid stage_id"})
			return
		}
		stageId = &sid
	}
	list, err := models.ListLeadTasks(c.Request.Context(), id, stageId)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func CreateTask(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewTask
	if !bindJSON(c, &input) {
		return
	}
	task, err := models.CreateTask(c.Request.Context(), id, &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func ListMyTasks(c *gin.Context) {
	var status *models.TaskStatus
	if v := c.Query("status"); v != "" {
		s := models.TaskStatus(v)
		status = &s
	}
	list, err := models.ListMyTasks(c.Request.Context(), status)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func UpdateTask(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewTask
	if !bindJSON(c, &input) {
		return
	}
	task, err := models.UpdateTask(c.Request.Context(), id, &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func CompleteTask(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	task, err := models.CompleteTask(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func ReopenTask(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	task, err := models.ReopenTask(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func DeleteTask(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	task, err := models.DeleteTask(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/models"
)

type positionInput struct {
	Name string `json:"name" binding:"required,max=100"`
}

func ListTeams(c *gin.Context) {
	list, err := models.ListTeams(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func GetTeam(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	team, err := models.GetTeam(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func CreateTeam(c *gin.Context) {
	var input models.TeamInput
	if !bindJSON(c, &input) {
		return
	}
	team, err := models.CreateTeam(c.Request.Context(), input.Name, input.LeaderId)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func UpdateTeam(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.TeamInput
	if !bindJSON(c, &input) {
		return
	}
	team, err := models.UpdateTeam(c.Request.Context(), id, &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func ListTeamMembers(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	members, err := models.ListTeamMembers(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func ListPositions(c *gin.Context) {
	list, err := models.ListPositions(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func CreatePosition(c *gin.Context) {
	var input positionInput
	if !bindJSON(c, &input) {
		return
	}
	position, err := models.CreatePosition(c.Request.Context(), input.Name)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, position)
}

package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
)

func CreateTicket(c *gin.Context) {
	var input models.NewITTicket
	if !bindJSON(c, &input) {
		return
	}
	ticket, err := models.CreateTicket(c.Request.Context(), &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func ListTickets(c *gin.Context) {
	var filter models.TicketFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		renderError(c, err)
		return
	}
	limit, after := pageArgs(c)
	conn, err := models.PaginateTickets(c.Request.Context(), limit, after, &filter)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func GetTicket(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	ticket, err := models.GetTicket(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

type assignTicketRequest struct {
	AssigneeId int `json:"assignee_id" binding:"required"`
}

func AssignTicket(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var req assignTicketRequest
	if !bindJSON(c, &req) {
		return
	}
	ticket, err := models.AssignTicket(c.Request.Context(), id, req.AssigneeId)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func StartTicketReview(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	ticket, err := models.StartTicketReview(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func ResolveTicket(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.ResolveTicketInput
	if !bindJSON(c, &input) {
		return
	}
	ticket, err := models.ResolveTicket(c.Request.Context(), id, &input)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// AttachToTicket takes a multipart "file" and stores it in store.
// A nil store means uploads are not configured.
func AttachToTicket(store utils.ObjectStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		if store == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "attachments are not configured"})
			return
		}
		file, err := c.FormFile("file")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if file.Size > utils.MaxAttachmentBytes {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		f, err := file.Open()
		if err != nil {
			renderError(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, utils.MaxAttachmentBytes))
		if err != nil {
			renderError(c, err)
			return
		}

		ticket, err := models.AttachToTicket(c.Request.Context(), store, id, file.Filename, data)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, ticket)
	}
}

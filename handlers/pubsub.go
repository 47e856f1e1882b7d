package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/mmdatafocus/leads_backend/workflow"
	"github.com/sirupsen/logrus"
)

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PubSubPush handles Pub/Sub push deliveries of outbox events.
// Malformed messages are acked with 204 so they are not redelivered forever;
// processing failures return 500 so Pub/Sub retries.
func PubSubPush(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "pubsub.go", "PubSubPush", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "pubsub.go", "PubSubPush", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var m config.EventMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "pubsub.go", "PubSubPush", "Unmarshal event", string(msg.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if m.BusinessId == "" || m.EventType == "" {
			config.LogError(logger, "pubsub.go", "PubSubPush", "Invalid event", m, fmt.Errorf("business_id/event_type required"))
			c.Status(http.StatusNoContent)
			return
		}

		correlationId := m.CorrelationId
		if correlationId == "" {
			correlationId = msg.Message.ID
		}
		ctx := utils.WithActor(c.Request.Context(), m.BusinessId, 0, "System")
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)

		lock := config.ObtainLock(ctx, fmt.Sprintf("lock:event:%s", m.BusinessId), 30*time.Second)
		defer config.ReleaseLock(ctx, lock)

		if err := workflow.ProcessEvent(ctx, logger, m, msg.Message.ID); err != nil {
			fields := logrus.Fields{
				"field":          "PubSubPush",
				"business_id":    m.BusinessId,
				"event_type":     m.EventType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationId,
			}
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				logger.WithFields(fields).Warn("event is being processed elsewhere; asking for redelivery")
			} else {
				logger.WithFields(fields).Error("pubsub processing failed: " + err.Error())
			}
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func Healthz(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if db := config.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
	}
	status["redis"] = config.GetRedisDB() != nil
	c.JSON(http.StatusOK, status)
}

package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/sirupsen/logrus"
)

// IntakeUserName is recorded as the actor for leads submitted through public forms.
const IntakeUserName = "Web Form"

// IntakeAuthMiddleware accepts `Authorization: Bearer <intake token>` and binds the
// request to the token's business and campaign.
func IntakeAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := utils.ValidateIntakeToken(strings.TrimSpace(auth[len(bearer):]))
		if err != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"field":     "IntakeAuthMiddleware",
				"client_ip": c.ClientIP(),
			}).Warn("rejected intake token: " + err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.WithActor(c.Request.Context(), claims.BusinessId, 0, IntakeUserName)
		ctx = utils.SetCampaignIdInContext(ctx, claims.CampaignId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

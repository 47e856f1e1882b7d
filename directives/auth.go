package directives

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/sirupsen/logrus"
)

// Auth requires a session user. With roles given, the user's role must be one of them.
// The user's tenant, id, name and role are put on the request context.
func Auth(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		username, ok := utils.GetUsernameFromContext(ctx)
		if !ok || username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access Denied"})
			return
		}

		user, err := models.GetSessionUser(ctx, username)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				// destroy current session if user has been deleted
				_ = models.Logout(ctx)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access Denied"})
				return
			}
			config.LogError(config.GetLogger(), "auth.go", "Auth", "GetSessionUser", username, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !utils.DereferencePtr(user.IsActive) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "User is disabled"})
			return
		}
		if len(roles) > 0 && !hasRole(user.Role, roles) {
			config.GetLogger().WithFields(logrus.Fields{
				"field":    "Auth",
				"username": username,
				"role":     user.Role,
				"path":     c.FullPath(),
			}).Info("role not allowed")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": utils.ErrorForbidden.Error()})
			return
		}

		ctx = utils.WithActor(ctx, user.BusinessId, user.ID, user.Name)
		ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func hasRole(role models.UserRole, allowed []models.UserRole) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// HasRole narrows a route already behind Auth to the given roles.
func HasRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c.Request.Context())
		if !hasRole(models.UserRole(role), roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": utils.ErrorForbidden.Error()})
			return
		}
		c.Next()
	}
}

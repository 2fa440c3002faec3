package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/idest-edu/assignment-gateway/internal/identity"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

// AuthMiddleware resolves the bearer token into a user id and stores it
// in the request context as "user_id".
func AuthMiddleware(resolver identity.Resolver, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing or malformed Authorization header",
			})
			return
		}

		userID, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			logger.Warn("Token rejected", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

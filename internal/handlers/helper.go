package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/idest-edu/assignment-gateway/internal/models"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// ParseSkillParam reads and validates the :skill path segment. Responds
// with 400 and returns "" when the segment is not a known skill.
func ParseSkillParam(c *gin.Context) models.Skill {
	skill := models.Skill(strings.ToLower(strings.TrimSpace(c.Param("skill"))))
	if !skill.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid skill",
			Details: "skill must be one of reading, listening, writing, speaking",
		})
		return ""
	}
	return skill
}

// ParsePaginationQuery reads page/limit query params, nil when absent.
func ParsePaginationQuery(c *gin.Context) *models.Pagination {
	pageStr := c.Query("page")
	limitStr := c.Query("limit")
	if pageStr == "" && limitStr == "" {
		return nil
	}

	page := &models.Pagination{Page: 1, Limit: 20}
	if n, err := strconv.Atoi(pageStr); err == nil && n > 0 {
		page.Page = n
	}
	if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
		page.Limit = n
	}
	return page
}

// CurrentUserID returns the authenticated user id, responding with 401
// when the auth middleware did not set one.
func CurrentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

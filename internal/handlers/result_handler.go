package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/services"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

type ResultHandler struct {
	BaseHandler
	resultService services.ResultService
}

func NewResultHandler(resultService services.ResultService, logger utils.Logger) *ResultHandler {
	return &ResultHandler{
		BaseHandler:   NewBaseHandler(logger),
		resultService: resultService,
	}
}

func (h *ResultHandler) ListAssignments(c *gin.Context) {
	skill := ParseSkillParam(c)
	if skill == "" {
		return
	}

	listing, err := h.resultService.ListAssignments(c.Request.Context(), skill, ParsePaginationQuery(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *ResultHandler) ListMySubmissions(c *gin.Context) {
	if _, ok := CurrentUserID(c); !ok {
		return
	}
	// Optional filter; empty means every skill.
	skill := models.Skill(c.Query("skill"))
	if skill != "" && !skill.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid skill"})
		return
	}

	listing, err := h.resultService.ListMySubmissions(c.Request.Context(), skill, ParsePaginationQuery(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// GetReview returns the graded review for a submission
// @Summary Get submission review
// @Description Returns the graded result joined with the assignment content
// @Tags results
// @Produce json
// @Param skill path string true "Skill"
// @Param assignment_id path string true "Assignment ID"
// @Param submission_id path string true "Submission ID"
// @Success 200 {object} result.Review
// @Failure 404 {object} ErrorResponse
// @Router /results/{skill}/{assignment_id}/{submission_id} [get]
func (h *ResultHandler) GetReview(c *gin.Context) {
	skill := ParseSkillParam(c)
	if skill == "" {
		return
	}
	assignmentID := ParseStringIDParam(c, "assignment_id")
	if assignmentID == "" {
		return
	}
	submissionID := ParseStringIDParam(c, "submission_id")
	if submissionID == "" {
		return
	}

	review, err := h.resultService.GetReview(c.Request.Context(), skill, assignmentID, submissionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// ExportReview downloads the review as a spreadsheet.
func (h *ResultHandler) ExportReview(c *gin.Context) {
	skill := ParseSkillParam(c)
	if skill == "" {
		return
	}
	assignmentID := ParseStringIDParam(c, "assignment_id")
	if assignmentID == "" {
		return
	}
	submissionID := ParseStringIDParam(c, "submission_id")
	if submissionID == "" {
		return
	}

	data, err := h.resultService.ExportReview(c.Request.Context(), skill, assignmentID, submissionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("result_%s_%s.xlsx", skill, submissionID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GradingNotice reports and clears the pending-grading notice for the
// current user. The notice shows at most once after a writing or speaking
// submission.
func (h *ResultHandler) GradingNotice(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	queued, err := h.resultService.ConsumeGradingNotice(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grading_queued": queued})
}

func (h *ResultHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Submission not found"})
	case errors.Is(err, services.ErrAssignmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Assignment not found"})
	case errors.Is(err, services.ErrSubmissionNotGraded):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Submission is not graded yet"})
	default:
		h.LogError(c, err, "Result operation failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Content backend unavailable"})
	}
}

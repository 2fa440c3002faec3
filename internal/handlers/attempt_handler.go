package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/idest-edu/assignment-gateway/internal/attempt"
	"github.com/idest-edu/assignment-gateway/internal/recorder"
	"github.com/idest-edu/assignment-gateway/internal/services"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *utils.Validator
}

type JumpToSectionRequest struct {
	SectionIndex int `json:"section_index" validate:"min=0"`
}

type FocusQuestionRequest struct {
	GlobalIndex int `json:"global_index" validate:"min=0"`
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *utils.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt opens a timed attempt on an assignment
// @Summary Start attempt
// @Description Starts (or resumes) a timed attempt on an assignment
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Assignment to attempt"
// @Success 201 {object} services.AttemptView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Starting attempt", "assignment_id", req.AssignmentID, "skill", req.Skill)

	view, err := h.attemptService.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	view, err := h.attemptService.Get(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	view, err := h.attemptService.Get(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attempt_id":             view.AttemptID,
		"time_remaining_seconds": view.TimeRemaining,
		"state":                  view.State,
	})
}

// SaveAnswer records one answer value
// @Summary Save answer
// @Description Saves the answer for a single question of a live attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param answer body services.SaveAnswerRequest true "Answer value"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/answer [post]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	var req services.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, userID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AttemptHandler) JumpToSection(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	var req JumpToSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	view, err := h.attemptService.JumpToSection(c.Request.Context(), attemptID, userID, req.SectionIndex)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AttemptHandler) AdvanceSection(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	view, err := h.attemptService.AdvanceSection(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AttemptHandler) FocusQuestion(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	var req FocusQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	view, err := h.attemptService.FocusQuestion(c.Request.Context(), attemptID, userID, req.GlobalIndex)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AttachRecording uploads one speaking part recording
// @Summary Attach recording
// @Description Attaches the recorded audio for one speaking part
// @Tags attempts
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Attempt ID"
// @Param part path int true "Speaking part (1..3)"
// @Param audio formData file true "Audio clip"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/recordings/{part} [post]
func (h *AttemptHandler) AttachRecording(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}
	part, err := strconv.Atoi(c.Param("part"))
	if err != nil || part < 1 || part > 3 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid speaking part",
			Details: "part must be 1, 2 or 3",
		})
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing audio file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.RespondInternal(c, err, "Failed to read audio upload")
		return
	}

	clip := &recorder.Clip{
		Name: header.Filename,
		MIME: header.Header.Get("Content-Type"),
		Data: data,
	}
	if err := h.attemptService.AttachRecording(c.Request.Context(), attemptID, userID, part, clip); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitAttempt finishes the attempt
// @Summary Submit attempt
// @Description Submits the attempt; at most one submission ever leaves an attempt
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} attempt.Outcome
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	outcome, err := h.attemptService.Submit(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	if err := h.attemptService.Abandon(c.Request.Context(), attemptID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BaseHandler) RespondInternal(c *gin.Context, err error, message string) {
	h.LogError(c, err, message)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: message})
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var incomplete *attempt.IncompleteError
	if errors.As(err, &incomplete) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Attempt is missing required content",
			Details: map[string]interface{}{"missing": incomplete.Missing},
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Attempt not found"})
	case errors.Is(err, services.ErrAssignmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Assignment not found"})
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt already submitted"})
	case errors.Is(err, services.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt is not active"})
	case errors.Is(err, services.ErrInvalidSpeakingPart):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid speaking part"})
	default:
		h.LogError(c, err, "Attempt operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

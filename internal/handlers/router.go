package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/idest-edu/assignment-gateway/internal/identity"
	"github.com/idest-edu/assignment-gateway/internal/services"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	resultHandler  *ResultHandler
	resolver       identity.Resolver
	logger         utils.Logger
}

func NewHandlerManager(
	attemptService services.AttemptService,
	resultService services.ResultService,
	resolver identity.Resolver,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(attemptService, validator, logger),
		resultHandler:  NewResultHandler(resultService, logger),
		resolver:       resolver,
		logger:         logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "assignment-gateway",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.resolver, hm.logger))
	{
		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
			attempts.POST("/:id/answer", hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/sections/jump", hm.attemptHandler.JumpToSection)
			attempts.POST("/:id/sections/advance", hm.attemptHandler.AdvanceSection)
			attempts.POST("/:id/focus", hm.attemptHandler.FocusQuestion)
			attempts.POST("/:id/recordings/:part", hm.attemptHandler.AttachRecording)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.DELETE("/:id", hm.attemptHandler.AbandonAttempt)
		}

		// Assignment listing routes
		assignments := v1.Group("/assignments")
		{
			assignments.GET("/:skill", hm.resultHandler.ListAssignments)
		}

		// Result routes
		results := v1.Group("/results")
		{
			results.GET("/mine", hm.resultHandler.ListMySubmissions)
			results.GET("/notice", hm.resultHandler.GradingNotice)
			results.GET("/:skill/:assignment_id/:submission_id", hm.resultHandler.GetReview)
			results.GET("/:skill/:assignment_id/:submission_id/export", hm.resultHandler.ExportReview)
		}
	}
}

package events

import (
	"time"

	"github.com/idest-edu/assignment-gateway/internal/models"
)

// EventType represents the submission lifecycle moments the gateway emits
type EventType string

const (
	EventAttemptStarted       EventType = "attempt.started"
	EventAttemptSubmitted     EventType = "attempt.submitted"
	EventAttemptAutoSubmitted EventType = "attempt.auto_submitted"
	EventAttemptAbandoned     EventType = "attempt.abandoned"
	EventGradingQueued        EventType = "grading.queued"
)

// AssignmentEvent is the base structure for all published events
type AssignmentEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type AttemptStartedEvent struct {
	AttemptID        string       `json:"attempt_id"`
	AssignmentID     string       `json:"assignment_id"`
	AssignmentTitle  string       `json:"assignment_title"`
	Skill            models.Skill `json:"skill"`
	UserID           string       `json:"user_id"`
	StartedAt        time.Time    `json:"started_at"`
	TimeLimitSeconds int          `json:"time_limit_seconds"`
}

type AttemptSubmittedEvent struct {
	AttemptID      string       `json:"attempt_id"`
	AssignmentID   string       `json:"assignment_id"`
	Skill          models.Skill `json:"skill"`
	UserID         string       `json:"user_id"`
	SubmissionID   string       `json:"submission_id"`
	SubmittedAt    time.Time    `json:"submitted_at"`
	AnsweredCount  int          `json:"answered_count"`
	TotalQuestions int          `json:"total_questions"`
	// "manual" or "timeout"
	Trigger string `json:"trigger"`
}

type AttemptAbandonedEvent struct {
	AttemptID    string       `json:"attempt_id"`
	AssignmentID string       `json:"assignment_id"`
	Skill        models.Skill `json:"skill"`
	UserID       string       `json:"user_id"`
	AbandonedAt  time.Time    `json:"abandoned_at"`
}

type GradingQueuedEvent struct {
	SubmissionID string       `json:"submission_id"`
	AssignmentID string       `json:"assignment_id"`
	Skill        models.Skill `json:"skill"`
	UserID       string       `json:"user_id"`
	QueuedAt     time.Time    `json:"queued_at"`
}

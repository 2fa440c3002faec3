package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/idest-edu/assignment-gateway/internal/attempt"
	"github.com/idest-edu/assignment-gateway/internal/backend"
	"github.com/idest-edu/assignment-gateway/internal/events"
	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/recorder"
	"github.com/idest-edu/assignment-gateway/internal/session"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

type StartAttemptRequest struct {
	Skill        models.Skill `json:"skill" validate:"required,skill"`
	AssignmentID string       `json:"assignment_id" validate:"required"`
}

type SaveAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     any    `json:"answer"`
}

// AttemptView is the attempt state returned to the caller. It carries the
// full assignment on start so subsequent requests stay light.
type AttemptView struct {
	AttemptID     string             `json:"attempt_id"`
	Assignment    *models.Assignment `json:"assignment,omitempty"`
	Skill         models.Skill       `json:"skill"`
	State         attempt.State      `json:"state"`
	StartedAt     time.Time          `json:"started_at"`
	TimeRemaining int                `json:"time_remaining_seconds"`
	ActiveSection int                `json:"active_section"`
	AnsweredCount int                `json:"answered_count"`
	TotalCount    int                `json:"total_count"`
	WordCounts    map[string]int     `json:"word_counts,omitempty"`
	Outcome       *attempt.Outcome   `json:"outcome,omitempty"`
}

type AttemptService interface {
	Start(ctx context.Context, req *StartAttemptRequest, userID string) (*AttemptView, error)
	Get(ctx context.Context, attemptID, userID string) (*AttemptView, error)
	SaveAnswer(ctx context.Context, attemptID, userID string, req *SaveAnswerRequest) error
	JumpToSection(ctx context.Context, attemptID, userID string, sectionIndex int) (*AttemptView, error)
	AdvanceSection(ctx context.Context, attemptID, userID string) (*AttemptView, error)
	FocusQuestion(ctx context.Context, attemptID, userID string, globalIndex int) (*AttemptView, error)
	AttachRecording(ctx context.Context, attemptID, userID string, part int, clip *recorder.Clip) error
	Submit(ctx context.Context, attemptID, userID string) (*attempt.Outcome, error)
	Abandon(ctx context.Context, attemptID, userID string) error
}

type attemptService struct {
	backend   backend.Client
	sessions  session.Store
	publisher events.EventPublisher
	logger    utils.Logger
	validator *utils.Validator

	mu       sync.RWMutex
	active   map[string]*attempt.Session
	byUserID map[string]string // userID+assignmentID -> attemptID
}

func NewAttemptService(
	backendClient backend.Client,
	sessions session.Store,
	publisher events.EventPublisher,
	logger utils.Logger,
	validator *utils.Validator,
) AttemptService {
	return &attemptService{
		backend:   backendClient,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		active:    make(map[string]*attempt.Session),
		byUserID:  make(map[string]string),
	}
}

func userAssignmentKey(userID, assignmentID string) string {
	return userID + ":" + assignmentID
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, userID string) (*AttemptView, error) {
	s.logger.Info("Starting assignment attempt",
		"assignment_id", req.AssignmentID,
		"skill", req.Skill,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// Resume an existing live attempt instead of opening a second timer
	// for the same assignment.
	s.mu.RLock()
	existingID, ok := s.byUserID[userAssignmentKey(userID, req.AssignmentID)]
	var existing *attempt.Session
	if ok {
		existing = s.active[existingID]
	}
	s.mu.RUnlock()
	if existing != nil {
		if existing.Coordinator.State() == attempt.StateInProgress {
			s.logger.Info("Resuming existing attempt", "attempt_id", existing.ID)
			return s.view(existing, true), nil
		}
		// Finished by the timer but never collected; clear it out.
		s.finish(ctx, existing)
	}

	assignment, err := s.backend.GetAssignment(ctx, req.Skill, req.AssignmentID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	sess := attempt.NewSession(assignment, userID, s.backend, s.sessions, s.publisher, s.logger)

	s.mu.Lock()
	s.active[sess.ID] = sess
	s.byUserID[userAssignmentKey(userID, req.AssignmentID)] = sess.ID
	s.mu.Unlock()

	sess.Start(context.Background())
	s.persistSnapshot(ctx, sess)

	event := events.NewEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID:        sess.ID,
		AssignmentID:     assignment.ID,
		AssignmentTitle:  assignment.Title,
		Skill:            assignment.Skill,
		UserID:           userID,
		StartedAt:        sess.StartedAt,
		TimeLimitSeconds: sess.Timer.Total(),
	})
	if err := s.publisher.PublishAssignmentEvent(ctx, event); err != nil {
		s.logger.LogError(err, "failed to publish attempt-started event", "attempt_id", sess.ID)
	}

	s.logger.Info("Assignment attempt started",
		"attempt_id", sess.ID,
		"assignment_id", assignment.ID,
		"duration_seconds", sess.Timer.Total())

	return s.view(sess, true), nil
}

func (s *attemptService) Get(ctx context.Context, attemptID, userID string) (*AttemptView, error) {
	sess, err := s.ownedSession(attemptID, userID)
	if err != nil {
		return nil, err
	}
	return s.view(sess, true), nil
}

func (s *attemptService) SaveAnswer(ctx context.Context, attemptID, userID string, req *SaveAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	sess, err := s.ownedSession(attemptID, userID)
	if err != nil {
		return err
	}
	if err := s.requireInProgress(sess); err != nil {
		return err
	}

	sess.Store.Update(req.QuestionID, req.Answer)
	s.persistSnapshot(ctx, sess)
	return nil
}

func (s *attemptService) JumpToSection(ctx context.Context, attemptID, userID string, sectionIndex int) (*AttemptView, error) {
	sess, err := s.ownedSession(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.requireInProgress(sess); err != nil {
		return nil, err
	}

	sess.Nav.JumpTo(sectionIndex)
	s.persistSnapshot(ctx, sess)
	return s.view(sess, false), nil
}

func (s *attemptService) AdvanceSection(ctx context.Context, attemptID, userID string) (*AttemptView, error) {
	sess, err := s.ownedSession(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.requireInProgress(sess); err != nil {
		return nil, err
	}

	sess.Nav.Advance()
	s.persistSnapshot(ctx, sess)
	return s.view(sess, false), nil
}

func (s *attemptService) FocusQuestion(ctx context.Context, attemptID, userID string, globalIndex int) (*AttemptView, error) {
	sess, err := s.ownedSession(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.requireInProgress(sess); err != nil {
		return nil, err
	}

	sess.Nav.Focus(globalIndex)
	return s.view(sess, false), nil
}

func (s *attemptService) AttachRecording(ctx context.Context, attemptID, userID string, part int, clip *recorder.Clip) error {
	sess, err := s.ownedSession(attemptID, userID)
	if err != nil {
		return err
	}
	if sess.Assignment.Skill != models.SkillSpeaking {
		return NewBusinessRuleError("recording_speaking_only",
			"recordings are only accepted on speaking attempts",
			map[string]interface{}{"skill": string(sess.Assignment.Skill)})
	}
	if err := s.requireInProgress(sess); err != nil {
		return err
	}
	if err := sess.Recordings.Set(part, clip); err != nil {
		return ErrInvalidSpeakingPart
	}
	s.logger.Info("Recording attached",
		"attempt_id", attemptID,
		"part", part,
		"size_bytes", len(clip.Data))
	return nil
}

func (s *attemptService) Submit(ctx context.Context, attemptID, userID string) (*attempt.Outcome, error) {
	sess, err := s.ownedSession(attemptID, userID)
	if err != nil {
		return nil, err
	}

	outcome, err := sess.Coordinator.Submit(ctx, attempt.TriggerManual)
	if err != nil {
		if errors.Is(err, attempt.ErrAlreadySubmitted) {
			// The timer may have beaten the click; surface the existing
			// outcome when there is one.
			if done := sess.Coordinator.Outcome(); done != nil {
				s.finish(ctx, sess)
				return done, nil
			}
			return nil, ErrAttemptAlreadySubmitted
		}
		return nil, err
	}

	s.finish(ctx, sess)
	return outcome, nil
}

func (s *attemptService) Abandon(ctx context.Context, attemptID, userID string) error {
	sess, err := s.ownedSession(attemptID, userID)
	if err != nil {
		return err
	}

	s.finish(ctx, sess)

	event := events.NewEvent(events.EventAttemptAbandoned, events.AttemptAbandonedEvent{
		AttemptID:    sess.ID,
		AssignmentID: sess.Assignment.ID,
		Skill:        sess.Assignment.Skill,
		UserID:       userID,
		AbandonedAt:  time.Now(),
	})
	if err := s.publisher.PublishAssignmentEvent(ctx, event); err != nil {
		s.logger.LogError(err, "failed to publish attempt-abandoned event", "attempt_id", sess.ID)
	}

	s.logger.Info("Attempt abandoned", "attempt_id", attemptID, "user_id", userID)
	return nil
}

// ===== HELPERS =====

func (s *attemptService) ownedSession(attemptID, userID string) (*attempt.Session, error) {
	s.mu.RLock()
	sess, ok := s.active[attemptID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if sess.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", "access", "attempt belongs to another user")
	}
	return sess, nil
}

func (s *attemptService) requireInProgress(sess *attempt.Session) error {
	switch sess.Coordinator.State() {
	case attempt.StateInProgress:
		return nil
	case attempt.StateSubmitted, attempt.StateSubmitting:
		return ErrAttemptAlreadySubmitted
	default:
		return ErrAttemptNotActive
	}
}

// finish tears the session down and drops it from the registry. The
// crash-recovery snapshot goes with it.
func (s *attemptService) finish(ctx context.Context, sess *attempt.Session) {
	sess.Close()

	s.mu.Lock()
	delete(s.active, sess.ID)
	delete(s.byUserID, userAssignmentKey(sess.UserID, sess.Assignment.ID))
	s.mu.Unlock()

	if err := s.sessions.DeleteSnapshot(ctx, sess.ID); err != nil {
		s.logger.LogError(err, "failed to delete attempt snapshot", "attempt_id", sess.ID)
	}
}

func (s *attemptService) persistSnapshot(ctx context.Context, sess *attempt.Session) {
	snap, err := sess.Snapshot()
	if err != nil {
		s.logger.LogError(err, "failed to build attempt snapshot", "attempt_id", sess.ID)
		return
	}
	if err := s.sessions.SaveSnapshot(ctx, snap); err != nil {
		s.logger.LogError(err, "failed to save attempt snapshot", "attempt_id", sess.ID)
	}
}

func (s *attemptService) view(sess *attempt.Session, includeAssignment bool) *AttemptView {
	v := &AttemptView{
		AttemptID:     sess.ID,
		Skill:         sess.Assignment.Skill,
		State:         sess.Coordinator.State(),
		StartedAt:     sess.StartedAt,
		TimeRemaining: sess.TimeRemaining(),
		ActiveSection: sess.Nav.Active(),
		AnsweredCount: sess.Store.AnsweredCount(),
		TotalCount:    sess.Assignment.TotalQuestions(),
		Outcome:       sess.Coordinator.Outcome(),
	}
	if sess.Assignment.Skill == models.SkillWriting {
		v.WordCounts = map[string]int{
			attempt.WritingTaskOneKey: attempt.WordCount(sess.Store.Text(attempt.WritingTaskOneKey)),
			attempt.WritingTaskTwoKey: attempt.WordCount(sess.Store.Text(attempt.WritingTaskTwoKey)),
		}
	}
	if includeAssignment {
		v.Assignment = sess.Assignment
	}
	return v
}
